package loot

import (
	"sort"
	"sync"

	"github.com/Merdeus/dndinventory/internal/dependencies/random"
	"github.com/Merdeus/dndinventory/internal/metrics"
	"github.com/Merdeus/dndinventory/internal/model"
)

// MaxPerRarity caps how many entries one generation request adds per tier
const MaxPerRarity = 12

// LootID identifies an entry within one pool
type LootID int64

type entry struct {
	id       LootID
	prefabID model.PrefabID
	claims   map[model.PlayerID]bool
	votes    map[model.PlayerID]model.PlayerID
}

func (e *entry) claimants() []model.PlayerID {
	out := make([]model.PlayerID, 0, len(e.claims))
	for p, claimed := range e.claims {
		if claimed {
			out = append(out, p)
		}
	}
	sortPlayers(out)
	return out
}

func (e *entry) isClaimant(p model.PlayerID) bool {
	return e.claims[p]
}

// Pool is the loot state machine of one game. Every method is atomic with
// respect to the others, and a method that returns an error leaves the pool
// unchanged.
type Pool struct {
	mu sync.Mutex

	gameID  model.GameID
	policy  CompletionPolicy
	random  random.Random
	metrics *metrics.Metrics

	phase    Phase
	entries  map[LootID]*entry
	eligible map[model.PlayerID]struct{}
	finished map[model.PlayerID]struct{}
	gold     int
	nextID   LootID

	// set once the round is concluded and a resolution is being applied
	resolution *Resolution
	progress   *Progress
	resolving  bool
}

// NewPool creates an empty pool in PREP
func NewPool(gameID model.GameID, rnd random.Random, policy CompletionPolicy, m *metrics.Metrics) *Pool {
	return &Pool{
		gameID:   gameID,
		policy:   policy,
		random:   rnd,
		metrics:  m,
		phase:    PhasePrep,
		entries:  make(map[LootID]*entry),
		eligible: make(map[model.PlayerID]struct{}),
		finished: make(map[model.PlayerID]struct{}),
		nextID:   1,
	}
}

// GameID returns the game this pool belongs to
func (p *Pool) GameID() model.GameID {
	return p.gameID
}

// Phase returns the current phase
func (p *Pool) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// PrefabOf returns the prefab behind a loot entry
func (p *Pool) PrefabOf(id LootID) (model.PrefabID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[id]
	if !ok {
		return 0, model.ErrLootNotFound
	}
	return e.prefabID, nil
}

// DM operations

// AddLoot adds an entry for prefabID
func (p *Pool) AddLoot(prefabID model.PrefabID) (LootID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhasePrep {
		return 0, model.ErrWrongPhase
	}
	return p.addLocked(prefabID), nil
}

func (p *Pool) addLocked(prefabID model.PrefabID) LootID {
	id := p.nextID
	p.nextID++
	p.entries[id] = &entry{
		id:       id,
		prefabID: prefabID,
		claims:   make(map[model.PlayerID]bool),
		votes:    make(map[model.PlayerID]model.PlayerID),
	}
	return id
}

// RemoveLoot removes an entry
func (p *Pool) RemoveLoot(id LootID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhasePrep {
		return model.ErrWrongPhase
	}
	if _, ok := p.entries[id]; !ok {
		return model.ErrLootNotFound
	}
	delete(p.entries, id)
	return nil
}

// GenerateRandomLoot adds up to MaxPerRarity entries per tier in counts,
// each drawn uniformly from the prefabs of that tier. Tiers without prefabs
// add nothing.
func (p *Pool) GenerateRandomLoot(counts map[model.Rarity]int, prefabs []*model.ItemPrefab) ([]LootID, error) {
	for rarity, n := range counts {
		if !rarity.Valid() {
			return nil, model.Malformed("unknown rarity %d", int(rarity))
		}
		if n < 0 {
			return nil, model.Malformed("negative count for %s", rarity)
		}
	}

	byRarity := make(map[model.Rarity][]model.PrefabID)
	for _, prefab := range prefabs {
		byRarity[prefab.Rarity] = append(byRarity[prefab.Rarity], prefab.ID)
	}

	tiers := make([]model.Rarity, 0, len(counts))
	for rarity := range counts {
		tiers = append(tiers, rarity)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhasePrep {
		return nil, model.ErrWrongPhase
	}

	added := make([]LootID, 0)
	for _, rarity := range tiers {
		candidates := byRarity[rarity]
		if len(candidates) == 0 {
			continue
		}
		for i := 0; i < min(counts[rarity], MaxPerRarity); i++ {
			pick := candidates[p.random.Intn(len(candidates))]
			added = append(added, p.addLocked(pick))
		}
	}
	return added, nil
}

// SetGold sets the gold to split among eligible players
func (p *Pool) SetGold(amount int) error {
	if amount < 0 {
		return model.Malformed("loot gold must not be negative")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhasePrep {
		return model.ErrWrongPhase
	}
	p.gold = amount
	return nil
}

// SetEligible replaces the set of players taking part in this round
func (p *Pool) SetEligible(players []model.PlayerID) error {
	if err := checkPlayers(players); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhasePrep {
		return model.ErrWrongPhase
	}
	p.setEligibleLocked(players)
	return nil
}

// Distribute sets the eligible players and moves from PREP to CLAIM in one
// step. On error neither change is made.
func (p *Pool) Distribute(players []model.PlayerID) (Phase, error) {
	if err := checkPlayers(players); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhasePrep {
		return p.phase, model.ErrWrongPhase
	}
	p.setEligibleLocked(players)
	p.advanceLocked()
	return p.phase, nil
}

func checkPlayers(players []model.PlayerID) error {
	if len(players) == 0 {
		return model.ErrNoEligible
	}
	for _, player := range players {
		if player < 0 {
			return model.Malformed("invalid player id %d", player)
		}
	}
	return nil
}

func (p *Pool) setEligibleLocked(players []model.PlayerID) {
	p.eligible = make(map[model.PlayerID]struct{}, len(players))
	for _, player := range players {
		p.eligible[player] = struct{}{}
	}
}

// NextPhase advances one phase. Leaving PREP requires eligible players.
func (p *Pool) NextPhase() (Phase, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.phase {
	case PhaseConcluded:
		return p.phase, model.ErrWrongPhase
	case PhasePrep:
		if len(p.eligible) == 0 {
			return p.phase, model.ErrNoEligible
		}
	}
	p.advanceLocked()
	return p.phase, nil
}

func (p *Pool) advanceLocked() {
	p.phase++
	p.finished = make(map[model.PlayerID]struct{})
	p.metrics.LootPhaseChanged(p.phase.String())
}

// Player operations

// SetClaim toggles player's claim on an entry and reports whether the
// player now holds it. Claiming records a self-vote.
func (p *Pool) SetClaim(id LootID, player model.PlayerID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhaseClaim {
		return false, model.ErrWrongPhase
	}
	if !p.isEligibleLocked(player) {
		return false, model.ErrNotEligible
	}
	e, ok := p.entries[id]
	if !ok {
		return false, model.ErrLootNotFound
	}

	if e.claims[player] {
		delete(e.claims, player)
		delete(e.votes, player)
		return false, nil
	}
	e.claims[player] = true
	e.votes[player] = player
	return true, nil
}

// SetVote records voter's choice among the claimants of a contested entry.
// Claimants cannot vote; their vote is fixed to themselves.
func (p *Pool) SetVote(id LootID, voter, target model.PlayerID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhaseVote {
		return model.ErrWrongPhase
	}
	if !p.isEligibleLocked(voter) {
		return model.ErrNotEligible
	}
	e, ok := p.entries[id]
	if !ok {
		return model.ErrLootNotFound
	}
	if len(e.claimants()) < 2 {
		return model.ErrInvalidVote
	}
	if e.isClaimant(voter) || !e.isClaimant(target) {
		return model.ErrInvalidVote
	}
	e.votes[voter] = target
	return nil
}

// HandleNewFinish marks player as done with the current phase and advances
// the pool once everyone required has finished. It returns the phase after
// the call and whether it changed. Repeated finishes count once.
func (p *Pool) HandleNewFinish(player model.PlayerID) (Phase, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhaseClaim && p.phase != PhaseVote {
		return p.phase, false, model.ErrWrongPhase
	}
	if !p.isEligibleLocked(player) {
		return p.phase, false, model.ErrNotEligible
	}

	p.finished[player] = struct{}{}
	if !p.completeLocked() {
		return p.phase, false, nil
	}
	p.advanceLocked()
	return p.phase, true, nil
}

func (p *Pool) completeLocked() bool {
	required := p.eligible
	if p.phase == PhaseVote && p.policy == ContestedClaimants {
		required = make(map[model.PlayerID]struct{})
		for _, e := range p.entries {
			claimants := e.claimants()
			if len(claimants) < 2 {
				continue
			}
			for _, c := range claimants {
				required[c] = struct{}{}
			}
		}
	}
	for player := range required {
		if _, ok := p.finished[player]; !ok {
			return false
		}
	}
	return true
}

func (p *Pool) isEligibleLocked(player model.PlayerID) bool {
	_, ok := p.eligible[player]
	return ok
}

func sortPlayers(players []model.PlayerID) {
	sort.Slice(players, func(i, j int) bool { return players[i] < players[j] })
}

func sortedSet(set map[model.PlayerID]struct{}) []model.PlayerID {
	out := make([]model.PlayerID, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sortPlayers(out)
	return out
}
