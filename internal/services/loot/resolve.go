package loot

import (
	"sort"

	"github.com/Merdeus/dndinventory/internal/model"
)

// Method records how an entry's winner was chosen
type Method string

const (
	MethodUnclaimed Method = "unclaimed"
	MethodClaimed   Method = "claimed"
	MethodVote      Method = "vote"
	MethodTie       Method = "tie"
)

// Award is the outcome for one loot entry
type Award struct {
	LootID   LootID         `json:"lootid"`
	PrefabID model.PrefabID `json:"id_prefab"`
	Winner   model.PlayerID `json:"winner"`
	Method   Method         `json:"method"`
}

// Resolution is the final distribution of a concluded pool. Assignments
// lists the entries won by every eligible player, including those who won
// nothing.
type Resolution struct {
	GameID        model.GameID                `json:"gameId"`
	Awards        []Award                     `json:"awards"`
	Assignments   map[model.PlayerID][]LootID `json:"assignments"`
	GoldShare     int                         `json:"goldShare"`
	GoldRemainder int                         `json:"goldRemainder"`
}

// Resolve computes the distribution of a CONCLUDED pool. It draws on the
// pool's random source but does not change the pool.
//
// Entries are processed in id order. An unclaimed entry goes to a random
// player among those with the fewest random assignments so far. A single
// claimant wins outright. With several claimants the most voted wins; a tie
// is broken at random and counts as a random assignment for the winner.
func (p *Pool) Resolve() (*Resolution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolveLocked()
}

// Progress records how much of a resolution has reached inventories
type Progress struct {
	// Applied counts the leading awards already given or skipped
	Applied int
	Skipped []Award
	Paid    map[model.PlayerID]bool
}

// BeginResolve hands the pool's resolution to one caller for applying.
// The first call computes it; a call after EndResolve returns the same
// resolution and the progress recorded so far, so a failed apply resumes
// instead of drawing again. While a caller holds it, BeginResolve fails
// with ErrWrongPhase.
func (p *Pool) BeginResolve() (*Resolution, *Progress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolving {
		return nil, nil, model.ErrWrongPhase
	}
	if p.resolution == nil {
		res, err := p.resolveLocked()
		if err != nil {
			return nil, nil, err
		}
		p.resolution = res
		p.progress = &Progress{Paid: make(map[model.PlayerID]bool)}
	}
	p.resolving = true
	return p.resolution, p.progress, nil
}

// EndResolve releases the resolution after a failed apply
func (p *Pool) EndResolve() {
	p.mu.Lock()
	p.resolving = false
	p.mu.Unlock()
}

func (p *Pool) resolveLocked() (*Resolution, error) {
	if p.phase != PhaseConcluded {
		return nil, model.ErrWrongPhase
	}

	eligible := sortedSet(p.eligible)
	if len(eligible) == 0 {
		return nil, model.ErrNoEligible
	}

	ids := make([]LootID, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	res := &Resolution{
		GameID:      p.gameID,
		Awards:      make([]Award, 0, len(ids)),
		Assignments: make(map[model.PlayerID][]LootID, len(eligible)),
	}
	for _, player := range eligible {
		res.Assignments[player] = []LootID{}
	}

	randomCount := make(map[model.PlayerID]int, len(eligible))
	for _, id := range ids {
		e := p.entries[id]
		award := Award{LootID: id, PrefabID: e.prefabID}

		claimants := e.claimants()
		switch len(claimants) {
		case 0:
			award.Winner = p.pickFewest(eligible, randomCount)
			award.Method = MethodUnclaimed
			randomCount[award.Winner]++
		case 1:
			award.Winner = claimants[0]
			award.Method = MethodClaimed
		default:
			leaders := topVoted(e, claimants)
			if len(leaders) == 1 {
				award.Winner = leaders[0]
				award.Method = MethodVote
			} else {
				award.Winner = leaders[p.random.Intn(len(leaders))]
				award.Method = MethodTie
				randomCount[award.Winner]++
			}
		}

		res.Awards = append(res.Awards, award)
		res.Assignments[award.Winner] = append(res.Assignments[award.Winner], id)
	}

	res.GoldShare = p.gold / len(eligible)
	res.GoldRemainder = p.gold % len(eligible)
	return res, nil
}

func (p *Pool) pickFewest(eligible []model.PlayerID, counts map[model.PlayerID]int) model.PlayerID {
	fewest := counts[eligible[0]]
	for _, player := range eligible[1:] {
		fewest = min(fewest, counts[player])
	}
	candidates := make([]model.PlayerID, 0, len(eligible))
	for _, player := range eligible {
		if counts[player] == fewest {
			candidates = append(candidates, player)
		}
	}
	return candidates[p.random.Intn(len(candidates))]
}

// topVoted returns the claimants sharing the highest vote count, in id order
func topVoted(e *entry, claimants []model.PlayerID) []model.PlayerID {
	tally := make(map[model.PlayerID]int, len(claimants))
	for _, target := range e.votes {
		if e.isClaimant(target) {
			tally[target]++
		}
	}

	best := -1
	var leaders []model.PlayerID
	for _, c := range claimants {
		switch n := tally[c]; {
		case n > best:
			best = n
			leaders = []model.PlayerID{c}
		case n == best:
			leaders = append(leaders, c)
		}
	}
	return leaders
}
