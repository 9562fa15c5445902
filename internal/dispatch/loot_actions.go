package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/services/broadcast"
	"github.com/Merdeus/dndinventory/internal/services/inventory"
	"github.com/Merdeus/dndinventory/internal/services/loot"
)

type lootEntryRequest struct {
	LootID loot.LootID `json:"loot_id"`
}

type addLootRequest struct {
	PrefabID model.PrefabID `json:"item_id"`
}

type generateLootRequest struct {
	Counts map[string]int `json:"count_list"`
	Preset *int           `json:"preset"`
}

type lootGoldRequest struct {
	Gold *int `json:"loot_gold"`
}

type distributeLootRequest struct {
	Players []model.PlayerID `json:"players"`
}

type voteLootRequest struct {
	LootID   loot.LootID    `json:"loot_id"`
	PlayerID model.PlayerID `json:"player_id"`
}

// LootEntryView is a loot entry with its prefab resolved for display
type LootEntryView struct {
	model.PrefabView
	LootID loot.LootID                       `json:"lootid"`
	Claims []model.PlayerID                  `json:"claims"`
	Votes  map[model.PlayerID]model.PlayerID `json:"votes"`
}

// LootView is the loot_list_update payload
type LootView struct {
	GameID   model.GameID     `json:"gameId"`
	Phase    loot.Phase       `json:"phase"`
	Gold     int              `json:"gold"`
	Eligible []model.PlayerID `json:"eligible"`
	Finished []model.PlayerID `json:"finished"`
	Items    []LootEntryView  `json:"items"`
}

// ResolvedPayload is the loot_resolved payload
type ResolvedPayload struct {
	*loot.Resolution
	Skipped []loot.Award `json:"skipped"`
}

func (d *Dispatcher) registerLootActions() {
	register(d.actions, "AddLootItem", d.addLootItem)
	register(d.actions, "RemoveLootItem", d.removeLootItem)
	register(d.actions, "GenerateLootItems", d.generateLootItems)
	register(d.actions, "SetLootGold", d.setLootGold)
	register(d.actions, "ClearLoot", d.clearLoot)
	register(d.actions, "DistributeLoot", d.distributeLoot)
	register(d.actions, "NextLootPhase", d.nextLootPhase)
	register(d.actions, "ClaimLootItem", d.claimLootItem)
	register(d.actions, "VoteLootItem", d.voteLootItem)
	register(d.actions, "LootPhaseDone", d.lootPhaseDone)
	register(d.actions, "ResolveLoot", d.resolveLoot)
	register(d.actions, "GetLoot", d.getLoot)
}

// DM actions

func (d *Dispatcher) addLootItem(ctx context.Context, call *Call, req addLootRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	prefab, err := d.inventory.GetPrefab(ctx, call.Conn.GameID, req.PrefabID)
	if err != nil {
		return nil, err
	}
	pool := d.loot.GetOrCreate(call.Conn.GameID)
	if _, err := pool.AddLoot(prefab.ID); err != nil {
		return nil, err
	}
	return d.lootChanged(ctx, pool, fmt.Sprintf("Added %s to the loot", prefab.Name))
}

func (d *Dispatcher) removeLootItem(ctx context.Context, call *Call, req lootEntryRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	pool := d.loot.GetOrCreate(call.Conn.GameID)
	if err := pool.RemoveLoot(req.LootID); err != nil {
		return nil, err
	}
	return d.lootChanged(ctx, pool, "Removed loot entry")
}

func (d *Dispatcher) generateLootItems(ctx context.Context, call *Call, req generateLootRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	counts, err := lootQuota(req)
	if err != nil {
		return nil, err
	}
	prefabs, err := d.inventory.ListPrefabs(ctx, call.Conn.GameID)
	if err != nil {
		return nil, err
	}

	pool := d.loot.GetOrCreate(call.Conn.GameID)
	added, err := pool.GenerateRandomLoot(counts, prefabs)
	if err != nil {
		return nil, err
	}
	return d.lootChanged(ctx, pool, fmt.Sprintf("Generated %d loot entries", len(added)))
}

// lootQuota reads either a preset tier or explicit counts keyed by rarity
// name or number
func lootQuota(req generateLootRequest) (map[model.Rarity]int, error) {
	if req.Preset != nil {
		counts, ok := loot.Preset(*req.Preset)
		if !ok {
			return nil, model.Malformed("unknown loot preset %d", *req.Preset)
		}
		return counts, nil
	}
	if len(req.Counts) == 0 {
		return nil, model.Malformed("count_list or preset is required")
	}

	counts := make(map[model.Rarity]int, len(req.Counts))
	for key, n := range req.Counts {
		rarity, ok := model.ParseRarity(key)
		if !ok {
			i, err := strconv.Atoi(key)
			if err != nil {
				return nil, model.Malformed("unknown rarity %q", key)
			}
			rarity = model.Rarity(i)
		}
		counts[rarity] += n
	}
	return counts, nil
}

func (d *Dispatcher) setLootGold(ctx context.Context, call *Call, req lootGoldRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	if req.Gold == nil {
		return nil, model.Malformed("loot_gold is required")
	}
	pool := d.loot.GetOrCreate(call.Conn.GameID)
	if err := pool.SetGold(*req.Gold); err != nil {
		return nil, err
	}
	return d.lootChanged(ctx, pool, fmt.Sprintf("Loot gold set to %d", *req.Gold))
}

// clearLoot abandons the current round in any phase
func (d *Dispatcher) clearLoot(ctx context.Context, call *Call, _ emptyRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	d.loot.Clear(call.Conn.GameID)
	return d.lootChanged(ctx, d.loot.GetOrCreate(call.Conn.GameID), "Loot cleared")
}

func (d *Dispatcher) distributeLoot(ctx context.Context, call *Call, req distributeLootRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	for _, playerID := range req.Players {
		if _, err := d.inventory.GetPlayer(ctx, call.Conn.GameID, playerID); err != nil {
			return nil, err
		}
	}

	pool := d.loot.GetOrCreate(call.Conn.GameID)
	phase, err := pool.Distribute(req.Players)
	if err != nil {
		return nil, err
	}
	d.announcePhase(pool, phase)
	return d.lootChanged(ctx, pool, "Loot distributed")
}

func (d *Dispatcher) nextLootPhase(ctx context.Context, call *Call, _ emptyRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	pool := d.loot.GetOrCreate(call.Conn.GameID)
	phase, err := pool.NextPhase()
	if err != nil {
		return nil, err
	}
	d.announcePhase(pool, phase)
	return d.lootChanged(ctx, pool, "Loot phase is now "+phase.String())
}

// resolveLoot applies a concluded round to inventories and starts a new
// one. The pool stays in place until every award is stored, so a round cut
// short by a store error can be resolved again and continues where it
// stopped.
func (d *Dispatcher) resolveLoot(ctx context.Context, call *Call, _ emptyRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	gameID := call.Conn.GameID
	pool, ok := d.loot.Get(gameID)
	if !ok {
		return nil, model.ErrWrongPhase
	}
	res, progress, err := pool.BeginResolve()
	if err != nil {
		return nil, err
	}

	applied, err := d.inventory.ApplyResolution(ctx, res, progress)
	d.publishApplied(gameID, applied)
	if err != nil {
		pool.EndResolve()
		d.logger.Warn("loot resolution interrupted",
			slog.Int64("game_id", int64(gameID)),
			slog.Int("applied", progress.Applied),
			slog.Int("awards", len(res.Awards)),
			slog.Any("error", err))
		return nil, err
	}
	d.loot.Retire(gameID, pool)

	payload := ResolvedPayload{Resolution: res, Skipped: progress.Skipped}
	if payload.Skipped == nil {
		payload.Skipped = []loot.Award{}
	}
	d.router.LootResolved(gameID, payload)
	if _, err := d.lootChanged(ctx, d.loot.GetOrCreate(gameID), ""); err != nil {
		d.logger.Warn("loot snapshot after resolve failed",
			slog.Int64("game_id", int64(gameID)),
			slog.Any("error", err))
	}
	return &Result{Message: "Loot resolved", Data: payload}, nil
}

// publishApplied sends the inventory and gold changes a resolution stored
func (d *Dispatcher) publishApplied(gameID model.GameID, applied *inventory.AppliedLoot) {
	if applied == nil {
		return
	}
	for _, granted := range applied.Granted {
		d.router.ItemUpdated(gameID, granted.Item.Owner, model.NewItemView(granted.Item, granted.Prefab))
	}
	for _, player := range applied.Players {
		d.router.GoldUpdated(gameID, player.ID, player.Gold)
	}
}

// Player actions

func (d *Dispatcher) claimLootItem(ctx context.Context, call *Call, req lootEntryRequest) (*Result, error) {
	if call.Conn.IsDM {
		return nil, model.ErrNotEligible
	}
	pool := d.loot.GetOrCreate(call.Conn.GameID)
	claimed, err := pool.SetClaim(req.LootID, call.Conn.PlayerID)
	if err != nil {
		return nil, err
	}
	msg := "Claim withdrawn"
	if claimed {
		msg = "Claimed"
	}
	return d.lootChanged(ctx, pool, msg)
}

func (d *Dispatcher) voteLootItem(ctx context.Context, call *Call, req voteLootRequest) (*Result, error) {
	if call.Conn.IsDM {
		return nil, model.ErrNotEligible
	}
	pool := d.loot.GetOrCreate(call.Conn.GameID)
	if err := pool.SetVote(req.LootID, call.Conn.PlayerID, req.PlayerID); err != nil {
		return nil, err
	}
	return d.lootChanged(ctx, pool, "Vote recorded")
}

func (d *Dispatcher) lootPhaseDone(ctx context.Context, call *Call, _ emptyRequest) (*Result, error) {
	if call.Conn.IsDM {
		return nil, model.ErrNotEligible
	}
	pool := d.loot.GetOrCreate(call.Conn.GameID)
	phase, advanced, err := pool.HandleNewFinish(call.Conn.PlayerID)
	if err != nil {
		return nil, err
	}
	if advanced {
		d.announcePhase(pool, phase)
	}
	return d.lootChanged(ctx, pool, "Marked as done")
}

// getLoot sends the snapshot to the caller only
func (d *Dispatcher) getLoot(ctx context.Context, call *Call, _ emptyRequest) (*Result, error) {
	view, err := d.lootView(ctx, d.loot.GetOrCreate(call.Conn.GameID))
	if err != nil {
		return nil, err
	}
	_ = d.router.SendDirect(call.Conn, model.EventLootUpdate, view)
	return &Result{Data: view}, nil
}

// lootChanged broadcasts the pool's full state to the game. The snapshot is
// taken while the pool is known to be current, so a change that lands on a
// cleared or resolved pool is never broadcast after its successor's state.
// The caller then gets ErrWrongPhase.
func (d *Dispatcher) lootChanged(ctx context.Context, pool *loot.Pool, msg string) (*Result, error) {
	prefabs, err := d.prefabIndex(ctx, pool.GameID())
	if err != nil {
		return nil, err
	}
	var view *LootView
	current := d.loot.IfCurrent(pool, func() {
		view = buildLootView(pool.Snapshot(), prefabs)
		d.router.LootUpdated(pool.GameID(), view)
	})
	if !current {
		return nil, model.ErrWrongPhase
	}
	return &Result{Message: msg, Data: view}, nil
}

func (d *Dispatcher) prefabIndex(ctx context.Context, gameID model.GameID) (map[model.PrefabID]*model.ItemPrefab, error) {
	prefabs, err := d.inventory.ListPrefabs(ctx, gameID)
	if err != nil {
		return nil, err
	}
	byID := make(map[model.PrefabID]*model.ItemPrefab, len(prefabs))
	for _, p := range prefabs {
		byID[p.ID] = p
	}
	return byID, nil
}

func (d *Dispatcher) lootView(ctx context.Context, pool *loot.Pool) (*LootView, error) {
	prefabs, err := d.prefabIndex(ctx, pool.GameID())
	if err != nil {
		return nil, err
	}
	return buildLootView(pool.Snapshot(), prefabs), nil
}

func buildLootView(snap loot.Snapshot, byID map[model.PrefabID]*model.ItemPrefab) *LootView {
	view := &LootView{
		GameID:   snap.GameID,
		Phase:    snap.Phase,
		Gold:     snap.Gold,
		Eligible: snap.Eligible,
		Finished: snap.Finished,
		Items:    make([]LootEntryView, 0, len(snap.Entries)),
	}
	for _, e := range snap.Entries {
		entry := LootEntryView{LootID: e.LootID, Claims: e.Claims, Votes: e.Votes}
		if prefab, ok := byID[e.PrefabID]; ok {
			entry.PrefabView = model.NewPrefabView(prefab)
		} else {
			entry.PrefabView = model.PrefabView{ID: e.PrefabID}
		}
		view.Items = append(view.Items, entry)
	}
	return view
}

func (d *Dispatcher) announcePhase(pool *loot.Pool, phase loot.Phase) {
	d.loot.IfCurrent(pool, func() {
		d.router.Notify(pool.GameID(), broadcast.AllInGame(), "Loot phase is now "+phase.String())
	})
}
