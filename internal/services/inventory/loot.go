package inventory

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/services/loot"
)

// GrantedItem is an item that changed because of a loot award
type GrantedItem struct {
	Award  loot.Award
	Item   *model.Item
	Prefab *model.ItemPrefab
}

// AppliedLoot is what ApplyResolution changed
type AppliedLoot struct {
	Granted []GrantedItem
	// Skipped awards could not be applied, e.g. a unique item that is
	// already held
	Skipped []loot.Award
	Players []*model.Player
}

// ApplyResolution turns a loot resolution into inventory changes: every
// award becomes a GiveItem and every eligible player receives the gold
// share. Awards for missing prefabs or unique items already held are
// skipped rather than failing the whole round.
//
// Progress is advanced as each change is stored, and a later call with the
// same progress continues after the last stored change. A nil progress
// starts from the beginning. On a store error the changes made by this call
// are returned along with the error.
func (s *Service) ApplyResolution(ctx context.Context, res *loot.Resolution, progress *loot.Progress) (*AppliedLoot, error) {
	if progress == nil {
		progress = &loot.Progress{}
	}
	if progress.Paid == nil {
		progress.Paid = make(map[model.PlayerID]bool)
	}
	applied := &AppliedLoot{}

	for progress.Applied < len(res.Awards) {
		award := res.Awards[progress.Applied]
		item, prefab, err := s.GiveItem(ctx, res.GameID, award.PrefabID, award.Winner)
		switch {
		case errors.Is(err, model.ErrUniqueItemTaken) || errors.Is(err, model.ErrUnknownEntity):
			applied.Skipped = append(applied.Skipped, award)
			progress.Skipped = append(progress.Skipped, award)
			s.logger.Warn("loot award skipped",
				slog.Int64("game_id", int64(res.GameID)),
				slog.Int64("loot_id", int64(award.LootID)),
				slog.Any("error", err))
		case err != nil:
			return applied, err
		default:
			applied.Granted = append(applied.Granted, GrantedItem{Award: award, Item: item, Prefab: prefab})
		}
		progress.Applied++
	}

	if res.GoldShare > 0 {
		players := make([]model.PlayerID, 0, len(res.Assignments))
		for playerID := range res.Assignments {
			players = append(players, playerID)
		}
		sort.Slice(players, func(i, j int) bool { return players[i] < players[j] })
		for _, playerID := range players {
			if progress.Paid[playerID] {
				continue
			}
			player, err := s.AddGold(ctx, res.GameID, playerID, res.GoldShare)
			if errors.Is(err, model.ErrUnknownEntity) {
				progress.Paid[playerID] = true
				continue
			}
			if err != nil {
				return applied, err
			}
			progress.Paid[playerID] = true
			applied.Players = append(applied.Players, player)
		}
	}

	s.logger.Info("loot applied",
		slog.Int64("game_id", int64(res.GameID)),
		slog.Int("granted", len(applied.Granted)),
		slog.Int("skipped", len(applied.Skipped)))
	return applied, nil
}
