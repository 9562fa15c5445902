package loot

import (
	"sort"

	"github.com/Merdeus/dndinventory/internal/model"
)

// EntrySnapshot is one loot entry as broadcast to clients
type EntrySnapshot struct {
	LootID   LootID                            `json:"lootid"`
	PrefabID model.PrefabID                    `json:"id_prefab"`
	Claims   []model.PlayerID                  `json:"claims"`
	Votes    map[model.PlayerID]model.PlayerID `json:"votes"`
}

// Snapshot is the complete state of a pool. It is sent whole after every
// change rather than as a diff.
type Snapshot struct {
	GameID   model.GameID     `json:"gameId"`
	Phase    Phase            `json:"phase"`
	Gold     int              `json:"gold"`
	Eligible []model.PlayerID `json:"eligible"`
	Finished []model.PlayerID `json:"finished"`
	Entries  []EntrySnapshot  `json:"items"`
}

// Snapshot copies the pool's state
func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		GameID:   p.gameID,
		Phase:    p.phase,
		Gold:     p.gold,
		Eligible: sortedSet(p.eligible),
		Finished: sortedSet(p.finished),
		Entries:  make([]EntrySnapshot, 0, len(p.entries)),
	}
	for _, e := range p.entries {
		votes := make(map[model.PlayerID]model.PlayerID, len(e.votes))
		for voter, target := range e.votes {
			votes[voter] = target
		}
		snap.Entries = append(snap.Entries, EntrySnapshot{
			LootID:   e.id,
			PrefabID: e.prefabID,
			Claims:   e.claimants(),
			Votes:    votes,
		})
	}
	sort.Slice(snap.Entries, func(i, j int) bool { return snap.Entries[i].LootID < snap.Entries[j].LootID })
	return snap
}
