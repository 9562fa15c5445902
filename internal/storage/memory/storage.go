package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/storage"
)

// Storage is an in-memory implementation of the storage interface. Values
// are copied on the way in and out so callers never share rows.
type Storage struct {
	mu sync.RWMutex

	games   map[model.GameID]model.Game
	players map[model.PlayerID]model.Player
	prefabs map[model.PrefabID]model.ItemPrefab
	items   map[model.ItemID]model.Item

	joinCodes map[model.JoinCode]model.GameID

	nextGame   model.GameID
	nextPlayer model.PlayerID
	nextPrefab model.PrefabID
	nextItem   model.ItemID
}

// New creates an empty store
func New() *Storage {
	return &Storage{
		games:     make(map[model.GameID]model.Game),
		players:   make(map[model.PlayerID]model.Player),
		prefabs:   make(map[model.PrefabID]model.ItemPrefab),
		items:     make(map[model.ItemID]model.Item),
		joinCodes: make(map[model.JoinCode]model.GameID),
	}
}

var _ storage.Storage = (*Storage)(nil)

// Game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextGame++
	game.ID = s.nextGame
	s.games[game.ID] = *game
	s.joinCodes[game.JoinCode] = game.ID
	return nil
}

func (s *Storage) SaveGame(ctx context.Context, game *model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[game.ID]; !ok {
		return model.ErrGameNotFound
	}
	s.games[game.ID] = *game
	s.joinCodes[game.JoinCode] = game.ID
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	return &game, nil
}

func (s *Storage) GetGameByJoinCode(ctx context.Context, code model.JoinCode) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.joinCodes[code]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	game := s.games[id]
	return &game, nil
}

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPlayer++
	player.ID = s.nextPlayer
	s.players[player.ID] = *player
	return nil
}

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[player.ID]; !ok {
		return model.ErrPlayerNotFound
	}
	s.players[player.ID] = *player
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return &player, nil
}

func (s *Storage) ListPlayers(ctx context.Context, gameID model.GameID) ([]*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	players := []*model.Player{}
	for _, p := range s.players {
		if p.GameID == gameID {
			p := p
			players = append(players, &p)
		}
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

// Prefab operations

func (s *Storage) CreatePrefab(ctx context.Context, prefab *model.ItemPrefab) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPrefab++
	prefab.ID = s.nextPrefab
	s.prefabs[prefab.ID] = *prefab
	return nil
}

func (s *Storage) SavePrefab(ctx context.Context, prefab *model.ItemPrefab) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prefabs[prefab.ID]; !ok {
		return model.ErrPrefabNotFound
	}
	s.prefabs[prefab.ID] = *prefab
	return nil
}

func (s *Storage) GetPrefab(ctx context.Context, id model.PrefabID) (*model.ItemPrefab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefab, ok := s.prefabs[id]
	if !ok {
		return nil, model.ErrPrefabNotFound
	}
	return &prefab, nil
}

func (s *Storage) ListPrefabs(ctx context.Context, gameID model.GameID) ([]*model.ItemPrefab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefabs := []*model.ItemPrefab{}
	for _, p := range s.prefabs {
		if p.GameID == gameID {
			p := p
			prefabs = append(prefabs, &p)
		}
	}
	sort.Slice(prefabs, func(i, j int) bool { return prefabs[i].ID < prefabs[j].ID })
	return prefabs, nil
}

// Item operations

func (s *Storage) CreateItem(ctx context.Context, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextItem++
	item.ID = s.nextItem
	s.items[item.ID] = *item
	return nil
}

func (s *Storage) SaveItem(ctx context.Context, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return model.ErrItemNotFound
	}
	s.items[item.ID] = *item
	return nil
}

func (s *Storage) GetItem(ctx context.Context, id model.ItemID) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, model.ErrItemNotFound
	}
	return &item, nil
}

func (s *Storage) DeleteItem(ctx context.Context, id model.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *Storage) ListItemsByOwner(ctx context.Context, owner model.PlayerID) ([]*model.Item, error) {
	return s.listItems(func(it model.Item) bool { return it.Owner == owner }), nil
}

func (s *Storage) ListItemsByPrefab(ctx context.Context, prefabID model.PrefabID) ([]*model.Item, error) {
	return s.listItems(func(it model.Item) bool { return it.PrefabID == prefabID }), nil
}

func (s *Storage) listItems(match func(model.Item) bool) []*model.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := []*model.Item{}
	for _, it := range s.items {
		if match(it) {
			it := it
			items = append(items, &it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}
