package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface. Rows
// are JSON values; per-game and per-owner listings use SET indexes.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New connects to Redis and verifies the connection
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{client: client, cfg: cfg}, nil
}

// NewWithClient wraps an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{client: client, cfg: cfg}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

var _ storage.Storage = (*Storage)(nil)

func (s *Storage) nextID(ctx context.Context, kind string) (int64, error) {
	return s.client.Incr(ctx, counterKey(kind)).Result()
}

// getJSON loads key into dst, returning notFound when the key is absent
func (s *Storage) getJSON(ctx context.Context, key string, dst any, notFound error) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(data, dst)
}

// requireExists returns notFound unless key is present
func (s *Storage) requireExists(ctx context.Context, key string, notFound error) error {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// mgetIndexed loads every key in a SET index, skipping dangling members
func mgetIndexed[T any](ctx context.Context, client *redis.Client, indexKey string) ([]*T, error) {
	keys, err := client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var row T
		if err := json.Unmarshal([]byte(str), &row); err != nil {
			continue
		}
		out = append(out, &row)
	}
	return out, nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	id, err := s.nextID(ctx, counterGame)
	if err != nil {
		return err
	}
	game.ID = model.GameID(id)
	return s.writeGame(ctx, game)
}

func (s *Storage) SaveGame(ctx context.Context, game *model.Game) error {
	if err := s.requireExists(ctx, gameKey(game.ID), model.ErrGameNotFound); err != nil {
		return err
	}
	return s.writeGame(ctx, game)
}

func (s *Storage) writeGame(ctx context.Context, game *model.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, gameKey(game.ID), data, 0)
	pipe.Set(ctx, joinCodeIndexKey(game.JoinCode), int64(game.ID), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	var game model.Game
	if err := s.getJSON(ctx, gameKey(id), &game, model.ErrGameNotFound); err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *Storage) GetGameByJoinCode(ctx context.Context, code model.JoinCode) (*model.Game, error) {
	id, err := s.client.Get(ctx, joinCodeIndexKey(code)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, err
	}
	return s.GetGame(ctx, model.GameID(id))
}

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	id, err := s.nextID(ctx, counterPlayer)
	if err != nil {
		return err
	}
	player.ID = model.PlayerID(id)
	return s.writePlayer(ctx, player)
}

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	if err := s.requireExists(ctx, playerKey(player.ID), model.ErrPlayerNotFound); err != nil {
		return err
	}
	return s.writePlayer(ctx, player)
}

func (s *Storage) writePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}
	key := playerKey(player.ID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, gamePlayersIndexKey(player.GameID), key)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var player model.Player
	if err := s.getJSON(ctx, playerKey(id), &player, model.ErrPlayerNotFound); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) ListPlayers(ctx context.Context, gameID model.GameID) ([]*model.Player, error) {
	players, err := mgetIndexed[model.Player](ctx, s.client, gamePlayersIndexKey(gameID))
	if err != nil {
		return nil, err
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

// Prefab operations

func (s *Storage) CreatePrefab(ctx context.Context, prefab *model.ItemPrefab) error {
	id, err := s.nextID(ctx, counterPrefab)
	if err != nil {
		return err
	}
	prefab.ID = model.PrefabID(id)
	return s.writePrefab(ctx, prefab)
}

func (s *Storage) SavePrefab(ctx context.Context, prefab *model.ItemPrefab) error {
	if err := s.requireExists(ctx, prefabKey(prefab.ID), model.ErrPrefabNotFound); err != nil {
		return err
	}
	return s.writePrefab(ctx, prefab)
}

func (s *Storage) writePrefab(ctx context.Context, prefab *model.ItemPrefab) error {
	data, err := json.Marshal(prefab)
	if err != nil {
		return err
	}
	key := prefabKey(prefab.ID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, gamePrefabsIndexKey(prefab.GameID), key)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetPrefab(ctx context.Context, id model.PrefabID) (*model.ItemPrefab, error) {
	var prefab model.ItemPrefab
	if err := s.getJSON(ctx, prefabKey(id), &prefab, model.ErrPrefabNotFound); err != nil {
		return nil, err
	}
	return &prefab, nil
}

func (s *Storage) ListPrefabs(ctx context.Context, gameID model.GameID) ([]*model.ItemPrefab, error) {
	prefabs, err := mgetIndexed[model.ItemPrefab](ctx, s.client, gamePrefabsIndexKey(gameID))
	if err != nil {
		return nil, err
	}
	sort.Slice(prefabs, func(i, j int) bool { return prefabs[i].ID < prefabs[j].ID })
	return prefabs, nil
}

// Item operations

func (s *Storage) CreateItem(ctx context.Context, item *model.Item) error {
	id, err := s.nextID(ctx, counterItem)
	if err != nil {
		return err
	}
	item.ID = model.ItemID(id)
	return s.writeItem(ctx, item, nil)
}

func (s *Storage) SaveItem(ctx context.Context, item *model.Item) error {
	prev, err := s.GetItem(ctx, item.ID)
	if err != nil {
		return err
	}
	return s.writeItem(ctx, item, prev)
}

// writeItem stores item and moves its index entries away from prev's owner
func (s *Storage) writeItem(ctx context.Context, item *model.Item, prev *model.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	key := itemKey(item.ID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	if prev != nil && prev.Owner != item.Owner {
		pipe.SRem(ctx, ownerItemsIndexKey(prev.Owner), key)
	}
	pipe.SAdd(ctx, ownerItemsIndexKey(item.Owner), key)
	pipe.SAdd(ctx, prefabItemsIndexKey(item.PrefabID), key)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetItem(ctx context.Context, id model.ItemID) (*model.Item, error) {
	var item model.Item
	if err := s.getJSON(ctx, itemKey(id), &item, model.ErrItemNotFound); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Storage) DeleteItem(ctx context.Context, id model.ItemID) error {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrItemNotFound) {
			return nil
		}
		return err
	}
	key := itemKey(id)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, ownerItemsIndexKey(item.Owner), key)
	pipe.SRem(ctx, prefabItemsIndexKey(item.PrefabID), key)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) ListItemsByOwner(ctx context.Context, owner model.PlayerID) ([]*model.Item, error) {
	return s.listItems(ctx, ownerItemsIndexKey(owner))
}

func (s *Storage) ListItemsByPrefab(ctx context.Context, prefabID model.PrefabID) ([]*model.Item, error) {
	return s.listItems(ctx, prefabItemsIndexKey(prefabID))
}

func (s *Storage) listItems(ctx context.Context, indexKey string) ([]*model.Item, error) {
	items, err := mgetIndexed[model.Item](ctx, s.client, indexKey)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}
