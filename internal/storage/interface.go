package storage

import (
	"context"

	"github.com/Merdeus/dndinventory/internal/model"
)

// Storage is the durable relational store behind the session layer. Ids are
// allocated by the store.
type Storage interface {
	// Game operations
	CreateGame(ctx context.Context, game *model.Game) error
	SaveGame(ctx context.Context, game *model.Game) error
	GetGame(ctx context.Context, id model.GameID) (*model.Game, error)
	GetGameByJoinCode(ctx context.Context, code model.JoinCode) (*model.Game, error)

	// Player operations
	CreatePlayer(ctx context.Context, player *model.Player) error
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	ListPlayers(ctx context.Context, gameID model.GameID) ([]*model.Player, error)

	// Prefab operations
	CreatePrefab(ctx context.Context, prefab *model.ItemPrefab) error
	SavePrefab(ctx context.Context, prefab *model.ItemPrefab) error
	GetPrefab(ctx context.Context, id model.PrefabID) (*model.ItemPrefab, error)
	ListPrefabs(ctx context.Context, gameID model.GameID) ([]*model.ItemPrefab, error)

	// Item operations
	CreateItem(ctx context.Context, item *model.Item) error
	SaveItem(ctx context.Context, item *model.Item) error
	GetItem(ctx context.Context, id model.ItemID) (*model.Item, error)
	DeleteItem(ctx context.Context, id model.ItemID) error
	ListItemsByOwner(ctx context.Context, owner model.PlayerID) ([]*model.Item, error)
	ListItemsByPrefab(ctx context.Context, prefabID model.PrefabID) ([]*model.Item, error)
}
