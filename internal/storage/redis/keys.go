package redis

import (
	"fmt"

	"github.com/Merdeus/dndinventory/internal/model"
)

// Key prefix for all inventory data
const keyPrefix = "dndinv"

// Id counters, one per entity kind
const (
	counterGame   = "game"
	counterPlayer = "player"
	counterPrefab = "prefab"
	counterItem   = "item"
)

func counterKey(kind string) string {
	return fmt.Sprintf("%s:counter:%s", keyPrefix, kind)
}

func gameKey(id model.GameID) string {
	return fmt.Sprintf("%s:game:%d", keyPrefix, id)
}

// joinCodeIndexKey maps a join code to a game id
func joinCodeIndexKey(code model.JoinCode) string {
	return fmt.Sprintf("%s:idx:join_code:%s", keyPrefix, code)
}

func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%d", keyPrefix, id)
}

// gamePlayersIndexKey is the SET of player keys in a game
func gamePlayersIndexKey(gameID model.GameID) string {
	return fmt.Sprintf("%s:idx:game_players:%d", keyPrefix, gameID)
}

func prefabKey(id model.PrefabID) string {
	return fmt.Sprintf("%s:prefab:%d", keyPrefix, id)
}

// gamePrefabsIndexKey is the SET of prefab keys in a game
func gamePrefabsIndexKey(gameID model.GameID) string {
	return fmt.Sprintf("%s:idx:game_prefabs:%d", keyPrefix, gameID)
}

func itemKey(id model.ItemID) string {
	return fmt.Sprintf("%s:item:%d", keyPrefix, id)
}

// ownerItemsIndexKey is the SET of item keys held by a player
func ownerItemsIndexKey(owner model.PlayerID) string {
	return fmt.Sprintf("%s:idx:owner_items:%d", keyPrefix, owner)
}

// prefabItemsIndexKey is the SET of item keys instantiating a prefab
func prefabItemsIndexKey(prefabID model.PrefabID) string {
	return fmt.Sprintf("%s:idx:prefab_items:%d", keyPrefix, prefabID)
}
