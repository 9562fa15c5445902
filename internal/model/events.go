package model

// EventType names an event pushed to streaming clients
type EventType string

const (
	// Session events
	EventRegister EventType = "register"
	EventGameInfo EventType = "game_info"
	EventItemList EventType = "item_list"

	// Inventory events
	EventInventoryUpdate EventType = "inventory_update"
	EventItemRemoval     EventType = "item_removal"
	EventGoldUpdate      EventType = "gold_update"
	EventSellingToggled  EventType = "selling_toggled"
	EventNotification    EventType = "notification"

	// Loot events
	EventLootUpdate   EventType = "loot_list_update"
	EventLootResolved EventType = "loot_resolved"
)

// RegisterPayload is the first event on every stream. PlayerID is nil for
// the DM.
type RegisterPayload struct {
	ClientID         int64     `json:"clientId"`
	PlayerID         *PlayerID `json:"playerId"`
	Token            string    `json:"token"`
	ResyncCredential string    `json:"resyncCredential"`
}

// ItemView is the full attribute set of an item as shown to clients
type ItemView struct {
	ID          ItemID   `json:"id"`
	PrefabID    PrefabID `json:"id_prefab"`
	Name        string   `json:"name"`
	Rarity      Rarity   `json:"rarity"`
	Type        ItemType `json:"type"`
	Description string   `json:"description"`
	Count       int      `json:"count"`
	Value       int      `json:"value"`
	Image       string   `json:"img"`
	Stackable   bool     `json:"stackable"`
	Unique      bool     `json:"unique"`
}

// NewItemView joins an item with its prefab
func NewItemView(item *Item, prefab *ItemPrefab) ItemView {
	return ItemView{
		ID:          item.ID,
		PrefabID:    prefab.ID,
		Name:        prefab.Name,
		Rarity:      prefab.Rarity,
		Type:        prefab.Type,
		Description: prefab.Description,
		Count:       item.Count,
		Value:       prefab.Value,
		Image:       prefab.Image,
		Stackable:   prefab.Stackable,
		Unique:      prefab.Unique,
	}
}

// PrefabView is a prefab as listed to the DM
type PrefabView struct {
	ID          PrefabID `json:"id"`
	Name        string   `json:"name"`
	Rarity      Rarity   `json:"rarity"`
	Type        ItemType `json:"type"`
	Description string   `json:"description"`
	Value       int      `json:"value"`
	Image       string   `json:"img"`
	Stackable   bool     `json:"stackable"`
	Unique      bool     `json:"unique"`
}

// NewPrefabView converts a prefab for the wire
func NewPrefabView(p *ItemPrefab) PrefabView {
	return PrefabView{
		ID:          p.ID,
		Name:        p.Name,
		Rarity:      p.Rarity,
		Type:        p.Type,
		Description: p.Description,
		Value:       p.Value,
		Image:       p.Image,
		Stackable:   p.Stackable,
		Unique:      p.Unique,
	}
}

// DMItemPayload is the inventory_update shape delivered to DM connections
type DMItemPayload struct {
	PlayerID PlayerID `json:"playerid"`
	ItemID   ItemID   `json:"itemid"`
	Item     ItemView `json:"item"`
}

// OwnerItemPayload is the inventory_update shape delivered to the owner.
// The owner is implicit.
type OwnerItemPayload struct {
	ItemID ItemID   `json:"itemid"`
	Item   ItemView `json:"item"`
}

// ItemRemovalPayload announces an item leaving an inventory
type ItemRemovalPayload struct {
	PlayerID PlayerID `json:"playerid"`
	ItemID   ItemID   `json:"itemid"`
}

// GoldPayload announces a player's new gold total
type GoldPayload struct {
	PlayerID PlayerID `json:"playerid"`
	Gold     int      `json:"gold"`
}

// NotificationPayload is a human readable message
type NotificationPayload struct {
	Message string `json:"msg"`
}

// SellingPayload announces the game's selling toggle
type SellingPayload struct {
	Allowed bool `json:"allowed"`
}

// GameSummary is the public part of a game
type GameSummary struct {
	ID             GameID   `json:"id"`
	Name           string   `json:"name"`
	JoinCode       JoinCode `json:"join_code"`
	SellingAllowed bool     `json:"sellingAllowed"`
}

// PlayerSummary is the public part of a player
type PlayerSummary struct {
	ID   PlayerID `json:"id"`
	Name string   `json:"name"`
	Gold int      `json:"gold"`
}

// PlayerInventory is a player with their items, as shown to the DM
type PlayerInventory struct {
	PlayerSummary
	Inventory map[ItemID]ItemView `json:"inventory"`
}

// GameInfoPayload is the full resync state for one connection. Inventory is
// set for players, Inventories for the DM.
type GameInfoPayload struct {
	Game        GameSummary                  `json:"game"`
	Players     []PlayerSummary              `json:"players"`
	Player      *PlayerID                    `json:"player"`
	IsDM        bool                         `json:"isDM"`
	Inventory   map[ItemID]ItemView          `json:"inventory,omitempty"`
	Inventories map[PlayerID]PlayerInventory `json:"inventories,omitempty"`
}

// ItemListPayload carries the game's prefab catalogue to the DM
type ItemListPayload struct {
	Items []PrefabView `json:"itemlist"`
}
