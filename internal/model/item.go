package model

import "fmt"

// PrefabID identifies an item template
type PrefabID int64

// ItemID identifies an item instance held by a player
type ItemID int64

// Rarity tiers, in ascending order of value
type Rarity int

const (
	RarityMundane Rarity = iota
	RarityCommon
	RarityUncommon
	RarityRare
	RarityVeryRare
	RarityEpic
	RarityLegendary
	RarityQuestItem
)

var rarityNames = map[Rarity]string{
	RarityMundane:   "mundane",
	RarityCommon:    "common",
	RarityUncommon:  "uncommon",
	RarityRare:      "rare",
	RarityVeryRare:  "very_rare",
	RarityEpic:      "epic",
	RarityLegendary: "legendary",
	RarityQuestItem: "quest_item",
}

// String returns the snake_case rarity name
func (r Rarity) String() string {
	if name, ok := rarityNames[r]; ok {
		return name
	}
	return fmt.Sprintf("rarity(%d)", int(r))
}

// Valid reports whether r is a known tier
func (r Rarity) Valid() bool {
	_, ok := rarityNames[r]
	return ok
}

// ParseRarity accepts either the snake_case name or the camelCase form
// the web client sends ("veryRare").
func ParseRarity(s string) (Rarity, bool) {
	if s == "veryRare" {
		return RarityVeryRare, true
	}
	if s == "questItem" {
		return RarityQuestItem, true
	}
	for r, name := range rarityNames {
		if name == s {
			return r, true
		}
	}
	return 0, false
}

// ItemType categorises prefabs
type ItemType int

const (
	ItemTypeWeapon ItemType = iota + 1
	ItemTypeArmor
	ItemTypeAdventureGear
	ItemTypeTool
	ItemTypeConsumable
	ItemTypeMagicalItem
	ItemTypeValuable
	ItemTypeScroll
	ItemTypeShield
	ItemTypeRing
	ItemTypeStaff
	ItemTypeMisc
	ItemTypeWondrous
)

// ItemPrefab is a template the DM defines for a game
type ItemPrefab struct {
	ID          PrefabID
	GameID      GameID
	Name        string
	Type        ItemType
	Rarity      Rarity
	Description string
	Value       int
	Image       string
	Stackable   bool
	Unique      bool
}

// Item is an instance of a prefab in a player's inventory
type Item struct {
	ID       ItemID
	PrefabID PrefabID
	GameID   GameID
	Owner    PlayerID
	Count    int
}

// IsQuestItem reports whether the prefab is a quest item
func (p *ItemPrefab) IsQuestItem() bool {
	return p.Rarity == RarityQuestItem
}
