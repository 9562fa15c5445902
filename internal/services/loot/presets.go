package loot

import "github.com/Merdeus/dndinventory/internal/model"

// Presets are the quick generation quotas offered to the DM, indexed by
// encounter tier.
var Presets = []map[model.Rarity]int{
	{},
	{model.RarityCommon: 3},
	{model.RarityCommon: 2, model.RarityUncommon: 2},
	{model.RarityCommon: 2, model.RarityUncommon: 2, model.RarityRare: 2},
	{model.RarityUncommon: 2, model.RarityRare: 2, model.RarityVeryRare: 3},
	{model.RarityRare: 1, model.RarityVeryRare: 2, model.RarityEpic: 2},
	{model.RarityVeryRare: 1, model.RarityEpic: 2, model.RarityLegendary: 2},
}

// Preset returns the quota for tier
func Preset(tier int) (map[model.Rarity]int, bool) {
	if tier < 0 || tier >= len(Presets) {
		return nil, false
	}
	return Presets[tier], true
}
