package npc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/npcai/internal/game/dice"
	"github.com/cory-johannsen/npcai/internal/game/npc"
)

func validLootTable() npc.LootTable {
	return npc.LootTable{
		Currency: &npc.CurrencyDrop{Min: 5, Max: 20},
		Items: []npc.ItemDrop{
			{ItemID: "fang", Chance: 50, MinQty: 1, MaxQty: 1},
			{ItemID: "pelt", Chance: 100, MinQty: 1, MaxQty: 3},
		},
	}
}

func TestLootTable_Validate_AcceptsValid(t *testing.T) {
	lt := validLootTable()
	assert.NoError(t, lt.Validate())
}

func TestLootTable_Validate_Empty(t *testing.T) {
	lt := npc.LootTable{}
	assert.NoError(t, lt.Validate())
}

func TestLootTable_Validate_Rejects(t *testing.T) {
	cases := map[string]npc.LootTable{
		"negative min currency": {Currency: &npc.CurrencyDrop{Min: -1, Max: 10}},
		"min above max":         {Currency: &npc.CurrencyDrop{Min: 20, Max: 10}},
		"chance above 100":      {Items: []npc.ItemDrop{{ItemID: "fang", Chance: 101, MinQty: 1, MaxQty: 1}}},
		"zero chance":           {Items: []npc.ItemDrop{{ItemID: "fang", Chance: 0, MinQty: 1, MaxQty: 1}}},
		"empty item id":         {Items: []npc.ItemDrop{{Chance: 10, MinQty: 1, MaxQty: 1}}},
		"zero min qty":          {Items: []npc.ItemDrop{{ItemID: "fang", Chance: 10, MinQty: 0, MaxQty: 1}}},
		"min qty above max":     {Items: []npc.ItemDrop{{ItemID: "fang", Chance: 10, MinQty: 5, MaxQty: 2}}},
	}
	for name, lt := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, lt.Validate())
		})
	}
}

func TestGenerateLoot_GuaranteedItem(t *testing.T) {
	lt := npc.LootTable{Items: []npc.ItemDrop{{ItemID: "pelt", Chance: 100, MinQty: 1, MaxQty: 1}}}
	src := dice.NewSeededSource(11)
	for i := 0; i < 100; i++ {
		result := npc.GenerateLoot(lt, src)
		require.Len(t, result.Items, 1)
		assert.Equal(t, "pelt", result.Items[0].ItemDefID)
		assert.NotEmpty(t, result.Items[0].InstanceID)
		assert.Equal(t, 1, result.Items[0].Quantity)
		assert.Zero(t, result.Currency)
	}
}

func TestGenerateLoot_ChanceBoundary(t *testing.T) {
	lt := npc.LootTable{Items: []npc.ItemDrop{{ItemID: "fang", Chance: 30, MinQty: 1, MaxQty: 1}}}

	hit := npc.GenerateLoot(lt, dice.NewSequenceSource(29))
	assert.Len(t, hit.Items, 1, "a roll below the chance drops")
	miss := npc.GenerateLoot(lt, dice.NewSequenceSource(30))
	assert.Empty(t, miss.Items)
}

func TestProperty_GenerateLoot_CurrencyAlwaysInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lo := rapid.IntRange(0, 100).Draw(rt, "min")
		hi := rapid.IntRange(max(lo, 1), lo+100).Draw(rt, "max")
		seed := rapid.Uint64().Draw(rt, "seed")
		lt := npc.LootTable{Currency: &npc.CurrencyDrop{Min: lo, Max: hi}}

		result := npc.GenerateLoot(lt, dice.NewSeededSource(seed))
		assert.GreaterOrEqual(rt, result.Currency, lo)
		assert.LessOrEqual(rt, result.Currency, hi)
	})
}

func TestProperty_GenerateLoot_ItemQuantityInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		minQty := rapid.IntRange(1, 10).Draw(rt, "minQty")
		maxQty := rapid.IntRange(minQty, minQty+10).Draw(rt, "maxQty")
		seed := rapid.Uint64().Draw(rt, "seed")
		lt := npc.LootTable{Items: []npc.ItemDrop{{ItemID: "item", Chance: 100, MinQty: minQty, MaxQty: maxQty}}}

		result := npc.GenerateLoot(lt, dice.NewSeededSource(seed))
		require.Len(rt, result.Items, 1)
		assert.GreaterOrEqual(rt, result.Items[0].Quantity, minQty)
		assert.LessOrEqual(rt, result.Items[0].Quantity, maxQty)
	})
}
