package storagetest

import (
	"context"

	"github.com/stretchr/testify/suite"

	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/storage"
)

// Suite runs the shared storage behaviour against Store
type Suite struct {
	suite.Suite
	Store storage.Storage
	Ctx   context.Context
}

func (s *Suite) newGame(code string) *model.Game {
	game := &model.Game{Name: "Curse of Strahd", JoinCode: model.JoinCode(code)}
	s.Require().NoError(s.Store.CreateGame(s.Ctx, game))
	return game
}

func (s *Suite) newPlayer(gameID model.GameID, name string) *model.Player {
	player := &model.Player{GameID: gameID, Name: name, Level: 1, Gold: 10}
	s.Require().NoError(s.Store.CreatePlayer(s.Ctx, player))
	return player
}

func (s *Suite) newPrefab(gameID model.GameID, name string) *model.ItemPrefab {
	prefab := &model.ItemPrefab{GameID: gameID, Name: name, Rarity: model.RarityRare, Value: 50}
	s.Require().NoError(s.Store.CreatePrefab(s.Ctx, prefab))
	return prefab
}

// Game tests

func (s *Suite) TestCreateGameAssignsIncreasingIDs() {
	first := s.newGame("AAAAAA")
	second := s.newGame("BBBBBB")

	s.Positive(int64(first.ID))
	s.Greater(second.ID, first.ID)
}

func (s *Suite) TestGetGameByJoinCode() {
	game := s.newGame("QWERTY")

	found, err := s.Store.GetGameByJoinCode(s.Ctx, "QWERTY")
	s.Require().NoError(err)
	s.Equal(game.ID, found.ID)
	s.Equal("Curse of Strahd", found.Name)
}

func (s *Suite) TestGetGameNotFound() {
	_, err := s.Store.GetGame(s.Ctx, 999)
	s.ErrorIs(err, model.ErrGameNotFound)
	s.ErrorIs(err, model.ErrUnknownEntity)

	_, err = s.Store.GetGameByJoinCode(s.Ctx, "NOPE")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestSaveGameUpdates() {
	game := s.newGame("AAAAAA")
	game.SellingAllowed = true
	s.Require().NoError(s.Store.SaveGame(s.Ctx, game))

	found, err := s.Store.GetGame(s.Ctx, game.ID)
	s.Require().NoError(err)
	s.True(found.SellingAllowed)
}

func (s *Suite) TestSaveGameUnknown() {
	err := s.Store.SaveGame(s.Ctx, &model.Game{ID: 42})
	s.ErrorIs(err, model.ErrGameNotFound)
}

// Player tests

func (s *Suite) TestListPlayersScopedToGame() {
	g1 := s.newGame("AAAAAA")
	g2 := s.newGame("BBBBBB")
	a := s.newPlayer(g1.ID, "Astarion")
	b := s.newPlayer(g1.ID, "Karlach")
	s.newPlayer(g2.ID, "Gale")

	players, err := s.Store.ListPlayers(s.Ctx, g1.ID)
	s.Require().NoError(err)
	s.Require().Len(players, 2)
	s.Equal(a.ID, players[0].ID)
	s.Equal(b.ID, players[1].ID)
}

func (s *Suite) TestSavePlayerPersistsGold() {
	g := s.newGame("AAAAAA")
	p := s.newPlayer(g.ID, "Shadowheart")
	p.Gold = 250
	s.Require().NoError(s.Store.SavePlayer(s.Ctx, p))

	found, err := s.Store.GetPlayer(s.Ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(250, found.Gold)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Store.GetPlayer(s.Ctx, 12345)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestReturnedRowsAreCopies() {
	g := s.newGame("AAAAAA")
	p := s.newPlayer(g.ID, "Lae'zel")

	found, err := s.Store.GetPlayer(s.Ctx, p.ID)
	s.Require().NoError(err)
	found.Gold = 9999

	again, err := s.Store.GetPlayer(s.Ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(10, again.Gold)
}

// Prefab tests

func (s *Suite) TestPrefabRoundTrip() {
	g := s.newGame("AAAAAA")
	prefab := s.newPrefab(g.ID, "Flame Tongue")
	prefab.Description = "A sword wreathed in fire"
	s.Require().NoError(s.Store.SavePrefab(s.Ctx, prefab))

	found, err := s.Store.GetPrefab(s.Ctx, prefab.ID)
	s.Require().NoError(err)
	s.Equal("Flame Tongue", found.Name)
	s.Equal("A sword wreathed in fire", found.Description)
	s.Equal(model.RarityRare, found.Rarity)

	list, err := s.Store.ListPrefabs(s.Ctx, g.ID)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *Suite) TestGetPrefabNotFound() {
	_, err := s.Store.GetPrefab(s.Ctx, 7)
	s.ErrorIs(err, model.ErrPrefabNotFound)
}

// Item tests

func (s *Suite) TestItemOwnerIndexFollowsTransfers() {
	g := s.newGame("AAAAAA")
	a := s.newPlayer(g.ID, "Wyll")
	b := s.newPlayer(g.ID, "Halsin")
	prefab := s.newPrefab(g.ID, "Potion")

	item := &model.Item{PrefabID: prefab.ID, GameID: g.ID, Owner: a.ID, Count: 1}
	s.Require().NoError(s.Store.CreateItem(s.Ctx, item))

	item.Owner = b.ID
	s.Require().NoError(s.Store.SaveItem(s.Ctx, item))

	aItems, err := s.Store.ListItemsByOwner(s.Ctx, a.ID)
	s.Require().NoError(err)
	s.Empty(aItems)

	bItems, err := s.Store.ListItemsByOwner(s.Ctx, b.ID)
	s.Require().NoError(err)
	s.Require().Len(bItems, 1)
	s.Equal(item.ID, bItems[0].ID)
}

func (s *Suite) TestListItemsByPrefab() {
	g := s.newGame("AAAAAA")
	a := s.newPlayer(g.ID, "Minsc")
	prefab := s.newPrefab(g.ID, "Hamster Food")
	other := s.newPrefab(g.ID, "Rope")

	for i := 0; i < 2; i++ {
		s.Require().NoError(s.Store.CreateItem(s.Ctx, &model.Item{PrefabID: prefab.ID, GameID: g.ID, Owner: a.ID, Count: 1}))
	}
	s.Require().NoError(s.Store.CreateItem(s.Ctx, &model.Item{PrefabID: other.ID, GameID: g.ID, Owner: a.ID, Count: 1}))

	items, err := s.Store.ListItemsByPrefab(s.Ctx, prefab.ID)
	s.Require().NoError(err)
	s.Len(items, 2)
}

func (s *Suite) TestDeleteItemRemovesFromIndexes() {
	g := s.newGame("AAAAAA")
	a := s.newPlayer(g.ID, "Jaheira")
	prefab := s.newPrefab(g.ID, "Scimitar")
	item := &model.Item{PrefabID: prefab.ID, GameID: g.ID, Owner: a.ID, Count: 1}
	s.Require().NoError(s.Store.CreateItem(s.Ctx, item))

	s.Require().NoError(s.Store.DeleteItem(s.Ctx, item.ID))

	_, err := s.Store.GetItem(s.Ctx, item.ID)
	s.ErrorIs(err, model.ErrItemNotFound)

	owned, err := s.Store.ListItemsByOwner(s.Ctx, a.ID)
	s.Require().NoError(err)
	s.Empty(owned)

	byPrefab, err := s.Store.ListItemsByPrefab(s.Ctx, prefab.ID)
	s.Require().NoError(err)
	s.Empty(byPrefab)
}

func (s *Suite) TestDeleteMissingItemIsNoop() {
	s.NoError(s.Store.DeleteItem(s.Ctx, 404))
}

func (s *Suite) TestSaveItemUnknown() {
	err := s.Store.SaveItem(s.Ctx, &model.Item{ID: 77})
	s.ErrorIs(err, model.ErrItemNotFound)
}
