package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	mini    *miniredis.Miniredis
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	s.storage = NewWithClient(client, DefaultConfig())
	s.Store = s.storage
	s.Ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

// Redis-specific layout tests

func (s *StorageSuite) TestKeysUsePrefix() {
	game := &model.Game{Name: "Tomb of Annihilation", JoinCode: "TOMBAA"}
	s.Require().NoError(s.storage.CreateGame(s.Ctx, game))

	s.True(s.mini.Exists(gameKey(game.ID)))
	s.True(s.mini.Exists(joinCodeIndexKey("TOMBAA")))

	id, err := s.mini.Get(counterKey(counterGame))
	s.Require().NoError(err)
	s.Equal("1", id)
}

func (s *StorageSuite) TestListSkipsDanglingIndexMembers() {
	game := &model.Game{Name: "Rime", JoinCode: "RIMEAA"}
	s.Require().NoError(s.storage.CreateGame(s.Ctx, game))
	player := &model.Player{GameID: game.ID, Name: "Drizzt"}
	s.Require().NoError(s.storage.CreatePlayer(s.Ctx, player))

	_, err := s.mini.SetAdd(gamePlayersIndexKey(game.ID), playerKey(999))
	s.Require().NoError(err)

	players, err := s.storage.ListPlayers(s.Ctx, game.ID)
	s.Require().NoError(err)
	s.Require().Len(players, 1)
	s.Equal("Drizzt", players[0].Name)
}

func (s *StorageSuite) TestNewRejectsBadURL() {
	cfg := DefaultConfig()
	cfg.URL = "not-a-url"
	_, err := New(cfg)
	s.Error(err)
}
