package inventory

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Merdeus/dndinventory/internal/dependencies/clock"
	"github.com/Merdeus/dndinventory/internal/dependencies/random"
	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/storage"
)

const (
	// JoinCodeLength is the length of generated join codes
	JoinCodeLength = 6
	// JoinCodeAlphabet is the characters used in join codes
	JoinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	maxJoinCodeAttempts = 16
)

var errJoinCodeExhausted = errors.New("could not allocate a free join code")

// Config holds configuration for the inventory service
type Config struct {
	// DMFallbackPassword opens the DM role of every game when set
	DMFallbackPassword string
	BcryptCost         int
}

// DefaultConfig returns default inventory configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost: bcrypt.DefaultCost,
	}
}

// Actor is whoever performs an inventory action
type Actor struct {
	IsDM     bool
	PlayerID model.PlayerID
}

// Service owns games, players, prefabs and items in the durable store. It
// does not publish events; callers announce the changes it returns.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
	cfg     Config
}

// New creates a Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, logger *slog.Logger, cfg Config) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}
	return &Service{
		storage: storage,
		clock:   clock,
		random:  random,
		logger:  logger.With(slog.String("component", "inventory")),
		cfg:     cfg,
	}
}

// Games

// CreateGame creates a game with a fresh join code and a hashed DM password
func (s *Service) CreateGame(ctx context.Context, name, description, dmPassword string) (*model.Game, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.Malformed("game name is required")
	}
	if dmPassword == "" {
		return nil, model.Malformed("dm password is required")
	}

	code, err := s.newJoinCode(ctx)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dmPassword), s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	game := &model.Game{
		Name:           name,
		Description:    description,
		JoinCode:       code,
		DMPasswordHash: string(hash),
		CreatedAt:      s.clock.Now(),
	}
	if err := s.storage.CreateGame(ctx, game); err != nil {
		return nil, err
	}

	s.logger.Info("game created",
		slog.Int64("game_id", int64(game.ID)),
		slog.String("join_code", string(code)))
	return game, nil
}

func (s *Service) newJoinCode(ctx context.Context) (model.JoinCode, error) {
	for i := 0; i < maxJoinCodeAttempts; i++ {
		code := model.JoinCode(s.random.String(JoinCodeLength, JoinCodeAlphabet))
		if len(code) != JoinCodeLength {
			continue
		}
		_, err := s.storage.GetGameByJoinCode(ctx, code)
		if errors.Is(err, model.ErrGameNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errJoinCodeExhausted
}

// JoinGame finds a game by join code, case-insensitively
func (s *Service) JoinGame(ctx context.Context, code string) (*model.Game, []*model.Player, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil, model.Malformed("join code is required")
	}
	game, err := s.storage.GetGameByJoinCode(ctx, model.JoinCode(code))
	if err != nil {
		return nil, nil, err
	}
	players, err := s.storage.ListPlayers(ctx, game.ID)
	if err != nil {
		return nil, nil, err
	}
	return game, players, nil
}

// GetGame returns a game by id
func (s *Service) GetGame(ctx context.Context, gameID model.GameID) (*model.Game, error) {
	return s.storage.GetGame(ctx, gameID)
}

// VerifyDMPassword checks password against the game's DM secret or the
// configured fallback
func (s *Service) VerifyDMPassword(ctx context.Context, gameID model.GameID, password string) error {
	game, err := s.storage.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	if password == "" {
		return model.ErrInvalidDMPassword
	}
	if fallback := s.cfg.DMFallbackPassword; fallback != "" &&
		subtle.ConstantTimeCompare([]byte(password), []byte(fallback)) == 1 {
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(game.DMPasswordHash), []byte(password)) != nil {
		return model.ErrInvalidDMPassword
	}
	return nil
}

// ToggleSelling flips whether players may sell and returns the new value
func (s *Service) ToggleSelling(ctx context.Context, gameID model.GameID) (bool, error) {
	game, err := s.storage.GetGame(ctx, gameID)
	if err != nil {
		return false, err
	}
	game.SellingAllowed = !game.SellingAllowed
	if err := s.storage.SaveGame(ctx, game); err != nil {
		return false, err
	}
	return game.SellingAllowed, nil
}

// Players

// CreatePlayer adds a player to a game. Negative starting gold becomes 0.
func (s *Service) CreatePlayer(ctx context.Context, gameID model.GameID, name string, gold int) (*model.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.Malformed("player name is required")
	}
	if _, err := s.storage.GetGame(ctx, gameID); err != nil {
		return nil, err
	}

	player := &model.Player{
		GameID: gameID,
		Name:   name,
		Level:  1,
		Gold:   max(gold, 0),
	}
	if err := s.storage.CreatePlayer(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

// GetPlayer returns a player of gameID
func (s *Service) GetPlayer(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.Player, error) {
	player, err := s.storage.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player.GameID != gameID {
		return nil, model.ErrPlayerNotFound
	}
	return player, nil
}

// ListPlayers returns the players of a game
func (s *Service) ListPlayers(ctx context.Context, gameID model.GameID) ([]*model.Player, error) {
	return s.storage.ListPlayers(ctx, gameID)
}

// SetGold sets a player's gold, clamped at 0
func (s *Service) SetGold(ctx context.Context, gameID model.GameID, playerID model.PlayerID, gold int) (*model.Player, error) {
	player, err := s.GetPlayer(ctx, gameID, playerID)
	if err != nil {
		return nil, err
	}
	player.Gold = max(gold, 0)
	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

// AddGold adds delta to a player's gold, clamped at 0
func (s *Service) AddGold(ctx context.Context, gameID model.GameID, playerID model.PlayerID, delta int) (*model.Player, error) {
	player, err := s.GetPlayer(ctx, gameID, playerID)
	if err != nil {
		return nil, err
	}
	player.Gold = max(player.Gold+delta, 0)
	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

// Prefabs

// PrefabInput is the editable part of a prefab
type PrefabInput struct {
	Name        string
	Description string
	Type        model.ItemType
	Rarity      model.Rarity
	Value       int
	Image       string
	Stackable   bool
	Unique      bool
}

func (in PrefabInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return model.Malformed("item name is required")
	}
	if !in.Rarity.Valid() {
		return model.Malformed("unknown rarity %d", int(in.Rarity))
	}
	if in.Type < model.ItemTypeWeapon || in.Type > model.ItemTypeWondrous {
		return model.Malformed("unknown item type %d", int(in.Type))
	}
	if in.Value < 0 {
		return model.Malformed("item value must not be negative")
	}
	return nil
}

func (in PrefabInput) applyTo(p *model.ItemPrefab) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Type = in.Type
	p.Rarity = in.Rarity
	p.Value = in.Value
	p.Image = in.Image
	p.Stackable = in.Stackable
	p.Unique = in.Unique
}

// CreatePrefab adds an item template to a game
func (s *Service) CreatePrefab(ctx context.Context, gameID model.GameID, in PrefabInput) (*model.ItemPrefab, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.storage.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	prefab := &model.ItemPrefab{GameID: gameID}
	in.applyTo(prefab)
	if err := s.storage.CreatePrefab(ctx, prefab); err != nil {
		return nil, err
	}
	return prefab, nil
}

// EditPrefab rewrites a prefab and returns the items built from it, so the
// caller can refresh their holders
func (s *Service) EditPrefab(ctx context.Context, gameID model.GameID, prefabID model.PrefabID, in PrefabInput) (*model.ItemPrefab, []*model.Item, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}
	prefab, err := s.GetPrefab(ctx, gameID, prefabID)
	if err != nil {
		return nil, nil, err
	}
	in.applyTo(prefab)
	if err := s.storage.SavePrefab(ctx, prefab); err != nil {
		return nil, nil, err
	}
	items, err := s.storage.ListItemsByPrefab(ctx, prefabID)
	if err != nil {
		return nil, nil, err
	}
	return prefab, items, nil
}

// GetPrefab returns a prefab of gameID
func (s *Service) GetPrefab(ctx context.Context, gameID model.GameID, prefabID model.PrefabID) (*model.ItemPrefab, error) {
	prefab, err := s.storage.GetPrefab(ctx, prefabID)
	if err != nil {
		return nil, err
	}
	if prefab.GameID != gameID {
		return nil, model.ErrPrefabNotFound
	}
	return prefab, nil
}

// ListPrefabs returns the prefabs of a game
func (s *Service) ListPrefabs(ctx context.Context, gameID model.GameID) ([]*model.ItemPrefab, error) {
	return s.storage.ListPrefabs(ctx, gameID)
}

// Prefabs returns the game's catalogue for the wire
func (s *Service) Prefabs(ctx context.Context, gameID model.GameID) ([]model.PrefabView, error) {
	prefabs, err := s.storage.ListPrefabs(ctx, gameID)
	if err != nil {
		return nil, err
	}
	views := make([]model.PrefabView, 0, len(prefabs))
	for _, p := range prefabs {
		views = append(views, model.NewPrefabView(p))
	}
	return views, nil
}

// Items

// GiveItem puts one of prefabID into a player's inventory. Stackable
// prefabs grow an existing stack; unique prefabs may exist only once per
// game.
func (s *Service) GiveItem(ctx context.Context, gameID model.GameID, prefabID model.PrefabID, playerID model.PlayerID) (*model.Item, *model.ItemPrefab, error) {
	prefab, err := s.GetPrefab(ctx, gameID, prefabID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.GetPlayer(ctx, gameID, playerID); err != nil {
		return nil, nil, err
	}

	existing, err := s.storage.ListItemsByPrefab(ctx, prefabID)
	if err != nil {
		return nil, nil, err
	}
	if prefab.Unique && len(existing) > 0 {
		return nil, nil, model.ErrUniqueItemTaken
	}

	if prefab.Stackable {
		for _, item := range existing {
			if item.Owner == playerID {
				item.Count++
				if err := s.storage.SaveItem(ctx, item); err != nil {
					return nil, nil, err
				}
				return item, prefab, nil
			}
		}
	}

	item := &model.Item{PrefabID: prefabID, GameID: gameID, Owner: playerID, Count: 1}
	if err := s.storage.CreateItem(ctx, item); err != nil {
		return nil, nil, err
	}
	return item, prefab, nil
}

// GetItem returns an item of gameID with its prefab
func (s *Service) GetItem(ctx context.Context, gameID model.GameID, itemID model.ItemID) (*model.Item, *model.ItemPrefab, error) {
	item, err := s.storage.GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item.GameID != gameID {
		return nil, nil, model.ErrItemNotFound
	}
	prefab, err := s.storage.GetPrefab(ctx, item.PrefabID)
	if err != nil {
		return nil, nil, err
	}
	return item, prefab, nil
}

// SendItem moves an item the sender owns to another player of the game
func (s *Service) SendItem(ctx context.Context, gameID model.GameID, itemID model.ItemID, from, to model.PlayerID) (*model.Item, *model.ItemPrefab, error) {
	item, prefab, err := s.GetItem(ctx, gameID, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item.Owner != from {
		return nil, nil, model.ErrNotOwner
	}
	if from == to {
		return nil, nil, model.Malformed("cannot send an item to its owner")
	}
	if _, err := s.GetPlayer(ctx, gameID, to); err != nil {
		return nil, nil, err
	}

	item.Owner = to
	if err := s.storage.SaveItem(ctx, item); err != nil {
		return nil, nil, err
	}
	return item, prefab, nil
}

// DeleteItem removes an item. Only the DM and the owner may do this.
func (s *Service) DeleteItem(ctx context.Context, gameID model.GameID, itemID model.ItemID, actor Actor) (*model.Item, *model.ItemPrefab, error) {
	item, prefab, err := s.GetItem(ctx, gameID, itemID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsDM && item.Owner != actor.PlayerID {
		return nil, nil, model.ErrNotOwner
	}
	if err := s.storage.DeleteItem(ctx, itemID); err != nil {
		return nil, nil, err
	}
	return item, prefab, nil
}

// Sale is the outcome of SellItem
type Sale struct {
	Item   *model.Item
	Prefab *model.ItemPrefab
	Player *model.Player
	Earned int
}

// SellItem turns an item into gold for its owner: value times the stack
// size. Quest items cannot be sold, and nothing sells while the game has
// selling disabled.
func (s *Service) SellItem(ctx context.Context, gameID model.GameID, itemID model.ItemID, seller Actor) (*Sale, error) {
	if seller.IsDM {
		return nil, model.ErrDMCannotSell
	}
	item, prefab, err := s.GetItem(ctx, gameID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Owner != seller.PlayerID {
		return nil, model.ErrNotOwner
	}
	if prefab.IsQuestItem() {
		return nil, model.ErrQuestItem
	}
	game, err := s.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !game.SellingAllowed {
		return nil, model.ErrSellingDisabled
	}
	player, err := s.GetPlayer(ctx, gameID, seller.PlayerID)
	if err != nil {
		return nil, err
	}

	earned := prefab.Value * max(item.Count, 1)
	player.Gold += earned
	if err := s.storage.DeleteItem(ctx, itemID); err != nil {
		return nil, err
	}
	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	s.logger.Info("item sold",
		slog.Int64("game_id", int64(gameID)),
		slog.Int64("player_id", int64(player.ID)),
		slog.Int("earned", earned))
	return &Sale{Item: item, Prefab: prefab, Player: player, Earned: earned}, nil
}

// Views

// Inventory returns a player's items keyed by item id
func (s *Service) Inventory(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (map[model.ItemID]model.ItemView, error) {
	prefabs, err := s.prefabIndex(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return s.inventoryWith(ctx, playerID, prefabs)
}

func (s *Service) inventoryWith(ctx context.Context, playerID model.PlayerID, prefabs map[model.PrefabID]*model.ItemPrefab) (map[model.ItemID]model.ItemView, error) {
	items, err := s.storage.ListItemsByOwner(ctx, playerID)
	if err != nil {
		return nil, err
	}
	out := make(map[model.ItemID]model.ItemView, len(items))
	for _, item := range items {
		prefab, ok := prefabs[item.PrefabID]
		if !ok {
			return nil, fmt.Errorf("item %d: %w", item.ID, model.ErrPrefabNotFound)
		}
		out[item.ID] = model.NewItemView(item, prefab)
	}
	return out, nil
}

func (s *Service) prefabIndex(ctx context.Context, gameID model.GameID) (map[model.PrefabID]*model.ItemPrefab, error) {
	prefabs, err := s.storage.ListPrefabs(ctx, gameID)
	if err != nil {
		return nil, err
	}
	index := make(map[model.PrefabID]*model.ItemPrefab, len(prefabs))
	for _, p := range prefabs {
		index[p.ID] = p
	}
	return index, nil
}

// GameInfo builds the full resync state for the DM (every inventory) or for
// one player (their own inventory)
func (s *Service) GameInfo(ctx context.Context, gameID model.GameID, actor Actor) (*model.GameInfoPayload, error) {
	game, err := s.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	players, err := s.storage.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	prefabs, err := s.prefabIndex(ctx, gameID)
	if err != nil {
		return nil, err
	}

	info := &model.GameInfoPayload{
		Game: model.GameSummary{
			ID:             game.ID,
			Name:           game.Name,
			JoinCode:       game.JoinCode,
			SellingAllowed: game.SellingAllowed,
		},
		Players: make([]model.PlayerSummary, 0, len(players)),
		IsDM:    actor.IsDM,
	}
	for _, p := range players {
		info.Players = append(info.Players, model.PlayerSummary{ID: p.ID, Name: p.Name, Gold: p.Gold})
	}

	if actor.IsDM {
		info.Inventories = make(map[model.PlayerID]model.PlayerInventory, len(players))
		for _, summary := range info.Players {
			inv, err := s.inventoryWith(ctx, summary.ID, prefabs)
			if err != nil {
				return nil, err
			}
			info.Inventories[summary.ID] = model.PlayerInventory{PlayerSummary: summary, Inventory: inv}
		}
		return info, nil
	}

	playerID := actor.PlayerID
	info.Player = &playerID
	info.Inventory, err = s.inventoryWith(ctx, playerID, prefabs)
	if err != nil {
		return nil, err
	}
	return info, nil
}
