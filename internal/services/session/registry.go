package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Merdeus/dndinventory/internal/dependencies/clock"
	"github.com/Merdeus/dndinventory/internal/metrics"
	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/services/tokens"
	"github.com/Merdeus/dndinventory/internal/storage"
)

// Config holds configuration for the session registry
type Config struct {
	// GrantTTL is how long a registration grant can wait to be redeemed
	GrantTTL time.Duration
}

// DefaultConfig returns default registry configuration
func DefaultConfig() Config {
	return Config{
		GrantTTL: 60 * time.Second,
	}
}

// Grant is a pending, single-use registration
type Grant struct {
	Token     string
	Address   string
	GameID    model.GameID
	PlayerID  model.PlayerID
	IsDM      bool
	CreatedAt time.Time
}

// Connection is one live streaming transport
type Connection struct {
	ClientID    int64
	GameID      model.GameID
	PlayerID    model.PlayerID
	IsDM        bool
	Address     string
	ConnectedAt time.Time
	Outbox      *Outbox
}

// Player returns the connection's player id, or nil for the DM
func (c *Connection) Player() *model.PlayerID {
	if c.IsDM {
		return nil
	}
	id := c.PlayerID
	return &id
}

// Handle is what a redeemed grant yields
type Handle struct {
	Conn             *Connection
	CommandToken     string
	ResumeCredential string
}

// Registry owns pending grants and live connections for every game
type Registry struct {
	storage storage.Storage
	codec   *tokens.Codec
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config

	mu        sync.RWMutex
	grants    map[string]*Grant
	conns     map[int64]*Connection
	evictions map[int64]struct{}

	nextClientID atomic.Int64
}

// New creates a Registry
func New(
	storage storage.Storage,
	codec *tokens.Codec,
	clock clock.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg Config,
) *Registry {
	if cfg.GrantTTL == 0 {
		cfg.GrantTTL = DefaultConfig().GrantTTL
	}
	return &Registry{
		storage:   storage,
		codec:     codec,
		clock:     clock,
		metrics:   m,
		logger:    logger.With(slog.String("component", "session-registry")),
		cfg:       cfg,
		grants:    make(map[string]*Grant),
		conns:     make(map[int64]*Connection),
		evictions: make(map[int64]struct{}),
	}
}

// IssueGrant creates a registration grant for playerID in gameID, bound to
// address. model.DMPlayerID requests a DM grant; the caller must already
// have checked the DM password.
func (r *Registry) IssueGrant(ctx context.Context, gameID model.GameID, playerID model.PlayerID, address string) (*Grant, error) {
	if err := r.checkTarget(ctx, gameID, playerID); err != nil {
		return nil, err
	}

	subject := fmt.Sprintf("%d:%d", gameID, playerID)
	grant := &Grant{
		Token:     r.codec.Derive(subject, uuid.NewString(), address),
		Address:   address,
		GameID:    gameID,
		PlayerID:  playerID,
		IsDM:      playerID == model.DMPlayerID,
		CreatedAt: r.clock.Now(),
	}

	r.mu.Lock()
	r.grants[grant.Token] = grant
	r.mu.Unlock()

	r.metrics.GrantIssued()
	r.logger.Info("grant issued",
		slog.Int64("game_id", int64(gameID)),
		slog.Int64("player_id", int64(playerID)),
		slog.String("address", address))

	return grant, nil
}

func (r *Registry) checkTarget(ctx context.Context, gameID model.GameID, playerID model.PlayerID) error {
	if _, err := r.storage.GetGame(ctx, gameID); err != nil {
		if errors.Is(err, model.ErrUnknownEntity) {
			return model.ErrInvalidTarget
		}
		return err
	}

	if playerID == model.DMPlayerID {
		return nil
	}
	if playerID < 0 {
		return model.ErrInvalidTarget
	}

	player, err := r.storage.GetPlayer(ctx, playerID)
	if err != nil {
		if errors.Is(err, model.ErrUnknownEntity) {
			return model.ErrInvalidTarget
		}
		return err
	}
	if player.GameID != gameID {
		return model.ErrInvalidTarget
	}
	return nil
}

// RedeemGrant consumes the grant named by token and opens a connection.
// Unknown, expired and address-mismatched tokens all fail with
// ErrInvalidOrExpiredToken.
func (r *Registry) RedeemGrant(token, address string) (*Handle, error) {
	now := r.clock.Now()

	r.mu.Lock()
	grant, ok := r.grants[token]
	if !ok || grant.Address != address {
		r.mu.Unlock()
		r.reject("redeem", address)
		return nil, model.ErrInvalidOrExpiredToken
	}
	if now.Sub(grant.CreatedAt) > r.cfg.GrantTTL {
		delete(r.grants, token)
		r.mu.Unlock()
		r.reject("redeem", address)
		return nil, model.ErrInvalidOrExpiredToken
	}

	credential, err := r.codec.SealCredential(tokens.ResumeClaims{
		GameID:   grant.GameID,
		PlayerID: grant.PlayerID,
		IsDM:     grant.IsDM,
	}, now)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	delete(r.grants, token)
	conn := &Connection{
		ClientID:    r.nextClientID.Add(1),
		GameID:      grant.GameID,
		PlayerID:    grant.PlayerID,
		IsDM:        grant.IsDM,
		Address:     address,
		ConnectedAt: now,
		Outbox:      newOutbox(),
	}
	r.conns[conn.ClientID] = conn
	r.mu.Unlock()

	r.metrics.ConnectionOpened()
	r.logger.Info("connection opened",
		slog.Int64("client_id", conn.ClientID),
		slog.Int64("game_id", int64(conn.GameID)),
		slog.Bool("is_dm", conn.IsDM))

	return &Handle{
		Conn:             conn,
		CommandToken:     r.codec.CommandToken(conn.ClientID, address),
		ResumeCredential: credential,
	}, nil
}

// ResolveConnection returns the live connection for clientID
func (r *Registry) ResolveConnection(clientID int64) (*Connection, error) {
	r.mu.RLock()
	conn, ok := r.conns[clientID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrConnectionNotFound
	}
	return conn, nil
}

// AuthenticateCommand checks a command token against the caller's address
// and returns the connection it belongs to.
func (r *Registry) AuthenticateCommand(token, address string) (*Connection, error) {
	clientID, err := r.codec.ParseCommandToken(token, address)
	if err != nil {
		r.reject("command", address)
		return nil, err
	}
	conn, err := r.ResolveConnection(clientID)
	if err != nil {
		r.reject("command", address)
		return nil, model.ErrInvalidOrExpiredToken
	}
	return conn, nil
}

// ResumeViaCredential validates a resume credential and mints a fresh grant
// for the identity it carries. The credential never grants a connection
// directly.
func (r *Registry) ResumeViaCredential(ctx context.Context, credential, address string) (*Grant, error) {
	claims, err := r.codec.OpenCredential(credential, r.clock.Now())
	if err != nil {
		r.reject("resume", address)
		return nil, err
	}
	if claims.IsDM != (claims.PlayerID == model.DMPlayerID) {
		r.reject("resume", address)
		return nil, model.ErrInvalidOrExpiredToken
	}

	grant, err := r.IssueGrant(ctx, claims.GameID, claims.PlayerID, address)
	if err != nil {
		if errors.Is(err, model.ErrUnknownEntity) {
			r.reject("resume", address)
			return nil, model.ErrInvalidOrExpiredToken
		}
		return nil, err
	}
	return grant, nil
}

// Evict removes a connection and closes its outbox. Unknown ids are ignored.
func (r *Registry) Evict(clientID int64) {
	r.mu.Lock()
	conn, ok := r.conns[clientID]
	if ok {
		delete(r.conns, clientID)
	}
	delete(r.evictions, clientID)
	r.mu.Unlock()

	if !ok {
		return
	}
	conn.Outbox.Close()
	r.metrics.ConnectionClosed()
	r.logger.Info("connection evicted",
		slog.Int64("client_id", clientID),
		slog.Duration("connection_duration", r.clock.Now().Sub(conn.ConnectedAt)))
}

// ScheduleEviction marks a connection for removal on the next sweep
func (r *Registry) ScheduleEviction(clientID int64) {
	r.mu.Lock()
	if _, ok := r.conns[clientID]; ok {
		r.evictions[clientID] = struct{}{}
	}
	r.mu.Unlock()
}

// SweepEvictions evicts every scheduled connection and returns how many
func (r *Registry) SweepEvictions() int {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.evictions))
	for id := range r.evictions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Evict(id)
	}
	return len(ids)
}

// PruneExpiredGrants drops grants older than the grant TTL (call
// periodically)
func (r *Registry) PruneExpiredGrants() int {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	pruned := 0
	for token, grant := range r.grants {
		if now.Sub(grant.CreatedAt) > r.cfg.GrantTTL {
			delete(r.grants, token)
			pruned++
		}
	}
	return pruned
}

// ConnectionsForGame returns the live connections of a game ordered by
// client id
func (r *Registry) ConnectionsForGame(gameID model.GameID) []*Connection {
	r.mu.RLock()
	conns := make([]*Connection, 0)
	for _, conn := range r.conns {
		if conn.GameID == gameID {
			conns = append(conns, conn)
		}
	}
	r.mu.RUnlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].ClientID < conns[j].ClientID })
	return conns
}

// PendingGrants returns the number of unredeemed grants
func (r *Registry) PendingGrants() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.grants)
}

// ConnectionCount returns the number of live connections
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// reject logs a refused token without any part of the token itself
func (r *Registry) reject(stage, address string) {
	r.metrics.GrantRejected()
	r.logger.Warn("token rejected",
		slog.String("stage", stage),
		slog.String("address", address))
}
