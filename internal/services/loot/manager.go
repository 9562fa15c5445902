package loot

import (
	"log/slog"
	"sync"

	"github.com/Merdeus/dndinventory/internal/dependencies/random"
	"github.com/Merdeus/dndinventory/internal/metrics"
	"github.com/Merdeus/dndinventory/internal/model"
)

// Manager owns at most one pool per game
type Manager struct {
	random  random.Random
	policy  CompletionPolicy
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu    sync.Mutex
	pools map[model.GameID]*Pool
}

// NewManager creates a Manager whose pools use policy
func NewManager(rnd random.Random, policy CompletionPolicy, m *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		random:  rnd,
		policy:  policy,
		metrics: m,
		logger:  logger.With(slog.String("component", "loot-manager")),
		pools:   make(map[model.GameID]*Pool),
	}
}

// GetOrCreate returns the game's pool, creating an empty one if needed
func (m *Manager) GetOrCreate(gameID model.GameID) *Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pool, ok := m.pools[gameID]; ok {
		return pool
	}
	pool := NewPool(gameID, m.random, m.policy, m.metrics)
	m.pools[gameID] = pool
	m.logger.Info("loot pool created", slog.Int64("game_id", int64(gameID)))
	return pool
}

// Get returns the game's pool if one exists
func (m *Manager) Get(gameID model.GameID) (*Pool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pool, ok := m.pools[gameID]
	return pool, ok
}

// Clear drops the game's pool. The next GetOrCreate starts a fresh round.
func (m *Manager) Clear(gameID model.GameID) {
	m.mu.Lock()
	_, ok := m.pools[gameID]
	delete(m.pools, gameID)
	m.mu.Unlock()
	if ok {
		m.logger.Info("loot pool cleared", slog.Int64("game_id", int64(gameID)))
	}
}

// Retire drops pool if it is still the game's current pool and reports
// whether it did. Callers use it to apply a resolution exactly once.
func (m *Manager) Retire(gameID model.GameID, pool *Pool) bool {
	m.mu.Lock()
	current, ok := m.pools[gameID]
	if !ok || current != pool {
		m.mu.Unlock()
		return false
	}
	delete(m.pools, gameID)
	m.mu.Unlock()
	m.logger.Info("loot pool retired", slog.Int64("game_id", int64(gameID)))
	return true
}

// IfCurrent runs fn while pool is the game's current pool and reports
// whether it ran. Clear and Retire wait for fn, so anything fn publishes
// cannot follow the announcement of a newer pool.
func (m *Manager) IfCurrent(pool *Pool, fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pools[pool.GameID()] != pool {
		return false
	}
	fn()
	return true
}

// Policy returns the completion policy new pools use
func (m *Manager) Policy() CompletionPolicy {
	return m.policy
}
