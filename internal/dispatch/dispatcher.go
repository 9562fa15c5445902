package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/Merdeus/dndinventory/internal/metrics"
	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/services/broadcast"
	"github.com/Merdeus/dndinventory/internal/services/inventory"
	"github.com/Merdeus/dndinventory/internal/services/loot"
	"github.com/Merdeus/dndinventory/internal/services/session"
)

// Result is what a successful action returns to its caller
type Result struct {
	Message string `json:"msg,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Call describes who submitted an action. Conn is nil for actions that run
// before a connection exists.
type Call struct {
	Address string
	Conn    *session.Connection
}

func (c *Call) actor() inventory.Actor {
	return inventory.Actor{IsDM: c.Conn.IsDM, PlayerID: c.Conn.PlayerID}
}

func (c *Call) requireDM() error {
	if !c.Conn.IsDM {
		return model.ErrDMOnly
	}
	return nil
}

type handlerFunc func(ctx context.Context, call *Call, raw json.RawMessage) (*Result, error)

// register adds a handler whose request body decodes into T
func register[T any](table map[string]handlerFunc, name string, fn func(context.Context, *Call, T) (*Result, error)) {
	table[name] = func(ctx context.Context, call *Call, raw json.RawMessage) (*Result, error) {
		var req T
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, model.Malformed("invalid %s request", name)
		}
		return fn(ctx, call, req)
	}
}

type envelope struct {
	Token  string `json:"token"`
	Action string `json:"action"`
}

// Dispatcher routes named actions to their handlers. Actions in the public
// table run without a connection; every other action needs a valid command
// token.
type Dispatcher struct {
	inventory *inventory.Service
	loot      *loot.Manager
	registry  *session.Registry
	router    *broadcast.Router
	metrics   *metrics.Metrics
	logger    *slog.Logger

	public  map[string]handlerFunc
	actions map[string]handlerFunc
}

// New creates a Dispatcher with every action registered
func New(
	inv *inventory.Service,
	lootManager *loot.Manager,
	registry *session.Registry,
	router *broadcast.Router,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Dispatcher {
	d := &Dispatcher{
		inventory: inv,
		loot:      lootManager,
		registry:  registry,
		router:    router,
		metrics:   m,
		logger:    logger.With(slog.String("component", "dispatch")),
		public:    make(map[string]handlerFunc),
		actions:   make(map[string]handlerFunc),
	}
	d.registerSessionActions()
	d.registerInventoryActions()
	d.registerLootActions()
	return d
}

// Dispatch decodes body, authenticates it unless the action is public and
// runs the handler. address is the caller's network origin.
func (d *Dispatcher) Dispatch(ctx context.Context, address string, body []byte) (*Result, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, model.Malformed("request body must be a JSON object")
	}
	if env.Action == "" {
		return nil, model.Malformed("action is required")
	}

	call := &Call{Address: address}
	handler, ok := d.public[env.Action]
	if !ok {
		handler, ok = d.actions[env.Action]
		if !ok {
			d.metrics.ActionHandled("unknown", outcome(model.ErrUnknownAction))
			return nil, model.ErrUnknownAction
		}
		conn, err := d.registry.AuthenticateCommand(env.Token, address)
		if err != nil {
			d.metrics.ActionHandled(env.Action, outcome(err))
			return nil, err
		}
		call.Conn = conn
	}

	result, err := handler(ctx, call, body)
	d.metrics.ActionHandled(env.Action, outcome(err))
	if err != nil {
		d.logger.Debug("action failed",
			slog.String("action", env.Action),
			slog.Any("error", err))
		return nil, err
	}
	if result == nil {
		result = &Result{}
	}
	return result, nil
}

// Actions lists every registered action name
func (d *Dispatcher) Actions() []string {
	names := make([]string, 0, len(d.public)+len(d.actions))
	for name := range d.public {
		names = append(names, name)
	}
	for name := range d.actions {
		names = append(names, name)
	}
	return names
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrInvalidOrExpiredToken):
		return "invalid_token"
	case errors.Is(err, model.ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, model.ErrWrongPhase):
		return "wrong_phase"
	case errors.Is(err, model.ErrUnknownEntity):
		return "unknown_entity"
	case errors.Is(err, model.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, model.ErrMalformedRequest):
		return "malformed"
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	}
	return "error"
}
