package broadcast

import (
	"encoding/json"
	"log/slog"

	"github.com/Merdeus/dndinventory/internal/metrics"
	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/services/session"
)

// Shaper builds the payload one recipient role sees. A recipient whose
// payload cannot be built is skipped.
type Shaper func(Recipient) (any, error)

// Same returns a Shaper that gives every recipient the same payload
func Same(payload any) Shaper {
	return func(Recipient) (any, error) { return payload, nil }
}

// Router fans events out to the live connections of a game
type Router struct {
	registry *session.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Router over registry
func New(registry *session.Registry, m *metrics.Metrics, logger *slog.Logger) *Router {
	return &Router{
		registry: registry,
		metrics:  m,
		logger:   logger.With(slog.String("component", "broadcast-router")),
	}
}

// Publish enqueues event on every connection of gameID that vis includes at
// this moment. Payloads are encoded once per recipient role. Connections
// whose outbox rejects the message are scheduled for eviction. It returns
// the number of connections the event was delivered to.
func (r *Router) Publish(gameID model.GameID, event model.EventType, vis Visibility, shape Shaper) int {
	r.registry.SweepEvictions()

	encoded := make(map[Recipient][]byte)
	delivered, failed := 0, 0

	for _, conn := range r.registry.ConnectionsForGame(gameID) {
		if !vis.Includes(conn) {
			continue
		}

		who := recipientOf(conn)
		data, ok := encoded[who]
		if !ok {
			var err error
			data, err = encode(shape, who)
			if err != nil {
				r.logger.Error("failed to build event payload",
					slog.String("event", string(event)),
					slog.Int64("game_id", int64(gameID)),
					slog.Bool("is_dm", who.IsDM),
					slog.Any("error", err))
				encoded[who] = nil
				continue
			}
			encoded[who] = data
		}
		if data == nil {
			continue
		}

		if err := conn.Outbox.Push(session.Message{Event: event, Data: data}); err != nil {
			failed++
			r.registry.ScheduleEviction(conn.ClientID)
			continue
		}
		delivered++
	}

	r.metrics.EventPublished(string(event), delivered, failed)
	if failed > 0 {
		r.logger.Debug("event delivery failed for some connections",
			slog.String("event", string(event)),
			slog.Int("failed", failed))
	}
	return delivered
}

func encode(shape Shaper, who Recipient) ([]byte, error) {
	payload, err := shape(who)
	if err != nil {
		return nil, err
	}
	return json.Marshal(payload)
}

// SendDirect enqueues an event on a single connection
func (r *Router) SendDirect(conn *session.Connection, event model.EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := conn.Outbox.Push(session.Message{Event: event, Data: data}); err != nil {
		r.registry.ScheduleEviction(conn.ClientID)
		return err
	}
	r.metrics.EventPublished(string(event), 1, 0)
	return nil
}

// ItemUpdated announces a created or changed item to its owner and the DM.
// The DM payload names the owner; the owner's does not.
func (r *Router) ItemUpdated(gameID model.GameID, owner model.PlayerID, item model.ItemView) {
	r.Publish(gameID, model.EventInventoryUpdate, OwnerAndDM(owner), func(who Recipient) (any, error) {
		if who.IsDM {
			return model.DMItemPayload{PlayerID: owner, ItemID: item.ID, Item: item}, nil
		}
		return model.OwnerItemPayload{ItemID: item.ID, Item: item}, nil
	})
}

// ItemRemoved announces an item leaving owner's inventory
func (r *Router) ItemRemoved(gameID model.GameID, owner model.PlayerID, itemID model.ItemID) {
	r.Publish(gameID, model.EventItemRemoval, OwnerAndDM(owner),
		Same(model.ItemRemovalPayload{PlayerID: owner, ItemID: itemID}))
}

// GoldUpdated announces a player's gold to them and the DM
func (r *Router) GoldUpdated(gameID model.GameID, player model.PlayerID, gold int) {
	r.Publish(gameID, model.EventGoldUpdate, OwnerAndDM(player),
		Same(model.GoldPayload{PlayerID: player, Gold: gold}))
}

// Notify sends a human readable message
func (r *Router) Notify(gameID model.GameID, vis Visibility, msg string) {
	r.Publish(gameID, model.EventNotification, vis, Same(model.NotificationPayload{Message: msg}))
}

// SellingToggled announces the game's selling switch to everyone
func (r *Router) SellingToggled(gameID model.GameID, allowed bool) {
	r.Publish(gameID, model.EventSellingToggled, AllInGame(), Same(model.SellingPayload{Allowed: allowed}))
}

// LootUpdated sends the full loot pool snapshot to everyone
func (r *Router) LootUpdated(gameID model.GameID, snapshot any) {
	r.Publish(gameID, model.EventLootUpdate, AllInGame(), Same(snapshot))
}

// LootResolved sends the applied loot distribution to everyone
func (r *Router) LootResolved(gameID model.GameID, result any) {
	r.Publish(gameID, model.EventLootResolved, AllInGame(), Same(result))
}

// GameInfoChanged pushes a fresh game_info to every connection, shaped per
// recipient by info
func (r *Router) GameInfoChanged(gameID model.GameID, info Shaper) {
	r.Publish(gameID, model.EventGameInfo, AllInGame(), info)
}
