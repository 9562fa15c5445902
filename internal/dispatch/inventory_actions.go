package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/services/broadcast"
	"github.com/Merdeus/dndinventory/internal/services/inventory"
)

type emptyRequest struct{}

type itemRequest struct {
	ItemID model.ItemID `json:"item_id"`
}

type giveItemRequest struct {
	PrefabID model.PrefabID `json:"item_id"`
	PlayerID model.PlayerID `json:"player_id"`
}

type sendItemRequest struct {
	ItemID   model.ItemID   `json:"item_id"`
	PlayerID model.PlayerID `json:"player_id"`
}

// prefabFields is the item form the DM submits
type prefabFields struct {
	ID          model.PrefabID `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Value       int            `json:"value"`
	Image       string         `json:"image"`
	Rarity      model.Rarity   `json:"rarity"`
	Type        model.ItemType `json:"itemType"`
	Unique      bool           `json:"isUnique"`
	Stackable   bool           `json:"isStackable"`
}

func (f prefabFields) input() inventory.PrefabInput {
	return inventory.PrefabInput{
		Name:        f.Name,
		Description: f.Description,
		Type:        f.Type,
		Rarity:      f.Rarity,
		Value:       f.Value,
		Image:       f.Image,
		Stackable:   f.Stackable,
		Unique:      f.Unique,
	}
}

type prefabRequest struct {
	Item *prefabFields `json:"item"`
}

type createPlayerRequest struct {
	Name string `json:"player_name"`
	Gold int    `json:"gold"`
}

type setGoldRequest struct {
	PlayerID model.PlayerID `json:"player_id"`
	Gold     *int           `json:"gold"`
}

func (d *Dispatcher) registerInventoryActions() {
	register(d.actions, "GetGameInfo", d.getGameInfo)
	register(d.actions, "GiveItem", d.giveItem)
	register(d.actions, "SendItem", d.sendItem)
	register(d.actions, "DeleteItem", d.deleteItem)
	register(d.actions, "SellItem", d.sellItem)
	register(d.actions, "EditItem", d.editItem)
	register(d.actions, "CreateItem", d.createItem)
	register(d.actions, "CreatePlayer", d.createPlayer)
	register(d.actions, "SetPlayerGold", d.setPlayerGold)
	register(d.actions, "ToggleSelling", d.toggleSelling)
}

// getGameInfo resyncs the caller's stream and returns the same state
func (d *Dispatcher) getGameInfo(ctx context.Context, call *Call, _ emptyRequest) (*Result, error) {
	info, err := d.inventory.GameInfo(ctx, call.Conn.GameID, call.actor())
	if err != nil {
		return nil, err
	}
	_ = d.router.SendDirect(call.Conn, model.EventGameInfo, info)

	if call.Conn.IsDM {
		prefabs, err := d.inventory.Prefabs(ctx, call.Conn.GameID)
		if err != nil {
			return nil, err
		}
		_ = d.router.SendDirect(call.Conn, model.EventItemList, model.ItemListPayload{Items: prefabs})
	}
	return &Result{Data: info}, nil
}

func (d *Dispatcher) giveItem(ctx context.Context, call *Call, req giveItemRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	item, prefab, err := d.inventory.GiveItem(ctx, call.Conn.GameID, req.PrefabID, req.PlayerID)
	if err != nil {
		return nil, err
	}

	gameID := call.Conn.GameID
	d.router.ItemUpdated(gameID, item.Owner, model.NewItemView(item, prefab))
	d.router.Notify(gameID, broadcast.OwnerOnly(item.Owner), fmt.Sprintf("You received %s", prefab.Name))
	return &Result{Message: fmt.Sprintf("Gave %s", prefab.Name), Data: model.NewItemView(item, prefab)}, nil
}

func (d *Dispatcher) sendItem(ctx context.Context, call *Call, req sendItemRequest) (*Result, error) {
	if call.Conn.IsDM {
		return nil, model.ErrNotOwner
	}
	from := call.Conn.PlayerID
	item, prefab, err := d.inventory.SendItem(ctx, call.Conn.GameID, req.ItemID, from, req.PlayerID)
	if err != nil {
		return nil, err
	}
	sender, err := d.inventory.GetPlayer(ctx, call.Conn.GameID, from)
	if err != nil {
		return nil, err
	}

	gameID := call.Conn.GameID
	d.router.ItemRemoved(gameID, from, item.ID)
	d.router.ItemUpdated(gameID, item.Owner, model.NewItemView(item, prefab))
	d.router.Notify(gameID, broadcast.OwnerOnly(item.Owner),
		fmt.Sprintf("You have received %s from %s", prefab.Name, sender.Name))
	return &Result{Message: fmt.Sprintf("Sent %s", prefab.Name)}, nil
}

func (d *Dispatcher) deleteItem(ctx context.Context, call *Call, req itemRequest) (*Result, error) {
	item, prefab, err := d.inventory.DeleteItem(ctx, call.Conn.GameID, req.ItemID, call.actor())
	if err != nil {
		return nil, err
	}

	gameID := call.Conn.GameID
	d.router.ItemRemoved(gameID, item.Owner, item.ID)
	if call.Conn.IsDM {
		d.router.Notify(gameID, broadcast.OwnerOnly(item.Owner),
			fmt.Sprintf("%s has been removed by the Dungeon Master", prefab.Name))
	}
	return &Result{Message: fmt.Sprintf("Deleted %s", prefab.Name)}, nil
}

func (d *Dispatcher) sellItem(ctx context.Context, call *Call, req itemRequest) (*Result, error) {
	sale, err := d.inventory.SellItem(ctx, call.Conn.GameID, req.ItemID, call.actor())
	if err != nil {
		return nil, err
	}

	gameID := call.Conn.GameID
	d.router.ItemRemoved(gameID, sale.Player.ID, sale.Item.ID)
	d.router.GoldUpdated(gameID, sale.Player.ID, sale.Player.Gold)
	msg := fmt.Sprintf("%s sold %s for %d gold", sale.Player.Name, sale.Prefab.Name, sale.Earned)
	d.router.Notify(gameID, broadcast.DMOnly(), msg)
	return &Result{Message: msg}, nil
}

func (d *Dispatcher) createItem(ctx context.Context, call *Call, req prefabRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	if req.Item == nil {
		return nil, model.Malformed("item is required")
	}
	prefab, err := d.inventory.CreatePrefab(ctx, call.Conn.GameID, req.Item.input())
	if err != nil {
		return nil, err
	}
	d.publishItemList(ctx, call.Conn.GameID)
	return &Result{Message: "Item created successfully", Data: model.NewPrefabView(prefab)}, nil
}

func (d *Dispatcher) editItem(ctx context.Context, call *Call, req prefabRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	if req.Item == nil {
		return nil, model.Malformed("item is required")
	}
	prefab, items, err := d.inventory.EditPrefab(ctx, call.Conn.GameID, req.Item.ID, req.Item.input())
	if err != nil {
		return nil, err
	}

	d.publishItemList(ctx, call.Conn.GameID)
	for _, item := range items {
		d.router.ItemUpdated(call.Conn.GameID, item.Owner, model.NewItemView(item, prefab))
	}
	return &Result{Message: "Item edited successfully", Data: model.NewPrefabView(prefab)}, nil
}

func (d *Dispatcher) createPlayer(ctx context.Context, call *Call, req createPlayerRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	player, err := d.inventory.CreatePlayer(ctx, call.Conn.GameID, req.Name, req.Gold)
	if err != nil {
		return nil, err
	}
	d.publishGameInfo(ctx, call.Conn.GameID)
	return &Result{
		Message: fmt.Sprintf("Player %s created", player.Name),
		Data:    model.PlayerSummary{ID: player.ID, Name: player.Name, Gold: player.Gold},
	}, nil
}

func (d *Dispatcher) setPlayerGold(ctx context.Context, call *Call, req setGoldRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	if req.Gold == nil {
		return nil, model.Malformed("gold is required")
	}
	player, err := d.inventory.SetGold(ctx, call.Conn.GameID, req.PlayerID, *req.Gold)
	if err != nil {
		return nil, err
	}
	d.router.GoldUpdated(call.Conn.GameID, player.ID, player.Gold)
	return &Result{Message: fmt.Sprintf("%s now has %d gold", player.Name, player.Gold)}, nil
}

func (d *Dispatcher) toggleSelling(ctx context.Context, call *Call, _ emptyRequest) (*Result, error) {
	if err := call.requireDM(); err != nil {
		return nil, err
	}
	allowed, err := d.inventory.ToggleSelling(ctx, call.Conn.GameID)
	if err != nil {
		return nil, err
	}

	state := "disabled"
	if allowed {
		state = "enabled"
	}
	d.router.Notify(call.Conn.GameID, broadcast.AllInGame(), "Selling has been "+state)
	d.router.SellingToggled(call.Conn.GameID, allowed)
	return &Result{Message: "Selling " + state, Data: model.SellingPayload{Allowed: allowed}}, nil
}

func (d *Dispatcher) publishItemList(ctx context.Context, gameID model.GameID) {
	prefabs, err := d.inventory.Prefabs(ctx, gameID)
	if err != nil {
		d.logger.Error("failed to load item list", slog.Int64("game_id", int64(gameID)), slog.Any("error", err))
		return
	}
	d.router.Publish(gameID, model.EventItemList, broadcast.DMOnly(),
		broadcast.Same(model.ItemListPayload{Items: prefabs}))
}

// publishGameInfo sends every connection its own game_info
func (d *Dispatcher) publishGameInfo(ctx context.Context, gameID model.GameID) {
	d.router.GameInfoChanged(gameID, func(who broadcast.Recipient) (any, error) {
		return d.inventory.GameInfo(ctx, gameID, inventory.Actor{IsDM: who.IsDM, PlayerID: who.PlayerID})
	})
}
