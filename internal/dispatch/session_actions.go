package dispatch

import (
	"context"

	"github.com/Merdeus/dndinventory/internal/model"
)

type createSessionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DMPassword  string `json:"dm_pass"`
}

type joinSessionRequest struct {
	Code string `json:"code"`
}

type selectPlayerRequest struct {
	GameID     model.GameID    `json:"gameid"`
	PlayerID   *model.PlayerID `json:"playerid"`
	DMPassword string          `json:"dm_pass"`
}

type resyncRequest struct {
	Credential string `json:"credential"`
}

// SessionPayload describes a game to someone about to pick a role
type SessionPayload struct {
	Game    model.GameSummary     `json:"game"`
	Players []model.PlayerSummary `json:"players"`
}

// GrantPayload carries a registration token for the streaming endpoint
type GrantPayload struct {
	PlayerID          model.PlayerID `json:"playerId"`
	RegistrationToken string         `json:"registrationToken"`
}

func (d *Dispatcher) registerSessionActions() {
	register(d.public, "createSession", d.createSession)
	register(d.public, "joinSession", d.joinSession)
	register(d.public, "selectPlayer", d.selectPlayer)
	register(d.public, "resync", d.resync)
}

func (d *Dispatcher) createSession(ctx context.Context, call *Call, req createSessionRequest) (*Result, error) {
	game, err := d.inventory.CreateGame(ctx, req.Name, req.Description, req.DMPassword)
	if err != nil {
		return nil, err
	}
	return &Result{
		Message: "Game created",
		Data:    SessionPayload{Game: summarize(game), Players: []model.PlayerSummary{}},
	}, nil
}

func (d *Dispatcher) joinSession(ctx context.Context, call *Call, req joinSessionRequest) (*Result, error) {
	game, players, err := d.inventory.JoinGame(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	payload := SessionPayload{Game: summarize(game), Players: make([]model.PlayerSummary, 0, len(players))}
	for _, p := range players {
		payload.Players = append(payload.Players, model.PlayerSummary{ID: p.ID, Name: p.Name, Gold: p.Gold})
	}
	return &Result{Data: payload}, nil
}

func (d *Dispatcher) selectPlayer(ctx context.Context, call *Call, req selectPlayerRequest) (*Result, error) {
	if req.PlayerID == nil {
		return nil, model.Malformed("playerid is required")
	}
	playerID := *req.PlayerID
	if playerID == model.DMPlayerID {
		if err := d.inventory.VerifyDMPassword(ctx, req.GameID, req.DMPassword); err != nil {
			return nil, err
		}
	}

	grant, err := d.registry.IssueGrant(ctx, req.GameID, playerID, call.Address)
	if err != nil {
		return nil, err
	}
	return &Result{Data: GrantPayload{PlayerID: grant.PlayerID, RegistrationToken: grant.Token}}, nil
}

func (d *Dispatcher) resync(ctx context.Context, call *Call, req resyncRequest) (*Result, error) {
	if req.Credential == "" {
		return nil, model.ErrInvalidOrExpiredToken
	}
	grant, err := d.registry.ResumeViaCredential(ctx, req.Credential, call.Address)
	if err != nil {
		return nil, err
	}
	return &Result{Data: GrantPayload{PlayerID: grant.PlayerID, RegistrationToken: grant.Token}}, nil
}

func summarize(game *model.Game) model.GameSummary {
	return model.GameSummary{
		ID:             game.ID,
		Name:           game.Name,
		JoinCode:       game.JoinCode,
		SellingAllowed: game.SellingAllowed,
	}
}
