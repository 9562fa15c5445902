package model

import "time"

// GameID identifies a campaign
type GameID int64

// JoinCode is the short code players use to find a game
type JoinCode string

// Game is a campaign run by one DM
type Game struct {
	ID             GameID
	Name           string
	Description    string
	JoinCode       JoinCode
	DMPasswordHash string // bcrypt hash
	SellingAllowed bool
	CreatedAt      time.Time
}
