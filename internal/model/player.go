package model

// PlayerID identifies a player character within a game
type PlayerID int64

// DMPlayerID is the reserved sentinel used when selecting the DM role
const DMPlayerID PlayerID = -1

// Player is a character owned by one of the game's players
type Player struct {
	ID     PlayerID
	GameID GameID
	Name   string
	Level  int
	Gold   int
}
