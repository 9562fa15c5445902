package broadcast

import (
	"github.com/Merdeus/dndinventory/internal/model"
	"github.com/Merdeus/dndinventory/internal/services/session"
)

// Kind is the shape of a visibility rule
type Kind int

const (
	KindAllInGame Kind = iota
	KindDMOnly
	KindOwnerAndDM
	KindOwnerOnly
)

// Visibility selects which connections of a game receive an event
type Visibility struct {
	Kind  Kind
	Owner model.PlayerID
}

// AllInGame includes every connection in the game
func AllInGame() Visibility {
	return Visibility{Kind: KindAllInGame}
}

// DMOnly includes only DM connections
func DMOnly() Visibility {
	return Visibility{Kind: KindDMOnly}
}

// OwnerAndDM includes DM connections and every connection of player p
func OwnerAndDM(p model.PlayerID) Visibility {
	return Visibility{Kind: KindOwnerAndDM, Owner: p}
}

// OwnerOnly includes only the connections of player p
func OwnerOnly(p model.PlayerID) Visibility {
	return Visibility{Kind: KindOwnerOnly, Owner: p}
}

// Includes evaluates the rule against a live connection
func (v Visibility) Includes(conn *session.Connection) bool {
	switch v.Kind {
	case KindAllInGame:
		return true
	case KindDMOnly:
		return conn.IsDM
	case KindOwnerAndDM:
		return conn.IsDM || conn.PlayerID == v.Owner
	case KindOwnerOnly:
		return !conn.IsDM && conn.PlayerID == v.Owner
	}
	return false
}

// Recipient is the role of a connection, which is all a payload may depend on
type Recipient struct {
	IsDM     bool
	PlayerID model.PlayerID
}

func recipientOf(conn *session.Connection) Recipient {
	return Recipient{IsDM: conn.IsDM, PlayerID: conn.PlayerID}
}
