package model

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every service. Specific errors wrap one of the
// base kinds so callers can branch on either.
var (
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrNotEligible           = errors.New("player is not eligible")
	ErrWrongPhase            = errors.New("action not allowed in current phase")
	ErrUnknownEntity         = errors.New("unknown entity")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrMalformedRequest      = errors.New("malformed request")
	ErrConflict              = errors.New("conflict")
)

// Unknown entities
var (
	ErrGameNotFound   = fmt.Errorf("%w: game not found", ErrUnknownEntity)
	ErrPlayerNotFound = fmt.Errorf("%w: player not found", ErrUnknownEntity)
	ErrPrefabNotFound = fmt.Errorf("%w: item prefab not found", ErrUnknownEntity)
	ErrItemNotFound   = fmt.Errorf("%w: item not found", ErrUnknownEntity)
	ErrLootNotFound   = fmt.Errorf("%w: loot entry not found", ErrUnknownEntity)
	ErrInvalidTarget  = fmt.Errorf("%w: grant target does not resolve", ErrUnknownEntity)
)

// Authorization
var (
	ErrDMOnly            = fmt.Errorf("%w: only the DM can do this", ErrUnauthorized)
	ErrNotOwner          = fmt.Errorf("%w: item is not owned by this player", ErrUnauthorized)
	ErrInvalidDMPassword = fmt.Errorf("%w: invalid dm password", ErrUnauthorized)
)

// Validation
var (
	ErrUnknownAction = fmt.Errorf("%w: unknown action", ErrMalformedRequest)
	ErrInvalidVote   = fmt.Errorf("%w: invalid vote", ErrMalformedRequest)
	ErrNoEligible    = fmt.Errorf("%w: no eligible players", ErrMalformedRequest)
)

// Inventory conflicts
var (
	ErrSellingDisabled = fmt.Errorf("%w: selling is disabled", ErrConflict)
	ErrQuestItem       = fmt.Errorf("%w: quest items cannot be sold", ErrConflict)
	ErrUniqueItemTaken = fmt.Errorf("%w: unique item is already in an inventory", ErrConflict)
	ErrDMCannotSell    = fmt.Errorf("%w: the DM has no inventory to sell from", ErrConflict)
)

// Malformed wraps ErrMalformedRequest with a field-specific message.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRequest, fmt.Sprintf(format, args...))
}
