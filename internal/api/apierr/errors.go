package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Merdeus/dndinventory/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeUnknownAction         = "UNKNOWN_ACTION"
	CodeInvalidVote           = "INVALID_VOTE"
	CodeNoEligiblePlayers     = "NO_ELIGIBLE_PLAYERS"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	CodeInvalidDMPassword     = "INVALID_DM_PASSWORD"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeDMOnly                = "DM_ONLY"
	CodeNotOwner              = "NOT_OWNER"
	CodeNotEligible           = "NOT_ELIGIBLE"
	CodeWrongPhase            = "WRONG_PHASE"
	CodeGameNotFound          = "GAME_NOT_FOUND"
	CodePlayerNotFound        = "PLAYER_NOT_FOUND"
	CodeItemNotFound          = "ITEM_NOT_FOUND"
	CodeLootNotFound          = "LOOT_NOT_FOUND"
	CodeUnknownEntity         = "UNKNOWN_ENTITY"
	CodeSellingDisabled       = "SELLING_DISABLED"
	CodeQuestItem             = "QUEST_ITEM"
	CodeUniqueItemTaken       = "UNIQUE_ITEM_TAKEN"
	CodeDMCannotSell          = "DM_CANNOT_SELL"
	CodeConflict              = "CONFLICT"
	CodeInternalError         = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status err maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError. Specific errors are checked
// before the base kind they wrap.
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Session
	case errors.Is(err, model.ErrInvalidOrExpiredToken):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidOrExpiredToken, "Invalid or expired token"}}
	case errors.Is(err, model.ErrInvalidDMPassword):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidDMPassword, "Invalid DM password"}}

	// Authorization
	case errors.Is(err, model.ErrDMOnly):
		return &httpError{http.StatusForbidden, APIError{CodeDMOnly, "Only the DM can do this"}}
	case errors.Is(err, model.ErrNotOwner):
		return &httpError{http.StatusForbidden, APIError{CodeNotOwner, "You do not own this item"}}
	case errors.Is(err, model.ErrUnauthorized):
		return &httpError{http.StatusForbidden, APIError{CodeUnauthorized, "Not allowed"}}

	// Loot
	case errors.Is(err, model.ErrNotEligible):
		return &httpError{http.StatusForbidden, APIError{CodeNotEligible, "Player is not eligible for this loot round"}}
	case errors.Is(err, model.ErrWrongPhase):
		return &httpError{http.StatusConflict, APIError{CodeWrongPhase, "Action not allowed in the current loot phase"}}

	// Unknown entities
	case errors.Is(err, model.ErrGameNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeGameNotFound, "Game not found"}}
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrItemNotFound), errors.Is(err, model.ErrPrefabNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeItemNotFound, "Item not found"}}
	case errors.Is(err, model.ErrLootNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeLootNotFound, "Loot entry not found"}}
	case errors.Is(err, model.ErrUnknownEntity):
		return &httpError{http.StatusNotFound, APIError{CodeUnknownEntity, "Not found"}}

	// Validation
	case errors.Is(err, model.ErrUnknownAction):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownAction, "Unknown action"}}
	case errors.Is(err, model.ErrInvalidVote):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidVote, "Invalid vote"}}
	case errors.Is(err, model.ErrNoEligible):
		return &httpError{http.StatusBadRequest, APIError{CodeNoEligiblePlayers, "At least one eligible player is required"}}
	case errors.Is(err, model.ErrMalformedRequest):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, detail(err)}}

	// Inventory conflicts
	case errors.Is(err, model.ErrSellingDisabled):
		return &httpError{http.StatusConflict, APIError{CodeSellingDisabled, "Selling is disabled"}}
	case errors.Is(err, model.ErrQuestItem):
		return &httpError{http.StatusConflict, APIError{CodeQuestItem, "Quest items cannot be sold"}}
	case errors.Is(err, model.ErrUniqueItemTaken):
		return &httpError{http.StatusConflict, APIError{CodeUniqueItemTaken, "This unique item is already owned"}}
	case errors.Is(err, model.ErrDMCannotSell):
		return &httpError{http.StatusConflict, APIError{CodeDMCannotSell, "The DM has no inventory to sell from"}}
	case errors.Is(err, model.ErrConflict):
		return &httpError{http.StatusConflict, APIError{CodeConflict, "Conflict"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// detail strips the base kind from a validation error so the client sees
// only the field message
func detail(err error) string {
	msg := strings.TrimPrefix(err.Error(), model.ErrMalformedRequest.Error()+": ")
	if msg == "" || msg == model.ErrMalformedRequest.Error() {
		return "Malformed request"
	}
	return msg
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// NewInternalErrorWithID creates an internal server error quoting a request id
func NewInternalErrorWithID(requestID string) error {
	if requestID == "" {
		return NewInternalError()
	}
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error (request " + requestID + ")"}}
}
