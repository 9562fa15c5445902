package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/Merdeus/dndinventory/internal/api/apierr"
	"github.com/Merdeus/dndinventory/internal/api/middleware"
	"github.com/Merdeus/dndinventory/internal/api/response"
	"github.com/Merdeus/dndinventory/internal/dispatch"
)

// MaxActionBodyBytes bounds the size of an action request
const MaxActionBodyBytes = 1 << 20

// ActionHandler serves the command endpoint
type ActionHandler struct {
	dispatcher *dispatch.Dispatcher
}

// NewActionHandler creates a new action handler
func NewActionHandler(dispatcher *dispatch.Dispatcher) *ActionHandler {
	return &ActionHandler{dispatcher: dispatcher}
}

// Submit handles POST /api/v1/action
func (h *ActionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxActionBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierr.WriteError(w, apierr.NewInvalidRequestError("Request body too large"))
			return
		}
		apierr.WriteError(w, apierr.NewInvalidRequestError("Could not read request body"))
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), middleware.MustGetAddress(r.Context()), body)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.ActionOK(w, result.Message, result.Data)
}
