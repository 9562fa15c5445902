package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Merdeus/dndinventory/internal/api/apierr"
	"github.com/Merdeus/dndinventory/internal/middleware"
)

// Recovery turns a panicking handler into a JSON 500 that quotes the
// request id, so a client report can be matched to the logged stack
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, r *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalErrorWithID(middleware.RequestID(r.Context())))
	})
}
