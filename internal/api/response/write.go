package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes data with status. Every response reflects live game state,
// so none of them may be cached.
func JSON(w http.ResponseWriter, status int, data any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

// ActionOK writes the envelope of an action that succeeded
func ActionOK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Action{OK: true, Message: message, Data: data})
}
