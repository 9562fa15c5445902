package response

import "encoding/json"

// Action is the response of POST /api/v1/action
type Action struct {
	OK      bool   `json:"ok"`
	Message string `json:"msg,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ActionResult is Action as read by clients, with data left encoded
type ActionResult struct {
	OK      bool            `json:"ok"`
	Message string          `json:"msg,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Health is the response of GET /api/v1/health
type Health struct {
	Status        string `json:"status"`
	Connections   int    `json:"connections"`
	PendingGrants int    `json:"pending_grants"`
}
