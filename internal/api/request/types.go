package request

import "encoding/json"

// Action is the body of POST /api/v1/action. Fields are flattened into the
// top-level object next to token and action.
type Action struct {
	Token  string
	Action string
	Fields map[string]any
}

// MarshalJSON flattens Fields into the envelope
func (a Action) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(a.Fields)+2)
	for k, v := range a.Fields {
		body[k] = v
	}
	if a.Token != "" {
		body["token"] = a.Token
	}
	body["action"] = a.Action
	return json.Marshal(body)
}
