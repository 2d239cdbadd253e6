package remote

import (
	"encoding/json"
	"fmt"
)

// envelope is the wire wrapper every backend service uses. Some
// deployments wrap the payload twice ({data:{data:...}}), so the payload
// is unwrapped defensively here, once, and nowhere else in the library.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

// unwrap decodes an envelope body into out, resolving the observed
// data.data nesting. A missing or null data field decodes out as empty.
func unwrap(body []byte, out any) error {
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("remote: malformed envelope: %w", err)
	}
	payload := env.Data
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}

	// Probe for the nested shape. Only an object can carry an inner
	// "data" field; arrays and scalars are always the payload itself.
	var inner struct {
		Data json.RawMessage `json:"data"`
	}
	if payload[0] == '{' {
		if err := json.Unmarshal(payload, &inner); err == nil && len(inner.Data) > 0 && string(inner.Data) != "null" {
			payload = inner.Data
		}
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("remote: malformed payload: %w", err)
	}
	return nil
}
