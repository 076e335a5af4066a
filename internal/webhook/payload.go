package webhook

import (
	"encoding/json"
	"fmt"
)

// ParsePayload decodes a raw webhook body into a Callback.
//
// A body that is not a JSON object, carries a wrongly-typed events field,
// or lacks the events field entirely fails with ErrMalformedPayload.
// Unknown additional fields on events and messages are ignored so newer
// platform payloads keep parsing.
func ParsePayload(body []byte) (*Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	// json.Unmarshal leaves Events nil when the field is absent (or null),
	// which is indistinguishable from a decode we must reject. An empty
	// events array is valid and stays non-nil.
	if cb.Events == nil {
		return nil, fmt.Errorf("%w: missing events field", ErrMalformedPayload)
	}

	return &cb, nil
}
