package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedMessage is returned when a payload is not a JSON object
var ErrMalformedMessage = errors.New("malformed message")

// Message is one decoded telemetry payload: a flat map of field name to raw value
type Message map[string]any

// DecodeMessage parses a raw payload into a Message
func DecodeMessage(payload []byte) (Message, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedMessage)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var msg Message
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformedMessage)
	}
	return msg, nil
}

// PresenceMode selects how coordinate fields are tested for presence
type PresenceMode string

const (
	// PresenceTruthy treats missing, null, false, "" and numeric 0 as absent.
	// A numeric string such as "0" is non-empty and therefore present.
	PresenceTruthy PresenceMode = "truthy"
	// PresenceExplicit treats only missing, null and non-numeric values as absent
	PresenceExplicit PresenceMode = "explicit"
)

// ParsePresenceMode validates a presence mode name. Empty means truthy.
func ParsePresenceMode(s string) (PresenceMode, error) {
	switch PresenceMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", PresenceTruthy:
		return PresenceTruthy, nil
	case PresenceExplicit:
		return PresenceExplicit, nil
	}
	return "", fmt.Errorf("unknown presence mode %q", s)
}

// Number returns the numeric value of a field. ok is false when the field is
// missing, null or not a finite number (numeric strings are accepted).
func (m Message) Number(key string) (float64, bool) {
	v, ok := m.number(key)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (m Message) number(key string) (float64, bool) {
	raw, exists := m[key]
	if !exists || raw == nil {
		return 0, false
	}

	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Coordinate returns a coordinate field subject to the presence mode
func (m Message) Coordinate(key string, mode PresenceMode) (float64, bool) {
	v, ok := m.Number(key)
	if !ok {
		return 0, false
	}
	if _, isString := m[key].(string); !isString && mode != PresenceExplicit && v == 0 {
		return 0, false
	}
	return v, true
}

// Metric returns a metric field as a nullable value
func (m Message) Metric(key string) *float64 {
	v, ok := m.Number(key)
	if !ok {
		return nil
	}
	return &v
}
