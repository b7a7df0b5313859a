package ingest

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/nerrad567/gray-logic-homegate/internal/state"
)

// The firmware formats floats as strings ("23.50") and older builds send
// "--" for a sensor that failed to read, so every numeric field accepts a
// JSON number, a numeric string, or an absent marker.

type sensorPayload struct {
	Temperature json.RawMessage `json:"temperature"`
	Humidity    json.RawMessage `json:"humidity"`
}

type securityPayload struct {
	PeopleCount      json.RawMessage `json:"people_count"`
	MaxPeopleAllowed json.RawMessage `json:"max_people_allowed"`
}

type otpPayload struct {
	OTP json.RawMessage `json:"otp"`
}

type lightingStatusPayload struct {
	LED    json.RawMessage `json:"led"`
	Status *string         `json:"status"`
}

type switchStatusPayload struct {
	Status *string `json:"status"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}

func decodeObject(payload []byte, v any) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return malformed("expected a JSON object")
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return malformed("%v", err)
	}
	return nil
}

// isAbsent reports whether a raw field carries no value.
func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// parseNumber returns the field's value, or nil when it is absent.
func parseNumber(field string, raw json.RawMessage) (*float64, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	raw = bytes.TrimSpace(raw)

	var v float64
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, malformed("%s: %v", field, err)
		}
		s = strings.TrimSpace(s)
		if s == "" || s == state.Unset {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, malformed("%s: %q is not a number", field, s)
		}
		v = parsed
	} else if err := json.Unmarshal(raw, &v); err != nil {
		return nil, malformed("%s: %v", field, err)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, malformed("%s: not a finite number", field)
	}
	return &v, nil
}

// parseInteger is parseNumber restricted to whole values.
func parseInteger(field string, raw json.RawMessage) (*int, error) {
	f, err := parseNumber(field, raw)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) || math.Abs(*f) > math.MaxInt32 {
		return nil, malformed("%s: %v is not an integer", field, *f)
	}
	n := int(*f)
	return &n, nil
}

func parseSensor(payload []byte) (state.SensorUpdate, error) {
	var p sensorPayload
	if err := decodeObject(payload, &p); err != nil {
		return state.SensorUpdate{}, err
	}
	temperature, err := parseNumber("temperature", p.Temperature)
	if err != nil {
		return state.SensorUpdate{}, err
	}
	humidity, err := parseNumber("humidity", p.Humidity)
	if err != nil {
		return state.SensorUpdate{}, err
	}
	return state.SensorUpdate{Temperature: temperature, Humidity: humidity}, nil
}

func parseSecurity(payload []byte) (state.SecurityUpdate, error) {
	var p securityPayload
	if err := decodeObject(payload, &p); err != nil {
		return state.SecurityUpdate{}, err
	}
	count, err := parseInteger("people_count", p.PeopleCount)
	if err != nil {
		return state.SecurityUpdate{}, err
	}
	limit, err := parseInteger("max_people_allowed", p.MaxPeopleAllowed)
	if err != nil {
		return state.SecurityUpdate{}, err
	}
	return state.SecurityUpdate{PeopleCount: count, MaxPeopleAllowed: limit}, nil
}

// parseOTP returns the code in its decimal text form. Numeric codes keep
// their JSON spelling; string codes keep leading zeros.
func parseOTP(payload []byte) (string, error) {
	var p otpPayload
	if err := decodeObject(payload, &p); err != nil {
		return "", err
	}
	if isAbsent(p.OTP) {
		return "", malformed("otp missing")
	}

	raw := bytes.TrimSpace(p.OTP)
	var code string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &code); err != nil {
			return "", malformed("otp: %v", err)
		}
		code = strings.TrimSpace(code)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", malformed("otp: %v", err)
		}
		code = n.String()
	default:
		return "", malformed("otp must be a number or string")
	}

	if code == "" {
		return "", malformed("otp is empty")
	}
	return code, nil
}

// parseDoor accepts bare on/off text, or the same as a JSON string.
func parseDoor(payload []byte) (state.DoorState, error) {
	text := strings.TrimSpace(string(payload))
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal([]byte(text), &text); err != nil {
			return "", malformed("servo status: %v", err)
		}
	}
	sw, ok := state.ParseSwitch(text)
	if !ok {
		return "", malformed("servo status %q is not on or off", text)
	}
	if sw == state.SwitchOn {
		return state.DoorOpen, nil
	}
	return state.DoorClosed, nil
}

// lightingStatus is a parsed lighting report. Room zero means every room.
type lightingStatus struct {
	room   int
	status state.Switch
}

func parseLighting(payload []byte) (lightingStatus, error) {
	var p lightingStatusPayload
	if err := decodeObject(payload, &p); err != nil {
		return lightingStatus{}, err
	}
	if p.Status == nil {
		return lightingStatus{}, malformed("lighting status missing")
	}
	sw, ok := state.ParseSwitch(*p.Status)
	if !ok {
		return lightingStatus{}, malformed("lighting status %q is not on or off", *p.Status)
	}

	room, err := parseInteger("led", p.LED)
	if err != nil {
		return lightingStatus{}, err
	}
	if room == nil {
		return lightingStatus{status: sw}, nil
	}
	if *room < 1 {
		return lightingStatus{}, malformed("led %d out of range", *room)
	}
	return lightingStatus{room: *room, status: sw}, nil
}

func parseSwitchStatus(what string, payload []byte) (state.Switch, error) {
	var p switchStatusPayload
	if err := decodeObject(payload, &p); err != nil {
		return "", err
	}
	if p.Status == nil {
		return "", malformed("%s status missing", what)
	}
	sw, ok := state.ParseSwitch(*p.Status)
	if !ok {
		return "", malformed("%s status %q is not on or off", what, *p.Status)
	}
	return sw, nil
}
