package state

import (
	"strconv"
	"strings"
	"time"
)

// Unset is how a value the devices have not reported yet is rendered.
const Unset = "--"

// Reading is a numeric sensor value that may not have been reported yet.
// The zero value is unset.
type Reading struct {
	value float64
	set   bool
}

// NewReading returns a set Reading.
func NewReading(v float64) Reading {
	return Reading{value: v, set: true}
}

// Value returns the reading and whether it has been reported.
func (r Reading) Value() (float64, bool) {
	return r.value, r.set
}

// IsSet reports whether the reading has been reported.
func (r Reading) IsSet() bool { return r.set }

// String renders the shortest decimal form, or Unset.
func (r Reading) String() string {
	if !r.set {
		return Unset
	}
	return strconv.FormatFloat(r.value, 'f', -1, 64)
}

// MarshalJSON encodes a number when set and the Unset string otherwise.
func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.set {
		return []byte(`"` + Unset + `"`), nil
	}
	return strconv.AppendFloat(nil, r.value, 'f', -1, 64), nil
}

// Count is an integer status value that may not have been reported yet.
// The zero value is unset.
type Count struct {
	value int
	set   bool
}

// NewCount returns a set Count.
func NewCount(v int) Count {
	return Count{value: v, set: true}
}

// Value returns the count and whether it has been reported.
func (c Count) Value() (int, bool) {
	return c.value, c.set
}

// IsSet reports whether the count has been reported.
func (c Count) IsSet() bool { return c.set }

// String renders the integer, or Unset.
func (c Count) String() string {
	if !c.set {
		return Unset
	}
	return strconv.Itoa(c.value)
}

// MarshalJSON encodes a number when set and the Unset string otherwise.
func (c Count) MarshalJSON() ([]byte, error) {
	if !c.set {
		return []byte(`"` + Unset + `"`), nil
	}
	return strconv.AppendInt(nil, int64(c.value), 10), nil
}

// Switch is an on/off actuator state.
type Switch string

const (
	SwitchOff Switch = "off"
	SwitchOn  Switch = "on"
)

// ParseSwitch accepts "on" or "off" in any case, ignoring surrounding space.
func ParseSwitch(s string) (Switch, bool) {
	switch Switch(strings.ToLower(strings.TrimSpace(s))) {
	case SwitchOn:
		return SwitchOn, true
	case SwitchOff:
		return SwitchOff, true
	default:
		return "", false
	}
}

// DoorState is the last status the door servo reported.
type DoorState string

const (
	DoorUnknown DoorState = Unset
	DoorOpen    DoorState = "on"
	DoorClosed  DoorState = "off"
)

// SensorReading is the latest ambient telemetry.
type SensorReading struct {
	Temperature Reading `json:"temperature"`
	Humidity    Reading `json:"humidity"`
}

// Fields returns the set readings keyed by field name, in a fixed order.
func (s SensorReading) Fields() []Field {
	var fields []Field
	if v, ok := s.Temperature.Value(); ok {
		fields = append(fields, Field{Key: "temperature", Value: v})
	}
	if v, ok := s.Humidity.Value(); ok {
		fields = append(fields, Field{Key: "humidity", Value: v})
	}
	return fields
}

// SecurityStatus is the latest people-counting report.
type SecurityStatus struct {
	PeopleCount      Count `json:"people_count"`
	MaxPeopleAllowed Count `json:"max_people_allowed"`
}

// Fields returns the set counts keyed by field name, in a fixed order.
func (s SecurityStatus) Fields() []Field {
	var fields []Field
	if v, ok := s.PeopleCount.Value(); ok {
		fields = append(fields, Field{Key: "people_count", Value: float64(v)})
	}
	if v, ok := s.MaxPeopleAllowed.Value(); ok {
		fields = append(fields, Field{Key: "max_people_allowed", Value: float64(v)})
	}
	return fields
}

// Field is one named numeric value of a telemetry record.
type Field struct {
	Key   string
	Value float64
}

// Snapshot is a copy of everything the store holds except the one-time
// code. Mutating it does not affect the store.
type Snapshot struct {
	Sensor     SensorReading  `json:"sensor"`
	Security   SecurityStatus `json:"security"`
	Lighting   map[int]Switch `json:"lighting"`
	Humidifier Switch         `json:"humidifier"`
	Door       DoorState      `json:"door"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Room returns the state of one room, off for unknown rooms.
func (s Snapshot) Room(room int) Switch {
	if sw, ok := s.Lighting[room]; ok {
		return sw
	}
	return SwitchOff
}

// SensorUpdate carries a partial sensor report. Nil fields leave the stored
// value unchanged.
type SensorUpdate struct {
	Temperature *float64
	Humidity    *float64
}

// SecurityUpdate carries a partial people-counting report. Nil fields leave
// the stored value unchanged.
type SecurityUpdate struct {
	PeopleCount      *int
	MaxPeopleAllowed *int
}
