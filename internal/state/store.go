package state

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnknownRoom is returned for a room number outside 1..rooms.
var ErrUnknownRoom = errors.New("state: unknown room")

// Store holds the latest known device state for the whole process.
//
// Exactly one Store exists per gateway; it is built in main and injected.
// Reads may come from any goroutine. By convention only the telemetry
// ingestor calls the mutators, so updates apply in bus arrival order.
type Store struct {
	mu sync.RWMutex

	sensor     SensorReading
	security   SecurityStatus
	lighting   map[int]Switch
	humidifier Switch
	door       DoorState
	otp        string
	updatedAt  time.Time

	rooms int
	now   func() time.Time
}

// NewStore creates a store for the given number of lighting rooms, with
// every value unset and every switch off.
func NewStore(rooms int) *Store {
	if rooms < 1 {
		rooms = 1
	}
	lighting := make(map[int]Switch, rooms)
	for room := 1; room <= rooms; room++ {
		lighting[room] = SwitchOff
	}
	return &Store{
		lighting:   lighting,
		humidifier: SwitchOff,
		door:       DoorUnknown,
		rooms:      rooms,
		now:        time.Now,
	}
}

// Rooms returns the number of lighting rooms.
func (s *Store) Rooms() int {
	return s.rooms
}

// Snapshot returns a consistent copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lighting := make(map[int]Switch, len(s.lighting))
	for room, sw := range s.lighting {
		lighting[room] = sw
	}

	return Snapshot{
		Sensor:     s.sensor,
		Security:   s.security,
		Lighting:   lighting,
		Humidifier: s.humidifier,
		Door:       s.door,
		UpdatedAt:  s.updatedAt,
	}
}

// Sensor returns the current sensor reading.
func (s *Store) Sensor() SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sensor
}

// Security returns the current people-counting status.
func (s *Store) Security() SecurityStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.security
}

// UpdateSensor merges a partial report and returns the merged reading.
func (s *Store) UpdateSensor(u SensorUpdate) SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Temperature != nil {
		s.sensor.Temperature = NewReading(*u.Temperature)
	}
	if u.Humidity != nil {
		s.sensor.Humidity = NewReading(*u.Humidity)
	}
	s.touch()
	return s.sensor
}

// UpdateSecurity merges a partial report and returns the merged status.
func (s *Store) UpdateSecurity(u SecurityUpdate) SecurityStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.PeopleCount != nil {
		s.security.PeopleCount = NewCount(*u.PeopleCount)
	}
	if u.MaxPeopleAllowed != nil {
		s.security.MaxPeopleAllowed = NewCount(*u.MaxPeopleAllowed)
	}
	s.touch()
	return s.security
}

// SetOTP replaces the current one-time code. Codes never expire and a
// verified code stays valid until the next one arrives.
func (s *Store) SetOTP(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otp = code
	s.touch()
}

// OTP returns the current one-time code, if any has been received.
func (s *Store) OTP() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.otp, s.otp != ""
}

// SetRoomLight records a single room's reported lighting state.
func (s *Store) SetRoomLight(room int, sw Switch) error {
	if room < 1 || room > s.rooms {
		return fmt.Errorf("%w: %d (have 1..%d)", ErrUnknownRoom, room, s.rooms)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lighting[room] = sw
	s.touch()
	return nil
}

// SetAllLights records a house-wide lighting state.
func (s *Store) SetAllLights(sw Switch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for room := range s.lighting {
		s.lighting[room] = sw
	}
	s.touch()
}

// SetHumidifier records the humidifier's reported state.
func (s *Store) SetHumidifier(sw Switch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.humidifier = sw
	s.touch()
}

// SetDoor records the door servo's reported state.
func (s *Store) SetDoor(d DoorState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.door = d
	s.touch()
}

// touch must be called with mu held.
func (s *Store) touch() {
	s.updatedAt = s.now().UTC()
}
