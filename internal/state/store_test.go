package state

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func ptr[T any](v T) *T { return &v }

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore(3)
	snap := s.Snapshot()

	if snap.Sensor.Temperature.IsSet() || snap.Sensor.Humidity.IsSet() {
		t.Error("sensor readings should start unset")
	}
	if snap.Security.PeopleCount.IsSet() || snap.Security.MaxPeopleAllowed.IsSet() {
		t.Error("security counts should start unset")
	}
	if len(snap.Lighting) != 3 {
		t.Fatalf("len(Lighting) = %d, want 3", len(snap.Lighting))
	}
	for room := 1; room <= 3; room++ {
		if snap.Lighting[room] != SwitchOff {
			t.Errorf("room %d = %q, want off", room, snap.Lighting[room])
		}
	}
	if snap.Humidifier != SwitchOff {
		t.Errorf("Humidifier = %q, want off", snap.Humidifier)
	}
	if snap.Door != DoorUnknown {
		t.Errorf("Door = %q, want %q", snap.Door, DoorUnknown)
	}
	if _, ok := s.OTP(); ok {
		t.Error("OTP() ok = true on a fresh store")
	}
}

func TestNewStore_ClampsRooms(t *testing.T) {
	if got := NewStore(0).Rooms(); got != 1 {
		t.Errorf("Rooms() = %d, want 1", got)
	}
}

func TestUpdateSensor_Partial(t *testing.T) {
	s := NewStore(1)

	s.UpdateSensor(SensorUpdate{Temperature: ptr(21.5), Humidity: ptr(40.0)})
	got := s.UpdateSensor(SensorUpdate{Humidity: ptr(45.0)})

	if v, _ := got.Temperature.Value(); v != 21.5 {
		t.Errorf("Temperature = %v, want 21.5 (kept)", v)
	}
	if v, _ := got.Humidity.Value(); v != 45 {
		t.Errorf("Humidity = %v, want 45", v)
	}
	if s.Sensor() != got {
		t.Error("Sensor() disagrees with returned reading")
	}
}

func TestUpdateSecurity_Partial(t *testing.T) {
	s := NewStore(1)

	s.UpdateSecurity(SecurityUpdate{PeopleCount: ptr(4)})
	got := s.UpdateSecurity(SecurityUpdate{MaxPeopleAllowed: ptr(10)})

	if v, ok := got.PeopleCount.Value(); !ok || v != 4 {
		t.Errorf("PeopleCount = %v/%v, want 4/true", v, ok)
	}
	if v, ok := got.MaxPeopleAllowed.Value(); !ok || v != 10 {
		t.Errorf("MaxPeopleAllowed = %v/%v, want 10/true", v, ok)
	}
}

func TestSetOTP_Replaces(t *testing.T) {
	s := NewStore(1)
	s.SetOTP("1234")
	s.SetOTP("9876")

	code, ok := s.OTP()
	if !ok || code != "9876" {
		t.Errorf("OTP() = %q/%v, want 9876/true", code, ok)
	}
}

func TestSetRoomLight(t *testing.T) {
	s := NewStore(5)

	if err := s.SetRoomLight(2, SwitchOn); err != nil {
		t.Fatalf("SetRoomLight(2) error = %v", err)
	}
	if got := s.Snapshot().Room(2); got != SwitchOn {
		t.Errorf("room 2 = %q, want on", got)
	}

	for _, room := range []int{0, 6, -1} {
		if err := s.SetRoomLight(room, SwitchOn); !errors.Is(err, ErrUnknownRoom) {
			t.Errorf("SetRoomLight(%d) error = %v, want ErrUnknownRoom", room, err)
		}
	}
}

func TestSetAllLights(t *testing.T) {
	s := NewStore(4)
	s.SetAllLights(SwitchOn)

	for room, sw := range s.Snapshot().Lighting {
		if sw != SwitchOn {
			t.Errorf("room %d = %q, want on", room, sw)
		}
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := NewStore(2)
	snap := s.Snapshot()
	snap.Lighting[1] = SwitchOn

	if got := s.Snapshot().Room(1); got != SwitchOff {
		t.Errorf("store room 1 = %q after mutating a snapshot, want off", got)
	}
}

func TestMutatorsTouchUpdatedAt(t *testing.T) {
	s := NewStore(1)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.SetHumidifier(SwitchOn)
	s.SetDoor(DoorOpen)

	snap := s.Snapshot()
	if !snap.UpdatedAt.Equal(fixed) {
		t.Errorf("UpdatedAt = %v, want %v", snap.UpdatedAt, fixed)
	}
	if snap.Humidifier != SwitchOn || snap.Door != DoorOpen {
		t.Errorf("Humidifier/Door = %q/%q", snap.Humidifier, snap.Door)
	}
}

// Concurrent readers never observe a half-applied sensor update.
func TestStore_ConcurrentSnapshotsAreConsistent(t *testing.T) {
	s := NewStore(1)
	s.UpdateSensor(SensorUpdate{Temperature: ptr(0.0), Humidity: ptr(0.0)})

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 2000; i++ {
			v := float64(i)
			s.UpdateSensor(SensorUpdate{Temperature: &v, Humidity: &v})
		}
		close(done)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				sensor := s.Snapshot().Sensor
				temp, _ := sensor.Temperature.Value()
				hum, _ := sensor.Humidity.Value()
				if temp != hum {
					t.Errorf("torn read: temperature=%v humidity=%v", temp, hum)
					return
				}
			}
		}()
	}

	wg.Wait()
}

func TestSnapshot_JSON(t *testing.T) {
	s := NewStore(2)
	s.UpdateSensor(SensorUpdate{Temperature: ptr(23.5)})
	s.UpdateSecurity(SecurityUpdate{PeopleCount: ptr(3)})
	s.SetOTP("secret-code")

	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	sensor := got["sensor"].(map[string]any)
	if sensor["temperature"] != 23.5 {
		t.Errorf("temperature = %v, want 23.5", sensor["temperature"])
	}
	if sensor["humidity"] != Unset {
		t.Errorf("humidity = %v, want %q", sensor["humidity"], Unset)
	}
	security := got["security"].(map[string]any)
	if security["people_count"] != 3.0 {
		t.Errorf("people_count = %v, want 3", security["people_count"])
	}
	if security["max_people_allowed"] != Unset {
		t.Errorf("max_people_allowed = %v, want %q", security["max_people_allowed"], Unset)
	}
	if got["door"] != Unset {
		t.Errorf("door = %v, want %q", got["door"], Unset)
	}
	if strings.Contains(string(data), "secret-code") {
		t.Error("snapshot JSON leaks the one-time code")
	}
}
