package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/config"
)

type published struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

// mockPublisher records every publish and optionally fails.
type mockPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, published{topic, string(payload), qos, retained})
	return nil
}

func (m *mockPublisher) last(t *testing.T) published {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.msgs) == 0 {
		t.Fatal("nothing published")
	}
	return m.msgs[len(m.msgs)-1]
}

func newTestDispatcher() (*Dispatcher, *mockPublisher) {
	pub := &mockPublisher{}
	return New(pub, config.DefaultTopics(), 1), pub
}

func TestDispatcher_Payloads(t *testing.T) {
	topics := config.DefaultTopics()
	ctx := context.Background()

	tests := []struct {
		name      string
		call      func(d *Dispatcher) error
		wantTopic string
		wantBody  string
	}{
		{
			name:      "room lighting",
			call:      func(d *Dispatcher) error { return d.Lighting(ctx, LightingCommand{Room: 2, Status: "on"}) },
			wantTopic: topics.LightingCommand,
			wantBody:  `{"led":2,"status":"on"}`,
		},
		{
			name:      "all lighting",
			call:      func(d *Dispatcher) error { return d.Lighting(ctx, LightingCommand{Status: "off"}) },
			wantTopic: topics.LightingCommand,
			wantBody:  `{"status":"off"}`,
		},
		{
			name:      "blink",
			call:      func(d *Dispatcher) error { return d.Blink(ctx) },
			wantTopic: topics.LightingCommand,
			wantBody:  `{"command":"blink"}`,
		},
		{
			name:      "humidifier",
			call:      func(d *Dispatcher) error { return d.Humidifier(ctx, "on") },
			wantTopic: topics.HumidifierCommand,
			wantBody:  `{"status":"on"}`,
		},
		{
			name:      "servo",
			call:      func(d *Dispatcher) error { return d.Servo(ctx, "off") },
			wantTopic: topics.ServoCommand,
			wantBody:  `{"command":"off"}`,
		},
		{
			name:      "open door",
			call:      func(d *Dispatcher) error { return d.OpenDoor(ctx) },
			wantTopic: topics.ServoCommand,
			wantBody:  `{"command":"on"}`,
		},
		{
			name:      "max people",
			call:      func(d *Dispatcher) error { return d.SetMaxPeople(ctx, 10) },
			wantTopic: topics.SecurityCount,
			wantBody:  `{"max_people":10}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, pub := newTestDispatcher()
			if err := tt.call(d); err != nil {
				t.Fatalf("call error = %v", err)
			}
			got := pub.last(t)
			if got.topic != tt.wantTopic {
				t.Errorf("topic = %q, want %q", got.topic, tt.wantTopic)
			}
			if got.payload != tt.wantBody {
				t.Errorf("payload = %s, want %s", got.payload, tt.wantBody)
			}
			if got.retained {
				t.Error("commands must not be retained")
			}
			if got.qos != 1 {
				t.Errorf("qos = %d, want 1", got.qos)
			}
		})
	}
}

func TestDispatcher_PublishFailure(t *testing.T) {
	d, pub := newTestDispatcher()
	pub.err = errors.New("not connected")

	err := d.SetMaxPeople(context.Background(), 3)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("error = %v, want ErrPublishFailed", err)
	}
}

func TestDispatcher_CancelledContext(t *testing.T) {
	d, pub := newTestDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.OpenDoor(ctx); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("error = %v, want ErrPublishFailed", err)
	}
	if len(pub.msgs) != 0 {
		t.Errorf("published %d messages on a cancelled context", len(pub.msgs))
	}
}

func TestDispatcher_EmptyFields(t *testing.T) {
	d, pub := newTestDispatcher()
	ctx := context.Background()

	for name, err := range map[string]error{
		"lighting":   d.Lighting(ctx, LightingCommand{Room: 1}),
		"humidifier": d.Humidifier(ctx, ""),
		"servo":      d.Servo(ctx, ""),
	} {
		if !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("%s: error = %v, want ErrInvalidCommand", name, err)
		}
	}
	if len(pub.msgs) != 0 {
		t.Errorf("published %d messages for invalid commands", len(pub.msgs))
	}
}
