package dispatch

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/config"
)

// Publisher is the part of the MQTT client the dispatcher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the logging interface the dispatcher writes to.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// LightingCommand switches one room, or every room when Room is zero.
type LightingCommand struct {
	Room   int
	Status string
}

// roomLighting and allLighting are the two payload shapes the lighting
// firmware distinguishes by the presence of "led".
type roomLighting struct {
	LED    int    `json:"led"`
	Status string `json:"status"`
}

type allLighting struct {
	Status string `json:"status"`
}

type commandPayload struct {
	Command string `json:"command"`
}

type statusPayload struct {
	Status string `json:"status"`
}

type maxPeoplePayload struct {
	MaxPeople int `json:"max_people"`
}

const (
	commandBlink = "blink"
	commandOpen  = "on"
)

// Dispatcher turns user intents into device command messages.
//
// Commands are fire-and-forget: nothing is retained and no device
// confirmation is awaited. A nil error only means the bus accepted the
// message.
type Dispatcher struct {
	bus    Publisher
	topics config.TopicsConfig
	qos    byte
	logger Logger
}

// New creates a dispatcher publishing at the given QoS.
func New(bus Publisher, topics config.TopicsConfig, qos byte) *Dispatcher {
	return &Dispatcher{
		bus:    bus,
		topics: topics,
		qos:    qos,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used for command tracing.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	d.logger = logger
}

// Lighting publishes a room-scoped or house-wide lighting command.
func (d *Dispatcher) Lighting(ctx context.Context, cmd LightingCommand) error {
	if cmd.Status == "" {
		return fmt.Errorf("%w: lighting status is empty", ErrInvalidCommand)
	}
	var payload any = allLighting{Status: cmd.Status}
	if cmd.Room != 0 {
		payload = roomLighting{LED: cmd.Room, Status: cmd.Status}
	}
	if err := d.send(ctx, d.topics.LightingCommand, payload); err != nil {
		return err
	}
	d.logger.Info("lighting command sent", "room", cmd.Room, "status", cmd.Status)
	return nil
}

// Blink asks the lighting controller to flash every room.
func (d *Dispatcher) Blink(ctx context.Context) error {
	if err := d.send(ctx, d.topics.LightingCommand, commandPayload{Command: commandBlink}); err != nil {
		return err
	}
	d.logger.Info("lighting blink sent")
	return nil
}

// Humidifier publishes a humidifier on/off command.
func (d *Dispatcher) Humidifier(ctx context.Context, status string) error {
	if status == "" {
		return fmt.Errorf("%w: humidifier status is empty", ErrInvalidCommand)
	}
	if err := d.send(ctx, d.topics.HumidifierCommand, statusPayload{Status: status}); err != nil {
		return err
	}
	d.logger.Info("humidifier command sent", "status", status)
	return nil
}

// Servo publishes a raw door servo command.
func (d *Dispatcher) Servo(ctx context.Context, command string) error {
	if command == "" {
		return fmt.Errorf("%w: servo command is empty", ErrInvalidCommand)
	}
	if err := d.send(ctx, d.topics.ServoCommand, commandPayload{Command: command}); err != nil {
		return err
	}
	d.logger.Info("servo command sent", "command", command)
	return nil
}

// OpenDoor drives the door servo open.
func (d *Dispatcher) OpenDoor(ctx context.Context) error {
	return d.Servo(ctx, commandOpen)
}

// SetMaxPeople sends a new occupancy limit to the people counter.
func (d *Dispatcher) SetMaxPeople(ctx context.Context, n int) error {
	if err := d.send(ctx, d.topics.SecurityCount, maxPeoplePayload{MaxPeople: n}); err != nil {
		return err
	}
	d.logger.Info("occupancy limit sent", "max_people", n)
	return nil
}

func (d *Dispatcher) send(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling command for %s: %w", topic, err)
	}

	if err := d.bus.Publish(topic, data, d.qos, false); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	d.logger.Debug("command published", "topic", topic, "payload", string(data))
	return nil
}
