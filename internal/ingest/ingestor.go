package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-homegate/internal/events"
	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-homegate/internal/state"
)

// DefaultQueueSize bounds the hand-off between MQTT delivery and state updates.
const DefaultQueueSize = 64

// Subscriber is the part of the MQTT client the ingestor needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Alerter reacts to a security warning from the people counter.
type Alerter interface {
	Blink(ctx context.Context) error
}

// EventPublisher receives a notification after every applied update.
type EventPublisher interface {
	Publish(events.Event)
}

// Logger is the logging interface the ingestor writes to.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures an Ingestor. Store and Subscriber are required.
type Options struct {
	Store        *state.Store
	Subscriber   Subscriber
	Topics       config.TopicsConfig
	Measurements config.MeasurementsConfig
	QoS          byte
	QueueSize    int

	// Optional collaborators. A nil Sink disables time-series forwarding.
	Alerter Alerter
	Sink    Sink
	Events  EventPublisher
	Logger  Logger
}

type message struct {
	topic   string
	payload []byte
}

type route struct {
	filter string
	apply  func(ctx context.Context, payload []byte) (events.Kind, error)
}

// Ingestor applies inbound device telemetry to the state store.
//
// MQTT callbacks only enqueue; a single consumer goroutine parses and
// applies messages in arrival order, so the store has one writer.
type Ingestor struct {
	store        *state.Store
	sub          Subscriber
	alerter      Alerter
	sink         Sink
	events       EventPublisher
	logger       Logger
	measurements config.MeasurementsConfig
	qos          byte

	routes []route
	queue  chan message

	// running is read on the MQTT delivery path without taking mu.
	running atomic.Bool

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
	subbed  []string
}

// New validates opts and builds an Ingestor. Call Start to begin consuming.
func New(opts Options) (*Ingestor, error) {
	if opts.Store == nil {
		return nil, errors.New("ingest: store is required")
	}
	if opts.Subscriber == nil {
		return nil, errors.New("ingest: subscriber is required")
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	in := &Ingestor{
		store:        opts.Store,
		sub:          opts.Subscriber,
		alerter:      opts.Alerter,
		sink:         opts.Sink,
		events:       opts.Events,
		logger:       opts.Logger,
		measurements: opts.Measurements,
		qos:          opts.QoS,
		queue:        make(chan message, opts.QueueSize),
	}

	in.routes = []route{
		{opts.Topics.SensorData, in.applySensor},
		{opts.Topics.OTP, in.applyOTP},
		{opts.Topics.SecurityWarning, in.applyWarning},
		{opts.Topics.SecurityStatus, in.applySecurity},
		{opts.Topics.ServoStatus, in.applyDoor},
		{opts.Topics.LightingStatus, in.applyLighting},
		{opts.Topics.HumidifierStatus, in.applyHumidifier},
	}

	return in, nil
}

// Start subscribes to every inbound topic and starts the consumer.
// The consumer stops when ctx is cancelled or Stop is called.
func (in *Ingestor) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.started {
		return ErrAlreadyStarted
	}

	in.stop = make(chan struct{})
	in.done = make(chan struct{})
	in.running.Store(true)
	go in.consume(ctx)

	seen := make(map[string]bool, len(in.routes))
	for _, r := range in.routes {
		if r.filter == "" || seen[r.filter] {
			continue
		}
		seen[r.filter] = true
		if err := in.sub.Subscribe(r.filter, in.qos, in.Enqueue); err != nil {
			in.unsubscribeLocked()
			in.running.Store(false)
			close(in.stop)
			<-in.done
			return fmt.Errorf("subscribing to %s: %w", r.filter, err)
		}
		in.subbed = append(in.subbed, r.filter)
	}

	in.started = true
	in.logger.Info("telemetry ingest started", "topics", len(in.subbed))
	return nil
}

// Stop unsubscribes, applies whatever is already queued, and waits for the
// consumer to exit. It is safe to call more than once.
func (in *Ingestor) Stop() {
	in.mu.Lock()
	if !in.running.Swap(false) {
		in.mu.Unlock()
		return
	}
	in.unsubscribeLocked()
	close(in.stop)
	done := in.done
	in.mu.Unlock()

	<-done
	in.logger.Info("telemetry ingest stopped")
}

// must be called with mu held.
func (in *Ingestor) unsubscribeLocked() {
	for _, topic := range in.subbed {
		if err := in.sub.Unsubscribe(topic); err != nil {
			in.logger.Warn("unsubscribing telemetry topic", "topic", topic, "error", err)
		}
	}
	in.subbed = nil
}

// Enqueue hands a message to the consumer without blocking. It is the MQTT
// message handler; a returned error is logged by the MQTT client.
func (in *Ingestor) Enqueue(topic string, payload []byte) error {
	if !in.running.Load() {
		return ErrNotRunning
	}

	msg := message{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case in.queue <- msg:
		return nil
	default:
		return fmt.Errorf("%w: dropped message on %s", ErrQueueFull, topic)
	}
}

func (in *Ingestor) consume(ctx context.Context) {
	defer close(in.done)
	for {
		select {
		case msg := <-in.queue:
			in.process(ctx, msg)
		case <-in.stop:
			in.drain(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (in *Ingestor) drain(ctx context.Context) {
	for {
		select {
		case msg := <-in.queue:
			in.process(ctx, msg)
		default:
			return
		}
	}
}

func (in *Ingestor) process(ctx context.Context, msg message) {
	err := in.Handle(ctx, msg.topic, msg.payload)
	switch {
	case err == nil:
	case errors.Is(err, ErrMalformedPayload):
		in.logger.Warn("dropping device message", "topic", msg.topic, "error", err)
	default:
		in.logger.Error("applying device message", "topic", msg.topic, "error", err)
	}
}

// Handle parses and applies one message synchronously. Messages on topics
// no route matches are ignored. A malformed payload changes nothing.
func (in *Ingestor) Handle(ctx context.Context, topic string, payload []byte) error {
	for _, r := range in.routes {
		if r.filter == "" || !mqtt.MatchTopic(r.filter, topic) {
			continue
		}
		kind, err := r.apply(ctx, payload)
		if err != nil {
			return err
		}
		if kind != "" && in.events != nil {
			in.events.Publish(events.Event{Kind: kind, State: in.store.Snapshot()})
		}
		return nil
	}
	return nil
}

func (in *Ingestor) applySensor(_ context.Context, payload []byte) (events.Kind, error) {
	update, err := parseSensor(payload)
	if err != nil {
		return "", err
	}
	reading := in.store.UpdateSensor(update)
	in.forward(in.measurements.Sensor, reading.Fields())
	in.logger.Debug("sensor reading applied", "temperature", reading.Temperature.String(), "humidity", reading.Humidity.String())
	return events.KindSensor, nil
}

func (in *Ingestor) applySecurity(_ context.Context, payload []byte) (events.Kind, error) {
	update, err := parseSecurity(payload)
	if err != nil {
		return "", err
	}
	status := in.store.UpdateSecurity(update)
	in.forward(in.measurements.Security, status.Fields())
	in.logger.Debug("security status applied", "people_count", status.PeopleCount.String(), "max_people_allowed", status.MaxPeopleAllowed.String())
	return events.KindSecurity, nil
}

func (in *Ingestor) applyOTP(_ context.Context, payload []byte) (events.Kind, error) {
	code, err := parseOTP(payload)
	if err != nil {
		return "", err
	}
	in.store.SetOTP(code)
	// Never log the code itself.
	in.logger.Info("one-time code received")
	return events.KindOTP, nil
}

// applyWarning does not inspect the payload.
func (in *Ingestor) applyWarning(ctx context.Context, _ []byte) (events.Kind, error) {
	in.logger.Warn("occupancy warning received")
	if in.alerter == nil {
		return "", nil
	}
	if err := in.alerter.Blink(ctx); err != nil {
		return "", fmt.Errorf("sending blink alert: %w", err)
	}
	return "", nil
}

func (in *Ingestor) applyDoor(_ context.Context, payload []byte) (events.Kind, error) {
	door, err := parseDoor(payload)
	if err != nil {
		return "", err
	}
	in.store.SetDoor(door)
	return events.KindDoor, nil
}

func (in *Ingestor) applyLighting(_ context.Context, payload []byte) (events.Kind, error) {
	ls, err := parseLighting(payload)
	if err != nil {
		return "", err
	}
	if ls.room == 0 {
		in.store.SetAllLights(ls.status)
		return events.KindLighting, nil
	}
	if err := in.store.SetRoomLight(ls.room, ls.status); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return events.KindLighting, nil
}

func (in *Ingestor) applyHumidifier(_ context.Context, payload []byte) (events.Kind, error) {
	sw, err := parseSwitchStatus("humidifier", payload)
	if err != nil {
		return "", err
	}
	in.store.SetHumidifier(sw)
	return events.KindHumidifier, nil
}

// forward hands the full current record to the sink, skipping empty records.
func (in *Ingestor) forward(measurement string, fields []state.Field) {
	if in.sink == nil || measurement == "" || len(fields) == 0 {
		return
	}
	rec := Record{Measurement: measurement, Fields: fields}
	in.sink.Write(rec)
	in.logger.Debug("telemetry forwarded", "line", rec.Line())
}
