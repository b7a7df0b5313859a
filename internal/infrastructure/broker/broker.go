package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/config"
)

const listenerID = "homegate-tcp"

// ErrNotRunning is returned by HealthCheck after Close.
var ErrNotRunning = errors.New("broker: not running")

// Broker is an in-process MQTT broker for installs without Mosquitto.
// It accepts every client; run it only on a trusted network.
type Broker struct {
	server *mochi.Server
	addr   string

	mu      sync.Mutex
	running bool
}

// Start binds the listener and begins accepting clients.
// The listener is bound before Start returns, so clients may connect immediately.
func Start(cfg config.EmbeddedBrokerConfig, logger *slog.Logger) (*Broker, error) {
	if cfg.Listen == "" {
		return nil, fmt.Errorf("broker: listen address is required")
	}

	server := mochi.New(&mochi.Options{})
	if logger != nil {
		server.Log = logger
	}

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("broker: adding auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      listenerID,
		Address: cfg.Listen,
	})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("broker: binding %s: %w", cfg.Listen, err)
	}

	if err := server.Serve(); err != nil {
		_ = server.Close()
		return nil, fmt.Errorf("broker: serving: %w", err)
	}

	return &Broker{
		server:  server,
		addr:    tcp.Address(),
		running: true,
	}, nil
}

// Addr returns the listener address.
func (b *Broker) Addr() string {
	return b.addr
}

// HostPort splits Addr into the host and port a client should dial.
// An unspecified host (":1883") resolves to loopback.
func (b *Broker) HostPort() (string, int, error) {
	host, portStr, err := net.SplitHostPort(b.addr)
	if err != nil {
		return "", 0, fmt.Errorf("broker: parsing address %q: %w", b.addr, err)
	}
	port, err := net.LookupPort("tcp", portStr)
	if err != nil {
		return "", 0, fmt.Errorf("broker: parsing port %q: %w", portStr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return host, port, nil
}

// HealthCheck reports whether the broker is still serving.
func (b *Broker) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("broker health check: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return ErrNotRunning
	}
	return nil
}

// Close disconnects all clients and stops the listener.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return nil
	}
	b.running = false
	return b.server.Close()
}
