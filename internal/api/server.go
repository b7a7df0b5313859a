package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-homegate/internal/access"
	"github.com/nerrad567/gray-logic-homegate/internal/audit"
	"github.com/nerrad567/gray-logic-homegate/internal/dispatch"
	"github.com/nerrad567/gray-logic-homegate/internal/events"
	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-homegate/internal/panel"
	"github.com/nerrad567/gray-logic-homegate/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// relayBufferSize is the event buffer between the state bus and the hub.
const relayBufferSize = 64

// Commander sends device commands.
type Commander interface {
	Lighting(ctx context.Context, cmd dispatch.LightingCommand) error
	Humidifier(ctx context.Context, status string) error
	Servo(ctx context.Context, command string) error
	SetMaxPeople(ctx context.Context, n int) error
}

// Verifier checks one-time codes.
type Verifier interface {
	Verify(ctx context.Context, submitted, source string) (access.Result, error)
}

// EventSource streams state changes.
type EventSource interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

// BusStatus reports MQTT connectivity for the health endpoint.
type BusStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	HTTP     config.HTTPConfig
	WS       config.WebSocketConfig
	Panel    config.PanelConfig
	Logger   *logging.Logger
	Store    *state.Store
	Commands Commander
	Gate     Verifier
	Renderer *panel.Renderer

	// Optional.
	Events    EventSource
	AccessLog audit.Repository
	Bus       BusStatus
	Version   string
}

// Server is the gateway's HTTP server: the browser pages, the JSON command
// endpoints, and the WebSocket state stream.
type Server struct {
	httpCfg   config.HTTPConfig
	wsCfg     config.WebSocketConfig
	panelCfg  config.PanelConfig
	logger    *logging.Logger
	store     *state.Store
	commands  Commander
	gate      Verifier
	renderer  *panel.Renderer
	events    EventSource
	accessLog audit.Repository
	bus       BusStatus
	version   string

	hub    *Hub
	server *http.Server
	cancel context.CancelFunc

	mu   sync.RWMutex
	addr string
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("command dispatcher is required")
	}
	if deps.Gate == nil {
		return nil, fmt.Errorf("access gate is required")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("panel renderer is required")
	}

	return &Server{
		httpCfg:   deps.HTTP,
		wsCfg:     deps.WS,
		panelCfg:  deps.Panel,
		logger:    deps.Logger,
		store:     deps.Store,
		commands:  deps.Commands,
		gate:      deps.Gate,
		renderer:  deps.Renderer,
		events:    deps.Events,
		accessLog: deps.AccessLog,
		bus:       deps.Bus,
		version:   deps.Version,
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start binds the listener, starts the WebSocket hub and its event relay,
// and serves in the background. A bind failure is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.httpCfg.Host, s.httpCfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	if s.events != nil {
		// Subscribe before serving so no event after Start is missed.
		ch, unsubscribe := s.events.Subscribe(relayBufferSize)
		go s.relayEvents(srvCtx, ch, unsubscribe)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.httpCfg.GetReadTimeout(),
		ReadHeaderTimeout: s.httpCfg.GetReadTimeout(),
		WriteTimeout:      s.httpCfg.GetWriteTimeout(),
		IdleTimeout:       s.httpCfg.GetIdleTimeout(),
	}

	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info("HTTP server listening", "address", s.Addr())
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// relayEvents forwards state changes to every WebSocket client until ctx ends.
func (s *Server) relayEvents(ctx context.Context, ch <-chan events.Event, unsubscribe func()) {
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.hub.Broadcast(string(ev.Kind), ev.State)
		}
	}
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("HTTP server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("http health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("http server not started")
	}

	return nil
}
