package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-homegate/internal/panel"
)

// Handler builds the HTTP router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleNotFound)

	// Pages
	r.Get("/", s.handleEntry)
	r.Get("/verify_otp", s.handleVerifyOTP)
	r.Get("/home", s.handleHome)

	// Commands
	r.Get("/set_max_people", s.handleSetMaxPeople)
	r.Get("/lighting", s.handleLighting)
	r.Get("/humidifier", s.handleHumidifier)
	r.Get("/servo", s.handleServo)

	// State
	r.Get("/sensor", s.handleSensor)
	r.Get("/health", s.handleHealth)
	r.Get("/access_log", s.handleAccessLog)
	r.Get(s.wsPath(), s.handleWebSocket)

	r.Handle("/static/*", http.StripPrefix("/static", panel.StaticHandler(s.panelCfg.AssetsDir)))

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}
