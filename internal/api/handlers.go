package api

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-homegate/internal/audit"
	"github.com/nerrad567/gray-logic-homegate/internal/dispatch"
	"github.com/nerrad567/gray-logic-homegate/internal/panel"
)

// okResponse is the acknowledgement for command endpoints.
type okResponse struct {
	Status string `json:"status"`
}

type maxPeopleResponse struct {
	Status    string `json:"status"`
	MaxPeople int    `json:"max_people"`
}

type healthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	Bus              string `json:"bus"`
	WebSocketClients int    `json:"websocket_clients"`
}

type accessLogResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}

var okAck = okResponse{Status: "ok"}

func (s *Server) title() string {
	if s.panelCfg.Title == "" {
		return "Home Automation"
	}
	return s.panelCfg.Title
}

// renderHTML writes a rendered page, or a 500 if rendering fails.
func (s *Server) renderHTML(w http.ResponseWriter, render func(w *strings.Builder) error) {
	var page strings.Builder
	if err := render(&page); err != nil {
		s.logger.Error("rendering page", "error", err)
		writeInternalError(w, "rendering page failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write
	w.Write([]byte(page.String()))
}

// handleEntry serves the one-time-code entry page.
func (s *Server) handleEntry(w http.ResponseWriter, _ *http.Request) {
	s.renderEntry(w, false)
}

func (s *Server) renderEntry(w http.ResponseWriter, showError bool) {
	s.renderHTML(w, func(page *strings.Builder) error {
		return s.renderer.Entry(page, panel.EntryView{Title: s.title(), Error: showError})
	})
}

// handleVerifyOTP checks a submitted code. A match opens the door and
// redirects to the control panel; anything else shows the entry page again.
func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	otp := r.URL.Query().Get("otp")
	if otp == "" {
		s.renderEntry(w, false)
		return
	}

	res, err := s.gate.Verify(r.Context(), otp, clientIP(r))
	if err != nil {
		writeUnavailable(w, "door command could not be sent")
		return
	}
	if res.Granted {
		http.Redirect(w, r, "/home", http.StatusFound)
		return
	}
	s.renderEntry(w, true)
}

// handleHome serves the control panel.
func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	view := panel.NewHomeView(
		s.title(),
		s.store.Snapshot(),
		s.store.Rooms(),
		s.panelCfg.Dashboards,
		s.panelCfg.PollInterval,
		s.wsPath(),
	)
	s.renderHTML(w, func(page *strings.Builder) error {
		return s.renderer.Home(page, view)
	})
}

// handleSetMaxPeople sends a new occupancy limit. Unlike the other command
// endpoints the parameter is required.
func (s *Server) handleSetMaxPeople(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("max_people")
	if raw == "" {
		writeBadRequest(w, "max_people is required")
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		writeBadRequest(w, "max_people must be an integer")
		return
	}

	if err := s.commands.SetMaxPeople(r.Context(), n); err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, maxPeopleResponse{Status: "ok", MaxPeople: n})
}

// handleLighting switches one room (led and status) or every room
// (status only). Blank values count as absent: without a status nothing is
// sent, and a blank led addresses every room.
func (s *Server) handleLighting(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	status := query.Get("status")
	if status == "" {
		writeJSON(w, http.StatusOK, okAck)
		return
	}

	cmd := dispatch.LightingCommand{Status: status}
	if led := query.Get("led"); led != "" {
		room, err := strconv.Atoi(strings.TrimSpace(led))
		if err != nil || room < 1 {
			writeBadRequest(w, "led must be a positive integer")
			return
		}
		cmd.Room = room
	}

	if err := s.commands.Lighting(r.Context(), cmd); err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okAck)
}

// handleHumidifier switches the humidifier. Without a status (or with a
// blank one) nothing is sent.
func (s *Server) handleHumidifier(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		writeJSON(w, http.StatusOK, okAck)
		return
	}
	if err := s.commands.Humidifier(r.Context(), status); err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okAck)
}

// handleServo drives the door servo. Without a command nothing is sent.
func (s *Server) handleServo(w http.ResponseWriter, r *http.Request) {
	command := r.URL.Query().Get("command")
	if command == "" {
		writeJSON(w, http.StatusOK, okAck)
		return
	}
	if err := s.commands.Servo(r.Context(), command); err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okAck)
}

func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrInvalidCommand):
		writeBadRequest(w, err.Error())
	case errors.Is(err, dispatch.ErrPublishFailed):
		s.logger.Warn("command not handed to bus", "error", err)
		writeUnavailable(w, "message bus unavailable")
	default:
		s.logger.Error("command failed", "error", err)
		writeInternalError(w, "command failed")
	}
}

// handleSensor returns the latest temperature and humidity.
func (s *Server) handleSensor(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Sensor())
}

// handleHealth reports bus connectivity and the running version.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:           "ok",
		Version:          s.version,
		Bus:              "unknown",
		WebSocketClients: s.hub.ClientCount(),
	}
	if s.bus != nil {
		if s.bus.IsConnected() {
			resp.Bus = "connected"
		} else {
			resp.Bus = "disconnected"
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAccessLog lists recent code verification attempts.
func (s *Server) handleAccessLog(w http.ResponseWriter, r *http.Request) {
	if s.accessLog == nil {
		writeNotFound(w, "access log is not enabled")
		return
	}

	filter := audit.Filter{Outcome: audit.Outcome(r.URL.Query().Get("outcome"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := s.accessLog.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing access log", "error", err)
		writeInternalError(w, "listing access log failed")
		return
	}
	writeJSON(w, http.StatusOK, accessLogResponse{Entries: entries, Count: len(entries)})
}

// clientIP returns the remote host without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
