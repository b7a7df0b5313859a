package panel

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"

	"github.com/nerrad567/gray-logic-homegate/internal/state"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// EntryView is the data for the code entry page.
type EntryView struct {
	Title string
	Error bool
}

// RoomView is one row of the lighting controls.
type RoomView struct {
	Number int
	Status state.Switch
}

// HomeView is the data for the control panel.
type HomeView struct {
	Title        string
	State        state.Snapshot
	Rooms        []RoomView
	Dashboards   []template.URL
	PollInterval int
	WSPath       string
}

// NewHomeView builds the control panel view for a snapshot.
func NewHomeView(title string, snap state.Snapshot, rooms int, dashboards []string, pollInterval int, wsPath string) HomeView {
	view := HomeView{
		Title:        title,
		State:        snap,
		PollInterval: pollInterval,
		WSPath:       wsPath,
	}
	for room := 1; room <= rooms; room++ {
		view.Rooms = append(view.Rooms, RoomView{Number: room, Status: snap.Room(room)})
	}
	// Dashboard URLs come from the operator's config, not from requests.
	for _, d := range dashboards {
		view.Dashboards = append(view.Dashboards, template.URL(d)) //nolint:gosec // operator-configured
	}
	return view
}

// Renderer renders the panel pages. Templates are parsed once; Renderer is
// safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing panel templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Entry renders the code entry page.
func (r *Renderer) Entry(w io.Writer, view EntryView) error {
	return r.render(w, "entry", view)
}

// Home renders the control panel.
func (r *Renderer) Home(w io.Writer, view HomeView) error {
	return r.render(w, "home", view)
}

// render executes into a buffer first so a template error never leaves a
// half-written page.
func (r *Renderer) render(w io.Writer, name string, data any) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// StaticHandler serves the panel's CSS and JavaScript. Mount it with the
// prefix stripped.
//
// When dir names an existing directory, assets are served from disk so
// they can be edited without a rebuild. Otherwise the embedded copies are
// used.
func StaticHandler(dir string) http.Handler {
	var fileSystem http.FileSystem

	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			fileSystem = http.Dir(dir)
		}
	}

	if fileSystem == nil {
		sub, err := fs.Sub(staticFS, "static")
		if err != nil {
			panic(fmt.Sprintf("panel: loading embedded static assets: %v", err))
		}
		fileSystem = http.FS(sub)
	}

	fileServer := http.FileServer(fileSystem)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		fileServer.ServeHTTP(w, r)
	})
}
