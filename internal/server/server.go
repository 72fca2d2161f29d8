package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/skycrawler/internal/compose"
	"github.com/TobiSchelling/skycrawler/internal/database"
	"github.com/TobiSchelling/skycrawler/internal/events"
	"github.com/TobiSchelling/skycrawler/internal/publish"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Options configures the server.
type Options struct {
	// ArtifactDir holds the cached detail tables and charts, by category.
	ArtifactDir string
	// PublicURL is used for absolute links in the RSS feed.
	PublicURL string
	// FeedItems is how many events per category go into the feed.
	FeedItems int
	Logger    *slog.Logger
}

// Server is the HTTP server for browsing runs and their ranked events.
type Server struct {
	db     *database.DB
	opts   Options
	pages  map[string]*template.Template
	mux    *http.ServeMux
	logger *slog.Logger
}

// New creates a new Server.
func New(db *database.DB, opts Options) (*Server, error) {
	if opts.FeedItems <= 0 {
		opts.FeedItems = 5
	}
	if opts.PublicURL == "" {
		opts.PublicURL = "http://127.0.0.1:8000"
	}
	opts.PublicURL = strings.TrimSuffix(opts.PublicURL, "/")
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	funcMap := template.FuncMap{
		"markdown":   renderMarkdown,
		"formatTime": database.FormatRunDisplay,
		"duration":   database.RunDuration,
		"title":      compose.Title,
		"when":       compose.When,
		"peak":       compose.Peak,
		"inc":        func(i int) int { return i + 1 },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so it can define "content" and "title".
	pageNames := []string{"index.html", "run.html", "category.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		db:     db,
		opts:   opts,
		pages:  pages,
		mux:    http.NewServeMux(),
		logger: logger.With("component", "server"),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	if s.opts.ArtifactDir != "" {
		s.mux.Handle("GET /artifacts/", http.StripPrefix("/artifacts/", http.FileServer(http.Dir(s.opts.ArtifactDir))))
	}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /run/{id}", s.handleRun)
	s.mux.HandleFunc("GET /run/{id}/{category}", s.handleCategory)
	s.mux.HandleFunc("GET /api/{file}", s.handleAPI)
	s.mux.HandleFunc("GET /feed.xml", s.handleFeed)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.GetAllRuns()
	if err != nil {
		s.fail(w, err)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		s.fail(w, err)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Runs":  runs,
		"Stats": stats,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	report, err := s.db.GetReport(run.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	categories, err := s.db.GetCategories(run.ID)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.render(w, "run.html", map[string]any{
		"Run":        run,
		"Report":     report,
		"Categories": categories,
	})
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	category := r.PathValue("category")
	ranked, err := s.db.GetRankedForRun(run.ID, category)
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(ranked) == 0 {
		http.NotFound(w, r)
		return
	}

	charts, missing := s.charts(category, ranked)
	s.render(w, "category.html", map[string]any{
		"Run":      run,
		"Category": category,
		"Events":   ranked,
		"Charts":   charts,
		"Replaced": missing > 0,
	})
}

// charts reports which saved charts are still on disk. A fresh run clears
// the category directory, so older runs lose theirs.
func (s *Server) charts(category string, ranked []events.Ranked) (map[string]bool, int) {
	found := make(map[string]bool)
	if s.opts.ArtifactDir == "" {
		return found, 0
	}
	var missing int
	for _, e := range ranked {
		if !e.ImageSaved || e.ID == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.opts.ArtifactDir, category, e.ID+".png")); err == nil {
			found[e.ID] = true
		} else {
			missing++
		}
	}
	return found, missing
}

// handleAPI serves /api/{category}.json from the latest finished run.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	category, ok := strings.CutSuffix(r.PathValue("file"), ".json")
	if !ok || category == "" {
		http.NotFound(w, r)
		return
	}

	run, err := s.db.GetLatestRun()
	if err != nil {
		s.fail(w, err)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}
	ranked, err := s.db.GetRankedForRun(run.ID, category)
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(ranked) == 0 {
		http.NotFound(w, r)
		return
	}

	generated := time.Now()
	if run.FinishedAt != nil {
		if t, err := time.Parse(database.TimestampLayout, *run.FinishedAt); err == nil {
			generated = t
		}
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(publish.NewFeed(category, ranked, generated)); err != nil {
		s.logger.Error("encoding api response", "category", category, "error", err)
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	run, err := s.db.GetLatestRun()
	if err != nil {
		s.fail(w, err)
		return
	}

	var best []events.Ranked
	if run != nil {
		categories, err := s.db.GetCategories(run.ID)
		if err != nil {
			s.fail(w, err)
			return
		}
		for _, cat := range categories {
			ranked, err := s.db.GetRankedForRun(run.ID, cat)
			if err != nil {
				s.fail(w, err)
				return
			}
			for i, ev := range ranked {
				if i == s.opts.FeedItems || ev.Score == 0 {
					break
				}
				best = append(best, ev)
			}
		}
	}

	data, err := buildFeed(s.opts.PublicURL, run, best)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write(data)
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*database.Run, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	run, err := s.db.GetRun(id)
	if err != nil {
		s.fail(w, err)
		return nil, false
	}
	if run == nil {
		http.NotFound(w, r)
		return nil, false
	}
	return run, true
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		s.logger.Error("rendering template", "template", name, "error", err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int, opts Options) error {
	srv, err := New(db, opts)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv.logger.Info("server listening", "url", "http://"+addr)
	return http.ListenAndServe(addr, srv.Handler())
}
