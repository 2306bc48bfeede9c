package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/TFMV/pubmap/driver"
	"github.com/TFMV/pubmap/engine"
	"github.com/TFMV/pubmap/logging"
	"github.com/TFMV/pubmap/models"
	"github.com/TFMV/pubmap/observability"
	"github.com/TFMV/pubmap/physics"
	"github.com/TFMV/pubmap/render"
)

// Config for the server
type Config struct {
	Addr         string        `toml:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `toml:"idle_timeout" yaml:"idle_timeout"`
	// Heartbeat is the SSE keep-alive comment interval.
	Heartbeat time.Duration `toml:"heartbeat" yaml:"heartbeat"`
}

func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		Heartbeat:    15 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("server: addr is required")
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 || c.Heartbeat < 0 {
		return errors.New("server: timeouts must not be negative")
	}
	return nil
}

// Controller is the part of the player the API drives.
type Controller interface {
	Latest() *engine.Frame
	Status(ctx context.Context) (driver.Status, error)
	SetYear(ctx context.Context, year int) (int, error)
	Advance(ctx context.Context) (int, bool, error)
	SetPlaying(ctx context.Context, on bool) error
	PinNode(ctx context.Context, id string, x, y float64) error
	MoveNode(ctx context.Context, id string, x, y float64) error
	UnpinNode(ctx context.Context, id string) error
}

// Server exposes the timeline, the live frame and node interaction over HTTP.
type Server struct {
	cfg     Config
	ctl     Controller
	summary *models.Summary
	hub     *Hub
	log     logging.Logger
	metrics *observability.Collector
	mux     *http.ServeMux
}

// New builds the server and registers its routes. Frames reach stream
// clients through Hub().Publish, which the caller registers as a player sink.
func New(cfg Config, ctl Controller, summary *models.Summary, log logging.Logger, metrics *observability.Collector) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{
		cfg:     cfg,
		ctl:     ctl,
		summary: summary,
		hub:     NewHub(metrics),
		log:     log,
		metrics: metrics,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", handleIndex())
	s.mux.HandleFunc("GET /api/summary", handleSummary(s.summary))
	s.mux.HandleFunc("GET /api/frame", handleFrame(s.ctl))
	s.mux.HandleFunc("GET /api/status", handleStatus(s.ctl))
	s.mux.HandleFunc("GET /api/stream", handleStream(s.hub, s.cfg.Heartbeat, s.log))
	s.mux.HandleFunc("POST /api/year", handleYear(s.ctl))
	s.mux.HandleFunc("POST /api/advance", handleAdvance(s.ctl))
	s.mux.HandleFunc("POST /api/play", handlePlay(s.ctl))
	s.mux.HandleFunc("POST /api/pin", handlePin(s.ctl, s.ctl.PinNode))
	s.mux.HandleFunc("POST /api/move", handlePin(s.ctl, s.ctl.MoveNode))
	s.mux.HandleFunc("POST /api/unpin", handleUnpin(s.ctl))
	if metrics != nil {
		s.mux.Handle("GET /metrics", metrics.Handler())
	}
	return s
}

// Hub returns the stream fan-out.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	return instrument(s.mux, s.metrics)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "starting server", logging.String("addr", s.cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info(ctx, "server stopped")
	return nil
}

func handleSummary(summary *models.Summary) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if summary == nil {
			http.Error(w, "summary not available", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// handleFrame renders the latest frame in the requested format.
func handleFrame(ctl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "json"
		}
		renderer, err := render.GetRenderer(format)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		options := render.NewDefaultOptions(format)
		options.ShowHidden = r.URL.Query().Get("hidden") == "true"

		output, err := renderer.Render(ctl.Latest(), options)
		if err != nil {
			http.Error(w, "Error rendering frame: "+err.Error(), http.StatusInternalServerError)
			return
		}

		switch renderer.Extension() {
		case "svg":
			w.Header().Set("Content-Type", "image/svg+xml")
		case "json":
			w.Header().Set("Content-Type", "application/json")
		default:
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		w.Write(output)
	}
}

func handleStatus(ctl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := ctl.Status(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

type yearRequest struct {
	Year int `json:"year"`
}

type yearResponse struct {
	Year     int  `json:"year"`
	Advanced bool `json:"advanced"`
}

func handleYear(ctl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req yearRequest
		if !decode(w, r, &req) {
			return
		}
		year, err := ctl.SetYear(r.Context(), req.Year)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, yearResponse{Year: year, Advanced: true})
	}
}

func handleAdvance(ctl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, ok, err := ctl.Advance(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, yearResponse{Year: year, Advanced: ok})
	}
}

type playRequest struct {
	Playing bool `json:"playing"`
}

func handlePlay(ctl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playRequest
		if !decode(w, r, &req) {
			return
		}
		if err := ctl.SetPlaying(r.Context(), req.Playing); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

type nodeRequest struct {
	ID string   `json:"id"`
	X  *float64 `json:"x,omitempty"`
	Y  *float64 `json:"y,omitempty"`
}

// handlePin serves both pin and move; they take the same body.
func handlePin(ctl Controller, op func(context.Context, string, float64, float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nodeRequest
		if !decode(w, r, &req) {
			return
		}
		if req.ID == "" || req.X == nil || req.Y == nil {
			http.Error(w, "id, x and y are required", http.StatusBadRequest)
			return
		}
		if err := op(r.Context(), req.ID, *req.X, *req.Y); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUnpin(ctl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nodeRequest
		if !decode(w, r, &req) {
			return
		}
		if req.ID == "" {
			http.Error(w, "id is required", http.StatusBadRequest)
			return
		}
		if err := ctl.UnpinNode(r.Context(), req.ID); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Error decoding request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.Encode(v)
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNodeNotFound):
		code = http.StatusNotFound
	case errors.Is(err, physics.ErrNotDragging):
		code = http.StatusConflict
	case errors.Is(err, driver.ErrNotRunning):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), code)
}
