package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/snapwatchhq/watcher/internal/events"
	"github.com/snapwatchhq/watcher/internal/metrics"
	"github.com/snapwatchhq/watcher/internal/watcher"
)

const defaultStopTimeout = 5 * time.Second

// Config controls HTTP server settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Dependencies holds external collaborators required by the server.
type Dependencies struct {
	Logger  *log.Logger
	Watcher *watcher.Watcher
	Metrics *metrics.Store
	Events  *events.Ring
}

// Server wraps http.Server for convenience.
type Server struct {
	*http.Server
	cfg  Config
	deps Dependencies
}

// New constructs the control API server. The watcher dependency is
// required; handlers only call its public operations and encode JSON.
func New(cfg Config, deps Dependencies) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8090"
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}

	r := mux.NewRouter()
	r.HandleFunc("/status", statusHandler(deps)).Methods(http.MethodGet)
	r.HandleFunc("/start", startHandler(deps)).Methods(http.MethodPost)
	r.HandleFunc("/stop", stopHandler(deps)).Methods(http.MethodPost)
	r.HandleFunc("/test_notify", testNotifyHandler(deps)).Methods(http.MethodPost)
	r.HandleFunc("/clear_images", clearImagesHandler(deps)).Methods(http.MethodPost)
	if deps.Events != nil {
		r.HandleFunc("/events", eventsHandler(deps)).Methods(http.MethodGet)
	}
	if deps.Metrics != nil {
		r.Handle("/metrics", metrics.NewHTTPHandler(deps.Metrics)).Methods(http.MethodGet, http.MethodHead)
	}
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	s := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return &Server{Server: s, cfg: cfg, deps: deps}
}

func statusHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Logger, deps.Watcher.Status())
	}
}

func startHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := deps.Watcher.Start(r.Context())
		if err != nil {
			deps.Logger.Printf("start failed: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, deps.Logger, struct {
			OK      bool `json:"ok"`
			Running bool `json:"running"`
		}{OK: ok, Running: deps.Watcher.Running()})
	}
}

func stopHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timeout := defaultStopTimeout
		if raw := r.URL.Query().Get("timeout"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 {
				http.Error(w, "invalid timeout", http.StatusBadRequest)
				return
			}
			timeout = d
		}
		ok := deps.Watcher.Stop(timeout)
		writeJSON(w, deps.Logger, struct {
			OK      bool `json:"ok"`
			Running bool `json:"running"`
		}{OK: ok, Running: deps.Watcher.Running()})
	}
}

func testNotifyHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Watcher.TestNotify(r.Context())
		writeJSON(w, deps.Logger, struct {
			OK bool `json:"ok"`
		}{OK: true})
	}
}

func clearImagesHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := deps.Watcher.ClearImages(r.Context())
		writeJSON(w, deps.Logger, struct {
			OK      bool `json:"ok"`
			Deleted int  `json:"deleted"`
			Failed  int  `json:"failed"`
		}{OK: true, Deleted: res.Deleted, Failed: res.Failed})
	}
}

func eventsHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, deps.Logger, struct {
			Items []events.Event `json:"items"`
		}{Items: deps.Events.Recent()})
	}
}

func writeJSON(w http.ResponseWriter, logger *log.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Printf("encode response failed: %v", err)
	}
}
