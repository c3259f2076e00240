package devtools

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Config configures the inspector server.
type Config struct {
	// Registry holds the runtimes to serve. Required.
	Registry *Registry

	// WebSocket buffer sizes.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates websocket upgrade requests. The default
	// accepts all origins; the inspector is meant for loopback use.
	CheckOrigin func(r *http.Request) bool

	// WriteTimeout bounds each websocket write.
	WriteTimeout time.Duration

	// HeartbeatInterval is how often idle event streams are pinged.
	HeartbeatInterval time.Duration

	// Logger receives connection lifecycle logs. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration used for unset fields.
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:    1024,
		WriteBufferSize:   4096,
		CheckOrigin:       func(r *http.Request) bool { return true },
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Server serves the inspector API for a Registry.
type Server struct {
	registry *Registry
	config   *Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New creates a Server. A nil config serves an empty fresh registry;
// unset fields take their defaults.
func New(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	} else {
		defaults := DefaultConfig()
		if config.ReadBufferSize == 0 {
			config.ReadBufferSize = defaults.ReadBufferSize
		}
		if config.WriteBufferSize == 0 {
			config.WriteBufferSize = defaults.WriteBufferSize
		}
		if config.CheckOrigin == nil {
			config.CheckOrigin = defaults.CheckOrigin
		}
		if config.WriteTimeout == 0 {
			config.WriteTimeout = defaults.WriteTimeout
		}
		if config.HeartbeatInterval == 0 {
			config.HeartbeatInterval = defaults.HeartbeatInterval
		}
	}
	if config.Registry == nil {
		config.Registry = NewRegistry()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry: config.Registry,
		config:   config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger.With("component", "devtools"),
	}
}

// Registry returns the registry the server serves.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Handler returns the inspector's HTTP handler, ready to mount.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/runtimes", func(r chi.Router) {
		r.Get("/", s.handleRuntimes)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/graph", s.handleGraph)
			r.Get("/graph.dot", s.handleGraphDOT)
			r.Get("/events/recent", s.handleRecentEvents)
			r.Get("/events", s.handleEvents)
		})
	})
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) handleRuntimes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.registry.Runtimes())
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.registry.Runtime(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "unknown runtime", http.StatusNotFound)
		return
	}
	s.writeJSON(w, rt.Dump())
}

func (s *Server) handleGraphDOT(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.registry.Runtime(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "unknown runtime", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	w.Write(DOT(rt.Dump()))
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	events, ok := s.registry.Recent(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "unknown runtime", http.StatusNotFound)
		return
	}
	if events == nil {
		events = []EventRecord{}
	}
	s.writeJSON(w, events)
}
