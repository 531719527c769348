// internal/monitor/server.go
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Server errors
var (
	// ErrAlreadyRunning indicates the monitor is already running
	ErrAlreadyRunning = errors.New("monitor is already running")

	// ErrNotRunning indicates the monitor is not currently running
	ErrNotRunning = errors.New("monitor is not running")
)

// StatsFunc returns the bridge's counter snapshot for /stats.
type StatsFunc func() any

// Config holds the monitor configuration.
type Config struct {
	// Addr is the HTTP listen address in host:port form
	Addr string

	// Version is reported on the root endpoint
	Version string
}

// Server is the HTTP observer endpoint. Read-only: it exposes no control
// over the bridge.
type Server struct {
	config Config
	hub    *Hub
	stats  StatsFunc
	logger *log.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader
	proc       *process.Process
	startTime  time.Time

	mu       sync.RWMutex
	running  bool
	listener net.Listener
}

// NewServer creates a monitor over the given hub and stats source.
func NewServer(config Config, hub *Hub, stats StatsFunc) *Server {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Server{
		config: config,
		hub:    hub,
		stats:  stats,
		logger: log.New(os.Stderr, "[monitor] ", log.LstdFlags),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Loopback-only service; observers connect from local tools.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		proc:      proc,
		startTime: time.Now(),
	}
}

// Start binds the monitor port and begins serving.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/events", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:        s.config.Addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = listener
	s.running = true

	s.logger.Printf("listening on %s", listener.Addr().String())

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts the monitor down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	s.mu.Unlock()

	s.hub.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// handleRoot describes the service.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"service":   "blenderbridge-monitor",
		"version":   s.config.Version,
		"endpoints": []string{"/health", "/stats", "/events"},
	})
}

// handleHealth handles liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"observers":      s.hub.Count(),
	})
}

// handleStats reports bridge counters plus process and memory usage.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"events_published": s.hub.Published(),
		"events_dropped":   s.hub.Dropped(),
		"observers":        s.hub.Count(),
	}
	if s.stats != nil {
		out["bridge"] = s.stats()
	}
	if s.proc != nil {
		if cpuPct, err := s.proc.CPUPercent(); err == nil {
			out["process_cpu_percent"] = cpuPct
		}
		if memInfo, err := s.proc.MemoryInfo(); err == nil {
			out["process_rss_bytes"] = memInfo.RSS
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		out["system_memory_used_percent"] = vm.UsedPercent
	}
	writeJSON(w, out)
}

// handleEvents upgrades to WebSocket and streams job lifecycle events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	s.logger.Printf("observer connected: %s", conn.RemoteAddr())
	s.hub.Add(conn)

	defer func() {
		s.logger.Printf("observer disconnected: %s", conn.RemoteAddr())
		s.hub.Remove(conn)
		conn.Close()
	}()

	// The feed is one-way; reads only detect disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
