// Package api provides the local HTTP control API for the redirection session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"inputshare/internal/config"
	"inputshare/internal/controller"
	"inputshare/internal/protocol"
)

// Controller is the part of the session controller the API drives.
type Controller interface {
	Toggle(state string) error
	SendClipboard() error
	RequestExit(cause error)
}

// Options configures a Server.
type Options struct {
	Controller Controller
	Config     *config.Manager

	// Status snapshots the session state for /api/status and /ws
	Status func() protocol.StatusPayload

	// Token, when set, is required as a bearer token on every request but /health
	Token string
}

// Server provides HTTP API for local control
type Server struct {
	opts  Options
	wsMgr *WSManager

	mu   sync.Mutex
	http *http.Server
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	s := &Server{opts: opts}
	s.wsMgr = newWSManager(s)
	s.wsMgr.start()
	return s
}

// Handler returns the API routes wrapped in auth and recover middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/toggle", s.handleToggle)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/clipboard", s.handleClipboard)
	mux.HandleFunc("/api/exit", s.handleExit)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start serves the API on 127.0.0.1:port and blocks until Shutdown.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("API: failed to listen on %s: %v", addr, err)
		return err
	}
	return s.Serve(ln)
}

// Serve accepts API connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()
	log.Printf("API: listening on %s", ln.Addr())

	// This is blocking
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("API: server stopped: %v", err)
		return err
	}
	return nil
}

// Shutdown stops the server and disconnects WebSocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsMgr.stop()
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// BroadcastStatus pushes the current status to every WebSocket client.
func (s *Server) BroadcastStatus() {
	s.wsMgr.broadcastStatus(s.status())
}

func (s *Server) status() protocol.StatusPayload {
	if s.opts.Status == nil {
		return protocol.StatusPayload{}
	}
	return s.opts.Status()
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("API: recovered panic: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || s.opts.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.opts.Token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleToggle handles POST /api/toggle?state=on|off
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := r.URL.Query().Get("state")
	log.Printf("API: toggle request from %s (state=%q)", r.RemoteAddr, state)

	err := s.opts.Controller.Toggle(state)
	switch {
	case errors.Is(err, controller.ErrDebounced):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleClipboard handles POST /api/clipboard
func (s *Server) handleClipboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.opts.Controller.SendClipboard(); err != nil {
		log.Printf("API: send clipboard: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleExit handles POST /api/exit
func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log.Printf("API: exit requested from %s", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	s.opts.Controller.RequestExit(nil)
}

// handleConfig handles GET (read) and POST (update) for configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.opts.Config.Get())

	case http.MethodPost:
		// Fields missing from the body keep their current values.
		newCfg := s.opts.Config.Get()
		if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
			http.Error(w, "Invalid configuration data", http.StatusBadRequest)
			return
		}

		log.Printf("API: receiving configuration update from %s", r.RemoteAddr)
		if err := s.opts.Config.Set(newCfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.opts.Config.Save(); err != nil {
			log.Printf("API: failed to save received config: %v", err)
			http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
