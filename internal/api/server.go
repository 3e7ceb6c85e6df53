// Package api provides the HTTP monitor/control server: status and
// configuration endpoints plus a WebSocket stream of delivered events.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"

	"conmouse/internal/config"
)

// Status is the runtime snapshot reported by /api/status.
type Status struct {
	Device         string `json:"device"`
	DeviceName     string `json:"device_name"`
	Protocol       string `json:"protocol"`
	Gating         string `json:"gating"`
	ActiveTerminal string `json:"active_terminal,omitempty"`
	Sessions       int    `json:"sessions"`
	Delivered      uint64 `json:"delivered"`
}

// StatusFunc supplies the current Status; wired up in main so the api
// package needs no handle on the pipeline itself.
type StatusFunc func() Status

// Server provides HTTP monitoring and configuration for a running daemon
type Server struct {
	configMgr *config.Manager
	status    StatusFunc
	token     string
	wsMgr     *WSManager
	httpSrv   *http.Server
}

// NewServer creates a new API server
func NewServer(configMgr *config.Manager, status StatusFunc) *Server {
	s := &Server{
		configMgr: configMgr,
		status:    status,
	}
	s.wsMgr = newWSManager()
	return s
}

// BroadcastEvent pushes a delivered-event notification to every
// connected monitor client.
func (s *Server) BroadcastEvent(payload any) {
	s.wsMgr.broadcastMessage(Message{Type: TypeEvent, Payload: payload})
}

// BroadcastActive pushes an active-terminal change notification.
func (s *Server) BroadcastActive(path string) {
	s.wsMgr.broadcastMessage(Message{Type: TypeActive, Payload: ActivePayload{Terminal: path}})
}

// Start serves until the context is cancelled. The listener binds to
// loopback only; this is a local monitoring surface, not a remote one.
func (s *Server) Start(ctx context.Context, port int) error {
	cfg := s.configMgr.Get()
	s.token = cfg.General.APIToken

	go s.wsMgr.run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("API: failed to listen on %s: %v", addr, err)
		log.Printf("API: daemon continues without the monitor server")
		return err
	}
	log.Printf("API: monitor server listening on %s", addr)

	s.httpSrv = &http.Server{
		Handler: s.authMiddleware(s.recoverMiddleware(mux)),
	}

	go func() {
		<-ctx.Done()
		s.httpSrv.Close()
	}()

	if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Printf("API: server stopped: %v", err)
		return err
	}
	return nil
}

// recoverMiddleware prevents handler panics from crashing the daemon
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("API: panic in handler: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the API token if one is configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.token != "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader != "Bearer "+s.token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.status())
}

// handleConfig handles GET (read) and POST (update) for configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.configMgr.Get())

	case http.MethodPost:
		var newCfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
			http.Error(w, "Invalid configuration data", http.StatusBadRequest)
			return
		}

		log.Printf("API: configuration update from %s", r.RemoteAddr)
		s.configMgr.Set(&newCfg)
		if err := s.configMgr.Save(); err != nil {
			log.Printf("API: failed to save config: %v", err)
			http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
