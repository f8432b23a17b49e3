// Package server serves the odds calculator to browser clients over
// websockets.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/battlecalc/internal/config"
	"github.com/lawnchairsociety/battlecalc/internal/engine"
	"github.com/lawnchairsociety/battlecalc/internal/logger"
)

type Server struct {
	cfg         *config.Config
	rulesets    RulesetSource
	engine      engine.Engine
	log         *slog.Logger
	router      *mux.Router
	httpServer  *http.Server
	connLimiter *ConnLimiter
	keyLimiter  *KeyLimiter

	mu           sync.Mutex
	conns        map[*Conn]struct{}
	shutdownOnce sync.Once
	StartTime    time.Time
}

func NewServer(cfg *config.Config, rulesets RulesetSource, eng engine.Engine) *Server {
	s := &Server{
		cfg:         cfg,
		rulesets:    rulesets,
		engine:      eng,
		log:         logger.Logger(),
		connLimiter: NewConnLimiter(cfg.Connections),
		keyLimiter:  NewKeyLimiter(cfg.RateLimit),
		conns:       make(map[*Conn]struct{}),
		StartTime:   time.Now(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocketUpgrade).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/rulesets", s.handleRulesets).Methods(http.MethodGet)
	r.HandleFunc("/rulesets/{name}", s.handleRuleset).Methods(http.MethodGet)
	s.router = r

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.log.Info("odds service listening", "address", s.cfg.Server.Address)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes every client, cancelling their runs, and stops the
// listener. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		for c := range s.conns {
			c.close()
		}
		s.mu.Unlock()

		s.keyLimiter.Stop()
		err = s.httpServer.Shutdown(ctx)
		s.log.Info("odds service stopped")
	})
	return err
}

// ConnectionCount returns the number of open websocket clients.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// handleWebSocketUpgrade upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	// Check connection limits before upgrading
	if !s.connLimiter.TryAcquire(ip) {
		s.log.Warn("websocket connection rejected, limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", ip)
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.Server.IsOriginAllowed(origin, r.Host)
			if !allowed {
				s.log.Warn("websocket connection rejected, origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		s.connLimiter.Release(ip)
		return
	}

	c := newConn(s, ws, ip)
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
			s.connLimiter.Release(ip)
		}()
		c.serve()
	}()
}

type health struct {
	Status        string  `json:"status"`
	Connections   int     `json:"connections"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, health{
		Status:        "ok",
		Connections:   s.ConnectionCount(),
		UptimeSeconds: time.Since(s.StartTime).Seconds(),
	})
}

func (s *Server) handleRulesets(w http.ResponseWriter, r *http.Request) {
	names, err := s.rulesets.Names()
	if err != nil {
		s.log.Error("failed to list rulesets", "error", err)
		http.Error(w, "ruleset store unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleRuleset(w http.ResponseWriter, r *http.Request) {
	rs, err := s.rulesets.Ruleset(mux.Vars(r)["name"])
	switch {
	case errors.Is(err, ErrUnknownRuleset):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		s.log.Error("failed to load ruleset", "error", err)
		http.Error(w, "ruleset store unavailable", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, viewRuleset(rs))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
