package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/remoteui/uisync/internal/adapter"
	"github.com/remoteui/uisync/internal/config"
	"github.com/remoteui/uisync/internal/metrics"
	"github.com/remoteui/uisync/internal/transport"
)

const (
	maxRequestBytes = 1 << 20
	wsWriteTimeout  = 10 * time.Second
)

type Server struct {
	store          *Store
	hub            *Hub
	metrics        *metrics.Server
	gatherer       prometheus.Gatherer
	pollTimeout    time.Duration
	redirectURL    string
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
}

func NewServer(cfg config.ServerConfig, store *Store, hub *Hub, m *metrics.Server, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		store:          store,
		hub:            hub,
		metrics:        m,
		gatherer:       gatherer,
		pollTimeout:    cfg.PollTimeout,
		redirectURL:    "/",
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      cfg.AuthToken,
	}

	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/json", s.handleJSON)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/widgets", s.handleWidgets)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionRoutes)
	if s.gatherer != nil {
		mux.Handle("/metrics", metrics.Handler(s.gatherer))
	}
}

// Handler returns the routes wrapped with securityHeaders.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req transport.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if r.URL.Query().Has("poll") {
		req.Poll = true
	}

	resp := s.Handle(r.Context(), &req)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	log.Printf("WebSocket client connected: %s", r.RemoteAddr)
	s.metrics.WSConnected()
	ctx, cancel := context.WithCancel(context.Background())
	var writeMu sync.Mutex
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		conn.Close()
		s.metrics.WSDisconnected()
		log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
	}()

	conn.SetReadLimit(maxRequestBytes)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req transport.Request
		if err := json.Unmarshal(data, &req); err != nil {
			log.Printf("ws: bad request from %s: %v", r.RemoteAddr, err)
			continue
		}
		// Polls are held open, so every request gets its own goroutine.
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := s.Handle(ctx, &req)
			writeMu.Lock()
			defer writeMu.Unlock()
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(resp); err != nil {
				log.Printf("ws write error: %v", err)
			}
		}()
	}
}

// Handle answers one request. Poll requests wait for server-initiated
// events; user requests are applied to the widget models.
func (s *Server) Handle(ctx context.Context, req *transport.Request) *transport.Response {
	s.metrics.Request(req.Poll)
	resp := &transport.Response{Seq: req.Seq}
	if req.SessionID == "" {
		return s.fail(resp, transport.CodeInvalidRequest, "missing uiSessionId")
	}

	isNew := s.hub.Touch(req.SessionID)
	if isNew {
		s.metrics.Sessions(s.hub.SessionCount())
		log.Printf("UI session started: %s", req.SessionID)
	}
	if terminated, redirect := s.hub.Terminated(req.SessionID); terminated {
		resp.SessionTerminated = true
		resp.RedirectURL = redirect
		return resp
	}

	if req.Poll {
		if isNew {
			s.hub.PublishTo(req.SessionID, s.createEvents()...)
		}
		events, terminated, redirect := s.hub.Wait(ctx, req.SessionID, s.pollTimeout)
		if terminated {
			resp.SessionTerminated = true
			resp.RedirectURL = redirect
			return resp
		}
		s.metrics.Pushed(len(events))
		resp.Events = events
		return resp
	}

	if isNew {
		resp.Events = s.createEvents()
	}
	var mirrored []transport.Event
	for _, ev := range req.Events {
		m, ok := s.store.Get(ev.Target)
		if !ok {
			return s.fail(resp, transport.CodeUnknownTarget, fmt.Sprintf("unknown target %q", ev.Target))
		}
		if ev.Type == adapter.EventProperty {
			name, _ := ev.Data["name"].(string)
			if name == "" {
				return s.fail(resp, transport.CodeInvalidRequest, "property event without name")
			}
			s.store.SetProperty(ev.Target, name, ev.Data["value"])
			mirrored = append(mirrored, ev)
			continue
		}
		if ev.Type == EventLogout {
			s.hub.Terminate(req.SessionID, s.redirectURL)
			log.Printf("UI session logged out: %s", req.SessionID)
			resp.Events = nil
			resp.SessionTerminated = true
			resp.RedirectURL = s.redirectURL
			return resp
		}
		reply := s.act(m, ev)
		resp.Events = append(resp.Events, reply...)
		mirrored = append(mirrored, reply...)
	}
	s.hub.PublishFrom(req.SessionID, mirrored...)
	return resp
}

func (s *Server) fail(resp *transport.Response, code int, msg string) *transport.Response {
	s.metrics.ErrorResponse(code)
	resp.Events = nil
	resp.Error = &transport.Error{Code: code, Message: msg}
	return resp
}

// createEvents describes every widget model, for a session that has not
// seen them yet.
func (s *Server) createEvents() []transport.Event {
	models := s.store.GetAll()
	events := make([]transport.Event, len(models))
	for i, m := range models {
		events[i] = transport.Event{
			Target: m.ID,
			Type:   adapter.EventCreate,
			Data:   map[string]any{"kind": m.Kind, "properties": m.Properties},
		}
	}
	return events
}

func (s *Server) handleWidgets(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.store.GetAll())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.hub.SessionIDs())
}

func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Parse: /api/sessions/{id}/terminate
	path := strings.TrimPrefix(r.URL.EscapedPath(), "/api/sessions/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[1] != "terminate" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID, err := url.PathUnescape(parts[0])
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	if !s.hub.Terminate(sessionID, s.redirectURL) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	log.Printf("UI session terminated: %s", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-UISync-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}
