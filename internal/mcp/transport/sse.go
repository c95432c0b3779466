package transport

import (
	"assettree/internal/core/config"
	"assettree/internal/shared/util"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	sseKeepAlive       = 30 * time.Second
	sseSessionBuffer   = 32
	sseConnectionBurst = 5
)

// SSE serves MCP over server-sent events: clients open GET /sse, receive the
// message endpoint for their session and POST requests to it. Responses are
// delivered on the event stream.
type SSE struct {
	address string
	info    ServerInfo
	cfg     config.RateLimit
	logger  *slog.Logger
	server  *http.Server
	handler Handler

	baseCtx context.Context

	sessions   map[string]*sseSession
	sessionsMu sync.RWMutex

	requestLimiter    *util.LimiterRegistry
	connectionLimiter *util.LimiterRegistry
}

type sseSession struct {
	id        string
	messages  chan any
	createdAt time.Time
}

func NewSSE(address string, info ServerInfo, cfg config.RateLimit, logger *slog.Logger) (*SSE, error) {
	if address == "" {
		return nil, fmt.Errorf("sse address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &SSE{
		address:  address,
		info:     info,
		cfg:      cfg,
		logger:   logger,
		baseCtx:  context.Background(),
		sessions: make(map[string]*sseSession),
	}
	if cfg.Enabled {
		s.requestLimiter = util.NewLimiterRegistry(cfg.RequestsPerSecond, cfg.Burst, cfg.TTL)
		s.connectionLimiter = util.NewLimiterRegistry(cfg.RequestsPerSecond, sseConnectionBurst, cfg.TTL)
	}
	return s, nil
}

// Routes returns the HTTP handler serving /sse and /message.
func (s *SSE) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", s.handleSSE)
	mux.HandleFunc("/message", s.handleMessage)
	return mux
}

func (s *SSE) Start(ctx context.Context, handler Handler) error {
	s.handler = handler
	s.baseCtx = ctx
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("mcp sse server listening", "address", s.address)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.Stop()
	}
}

func (s *SSE) Stop() error {
	if s.requestLimiter != nil {
		s.requestLimiter.Stop()
	}
	if s.connectionLimiter != nil {
		s.connectionLimiter.Stop()
	}
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *SSE) handleSSE(w http.ResponseWriter, r *http.Request) {
	if s.connectionLimiter != nil {
		if !s.connectionLimiter.Get(util.GetClientIP(r)).Allow(1) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Too many connections", http.StatusTooManyRequests)
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	session := &sseSession{
		id:        uuid.NewString(),
		messages:  make(chan any, sseSessionBuffer),
		createdAt: time.Now(),
	}

	s.sessionsMu.Lock()
	s.sessions[session.id] = session
	s.sessionsMu.Unlock()
	s.logger.Debug("sse session opened", "session_id", session.id, "remote", util.GetClientIP(r))

	defer func() {
		s.sessionsMu.Lock()
		delete(s.sessions, session.id)
		s.sessionsMu.Unlock()
		s.logger.Debug("sse session closed", "session_id", session.id, "age", time.Since(session.createdAt))
	}()

	fmt.Fprintf(w, "event: endpoint\ndata: /message?session_id=%s\n\n", session.id)
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case msg := <-session.messages:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Warn("encode sse message", "session_id", session.id, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ":\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *SSE) handleMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "Missing session_id", http.StatusBadRequest)
		return
	}

	s.sessionsMu.RLock()
	session, ok := s.sessions[sessionID]
	s.sessionsMu.RUnlock()
	if !ok {
		http.Error(w, "Invalid session_id", http.StatusNotFound)
		return
	}

	if s.requestLimiter != nil {
		if !s.requestLimiter.Get(util.GetClientIP(r)).Allow(1) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if s.handler == nil {
		http.Error(w, "Server not started", http.StatusServiceUnavailable)
		return
	}

	go func() {
		resp := processMessage(s.baseCtx, s.handler, s.info, raw)
		if resp == nil {
			return
		}
		select {
		case session.messages <- resp:
		default:
			s.logger.Warn("sse session buffer full, dropping response", "session_id", session.id)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

// SessionCount reports the number of open event streams.
func (s *SSE) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}
