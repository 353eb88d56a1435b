// Package gateway is the host bridge: an HTTP + WebSocket server through
// which the desktop host reads and edits settings and receives the host
// notifications the settings store produces.
package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/enso/internal/config"
	"github.com/soyeahso/enso/internal/detect"
	"github.com/soyeahso/enso/internal/hooks"
	"github.com/soyeahso/enso/internal/logging"
	"github.com/soyeahso/enso/internal/settings"
	"github.com/soyeahso/enso/internal/store"
	"github.com/soyeahso/enso/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

const (
	maxPayload       = 1 << 20
	handshakeTimeout = 10 * time.Second
)

// SettingsService is the part of the settings store the gateway serves.
// *store.Store satisfies it.
type SettingsService interface {
	Phase() store.Phase
	Revision() uint64
	WriteFailures() int
	Snapshot() settings.Snapshot
	Get(path string) (any, error)
	Apply(path string, value any) (any, error)
	SetDefaultAgent(id string) error
	SetAgentEnabled(id string, enabled bool) error
	SetAgentDetectionStatus(id string, info settings.AgentDetectionInfo) error
}

// AgentDetector probes agent CLIs. *detect.Detector satisfies it.
type AgentDetector interface {
	Refresh(ctx context.Context, snap settings.Snapshot, rec detect.Recorder) map[string]settings.AgentDetectionInfo
}

// Server is the enso gateway HTTP + WebSocket server.
type Server struct {
	cfg      config.GatewayConfig
	auth     ResolvedAuth
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	version  string
	eventSeq atomic.Int64

	settings SettingsService
	detector AgentDetector
	hooks    *hooks.Manager

	detecting atomic.Bool
	wg        sync.WaitGroup

	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// authRateLimiter tracks failed auth attempts per IP to slow brute-force attempts.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{failures: make(map[string][]time.Time)}
}

// cleanupLoop removes stale entries every minute until ctx is done.
func (l *authRateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.prune(now)
		}
	}
}

func (l *authRateLimiter) prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := now.Add(-authRateWindow)
	for ip, times := range l.failures {
		filtered := times[:0]
		for _, t := range times {
			if t.After(cutoff) {
				filtered = append(filtered, t)
			}
		}
		if len(filtered) == 0 {
			delete(l.failures, ip)
		} else {
			l.failures[ip] = filtered
		}
	}
}

func remoteHost(remoteAddr string) string {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		return remoteAddr
	}
	return host
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	host := remoteHost(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-authRateWindow)
	recent := l.failures[host]
	filtered := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		delete(l.failures, host)
		return true
	}
	l.failures[host] = filtered
	return len(filtered) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := remoteHost(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	// evict the oldest host once the table is full
	if _, exists := l.failures[host]; !exists && len(l.failures) >= authRateMaxIPs {
		var oldestIP string
		var oldestTime time.Time
		for ip, times := range l.failures {
			if len(times) > 0 && (oldestIP == "" || times[0].Before(oldestTime)) {
				oldestIP = ip
				oldestTime = times[0]
			}
		}
		if oldestIP != "" {
			delete(l.failures, oldestIP)
		}
	}

	l.failures[host] = append(l.failures[host], time.Now())
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithHooks connects the hook manager: every event it dispatches is
// broadcast to connected clients, and gateway lifecycle events are
// emitted through it.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithDetector enables the agents.detect method.
func WithDetector(d AgentDetector) ServerOption {
	return func(s *Server) {
		s.detector = d
	}
}

// New creates a new gateway server.
func New(cfg config.GatewayConfig, svc SettingsService, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Auth),
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("clients")),
		handlers:    make(map[string]RequestHandler),
		version:     version.Version,
		settings:    svc,
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerRPCHandlers()
	if s.hooks != nil {
		s.hooks.OnAll(hooks.AllEvents, "gateway.broadcast", s.broadcastHook)
	}
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// Requests without an Origin header (the desktop host, the CLI) are always
// allowed; browser origins must be listed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the sorted list of registered RPC method names.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// methodsFor returns the registered methods the connection may call.
func (s *Server) methodsFor(auth AuthResult) []string {
	var methods []string
	for _, m := range s.Methods() {
		if auth.Allows(m) {
			methods = append(methods, m)
		}
	}
	return methods
}

// Events returns the event names clients may receive.
func (s *Server) Events() []string {
	return append([]string{EventChallenge}, hooks.AllEvents...)
}

// Clients returns the connected client registry.
func (s *Server) Clients() *ClientRegistry { return s.clients }

// Broadcast sends an event to every connected client with the next
// sequence number.
func (s *Server) Broadcast(event string, payload any) int {
	return s.clients.Broadcast(event, payload, s.eventSeq.Add(1))
}

func (s *Server) broadcastHook(_ context.Context, p hooks.Payload) error {
	s.Broadcast(p.Event, p.Data)
	return nil
}

// ResolveBindAddr computes the listen address from config.
func ResolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.AllowedOrigins)
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := ResolveBindAddr(s.cfg)

	if !s.auth.Configured() {
		s.log.Warn().Str("mode", s.auth.Mode).Msg("no gateway credential configured, every connection will be rejected")
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertPath, s.cfg.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Bind != "loopback" {
		s.log.Warn().Msg("TLS is not enabled and the gateway is reachable off this host")
	}

	s.startedAt = time.Now()
	go s.authLimiter.cleanupLoop(ctx)

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Str("auth", s.auth.Mode).
		Int("methods", len(s.handlers)).
		Msg("gateway server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": ln.Addr().String()})
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		if s.hooks != nil {
			s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.wg.Wait()
	return nil
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited after repeated auth failures")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("new websocket connection")

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Msg("handshake failed")
		s.authLimiter.recordFailure(r.RemoteAddr)
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	s.readLoop(client)
}

// handshake performs the WebSocket authentication handshake.
// Flow: server sends challenge → client sends connect → server validates → sends hello-ok.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	challenge, err := NewEvent(EventChallenge, map[string]any{
		"nonce": uuid.New().String(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("creating challenge: %w", err)
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading connect: %w", err)
	}

	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return nil, fmt.Errorf("parsing connect frame: %w", err)
	}

	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		sendErrorAndClose(conn, frame.ID, CodeProtocol, "expected connect request")
		return nil, fmt.Errorf("expected connect request, got type=%s method=%s", frame.Type, frame.Method)
	}

	var params ConnectParams
	if err := json.Unmarshal(frame.Params, &params); err != nil {
		sendErrorAndClose(conn, frame.ID, CodeInvalidParams, "invalid connect params")
		return nil, fmt.Errorf("parsing connect params: %w", err)
	}
	if !params.supportsProtocol() {
		sendErrorAndClose(conn, frame.ID, CodeProtocolMismatch, fmt.Sprintf("server speaks protocol %d", ProtocolVersion))
		return nil, fmt.Errorf("protocol range %d-%d not supported", params.MinProtocol, params.MaxProtocol)
	}

	authResult := Authorize(s.auth, params)
	if !authResult.OK {
		sendErrorAndClose(conn, frame.ID, CodeUnauthorized, authResult.Reason)
		return nil, fmt.Errorf("auth failed: %s", authResult.Reason)
	}

	conn.SetReadDeadline(time.Time{})

	client := NewClient(conn, params, authResult, s.log.Sub("ws"))

	hello := HelloOK{
		Protocol: ProtocolVersion,
		Server: ServerInfo{
			Version: s.version,
			Commit:  version.Commit,
			ConnID:  client.ConnID,
		},
		Features: Features{
			Methods: s.methodsFor(authResult),
			Events:  s.Events(),
		},
		Policy: ServerPolicy{
			MaxPayload:     maxPayload,
			TickIntervalMs: 30000,
		},
	}

	resp, err := NewResponse(frame.ID, hello)
	if err != nil {
		return nil, fmt.Errorf("creating hello response: %w", err)
	}
	if err := client.Send(resp); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("clientId", params.Client.ID).
		Str("clientVersion", params.Client.Version).
		Str("authMethod", authResult.Method).
		Str("scope", string(authResult.Scope)).
		Msg("client authenticated")

	return client, nil
}

// readLoop processes incoming frames from an authenticated client.
func (s *Server) readLoop(client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}

		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}

		s.dispatch(client, frame)
	}
}

// dispatch routes a request frame to the appropriate handler.
func (s *Server) dispatch(client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    CodeMethodNotFound,
			Message: "unknown method: " + frame.Method,
		})
		return
	}
	if !client.AuthResult.Allows(frame.Method) {
		client.RespondError(frame.ID, ErrorShape{
			Code:    CodeForbidden,
			Message: frame.Method + " needs a host connection",
		})
		return
	}

	handler(&RequestContext{
		Client: client,
		Frame:  frame,
		Server: s,
	})
}

// sendErrorAndClose sends an error response and closes the connection.
func sendErrorAndClose(conn *websocket.Conn, reqID, code, message string) {
	conn.WriteJSON(NewErrorResponse(reqID, ErrorShape{
		Code:    code,
		Message: message,
	}))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, message))
}
