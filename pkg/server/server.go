package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/billform/pkg/export"
	"github.com/vango-dev/billform/pkg/metrics"
	"github.com/vango-dev/billform/pkg/receipt"
	"github.com/vango-dev/billform/pkg/render"
)

// ClientPath is where the embedded client script is served.
const ClientPath = "/client.js"

// Server serves the live receipt page, its WebSocket and the static
// printable page.
type Server struct {
	config   *Config
	catalog  *receipt.Catalog
	sessions *SessionManager
	exporter *export.Exporter
	renderer *render.Renderer
	metrics  *metrics.Metrics
	logger   *slog.Logger

	router     chi.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics, tracing spans and GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithExporter sets the exporter behind /print and /export. Without one,
// /print still works and /export answers 503.
func WithExporter(e *export.Exporter) Option {
	return func(s *Server) {
		s.exporter = e
	}
}

// New creates a server. Zero fields of config take their defaults.
func New(config *Config, catalog *receipt.Catalog, opts ...Option) *Server {
	s := &Server{
		config:   config.withDefaults(),
		catalog:  catalog,
		renderer: render.NewRenderer(render.Config{Hydrate: true}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")
	if s.exporter == nil {
		s.exporter = export.NewExporter(nil, catalog,
			export.WithStyleSheets(s.config.StyleSheets...),
			export.WithMetrics(s.metrics),
			export.WithLogger(s.logger))
	}
	s.sessions = NewSessionManager(catalog, s.config.Session, s.config.MaxSessions,
		s.config.CleanupInterval, s.metrics, s.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.config.CheckOrigin,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/", s.handlePage)
	r.Get("/print", s.handlePrint)
	r.Post("/export", s.handleExport)
	r.Get("/ws", s.HandleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Get(ClientPath, s.serveClient)
	r.Head(ClientPath, s.serveClient)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Config returns the effective configuration.
func (s *Server) Config() *Config {
	return s.config
}

// handlePage mounts a session for the query string and serves it as HTML.
// The page's script attaches to the session over /ws.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	q := receipt.FromValues(r.URL.Query(), s.catalog)
	sess, err := s.sessions.Create(q)
	if err != nil {
		if errors.Is(err, ErrMaxSessionsReached) {
			http.Error(w, "Too many open documents", http.StatusServiceUnavailable)
			return
		}
		s.logger.Error("create session", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	_, span := s.metrics.StartRender(r.Context(), "live")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err = s.renderer.RenderPage(w, render.Page{
		Title:        sess.Receipt().Labels().Title,
		Lang:         q.Lang.Tag(),
		Body:         sess.Document().Root(),
		Styles:       []string{render.PrintCSS},
		StyleSheets:  s.config.StyleSheets,
		Scripts:      s.config.Scripts,
		SessionID:    sess.ID,
		ClientScript: ClientPath,
	})
	metrics.End(span, err)
	if err != nil {
		s.logger.Warn("render page", "session_id", sess.ID, "error", err)
		s.sessions.Remove(sess.ID)
	}
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	q := receipt.FromValues(r.URL.Query(), s.catalog)
	w.Header().Set("Content-Type", export.ContentType)
	if err := s.exporter.WritePage(r.Context(), w, q); err != nil {
		s.logger.Warn("render print page", "error", err)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.exporter.Enabled() {
		http.Error(w, "Export is not configured", http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	q := receipt.FromValues(r.Form, s.catalog)
	loc, err := s.exporter.Export(r.Context(), q)
	switch {
	case errors.Is(err, export.ErrTooLarge):
		http.Error(w, "Document too large", http.StatusRequestEntityTooLarge)
		return
	case err != nil:
		http.Error(w, "Export failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"sessions":  s.sessions.Stats(),
		"languages": s.catalog.Languages(),
	})
}

// HandleWebSocket attaches a connection to the session named by the
// session query parameter. Unknown or already attached sessions are
// rejected before the upgrade so the client can reload the page.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.URL.Query().Get("session"))
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if sess.Attached() {
		http.Error(w, "Session already attached", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	if err := sess.Attach(conn); err != nil {
		s.logger.Warn("attach failed", "session_id", sess.ID, "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// requestLogger logs one line per request with the chi request ID.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every session, then the HTTP server, within
// ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.sessions.Shutdown(ctx); err != nil {
		s.logger.Warn("session shutdown", "error", err)
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	s.logger.Info("server shutdown complete")
	return nil
}
