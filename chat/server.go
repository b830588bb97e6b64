// Package chat exposes the assistant over HTTP and WebSocket. The HTTP API
// is request/response; the WebSocket endpoint streams tokens, progress and
// messages as they are produced.
package chat

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hupe1980/marketingmesh"
	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/credential"
	"github.com/hupe1980/marketingmesh/logging"
	"github.com/hupe1980/marketingmesh/stream"
)

// Options configures a Server.
type Options struct {
	// Authenticator resolves callers. Defaults to BearerAuthenticator.
	Authenticator Authenticator
	// RequireAuth rejects anonymous requests.
	RequireAuth bool
	// AllowedOrigins restricts CORS and WebSocket origins (empty = any).
	AllowedOrigins []string
	// MaxMessageSize limits inbound WebSocket frames.
	MaxMessageSize int64
	// PingInterval is the WebSocket keepalive period.
	PingInterval time.Duration
	// WriteTimeout bounds a single WebSocket write.
	WriteTimeout time.Duration
	Logger       logging.Logger
}

// Server serves the chat API.
type Server struct {
	assistant *marketingmesh.Assistant
	creds     *credential.Store
	opts      Options
	echo      *echo.Echo
	upgrader  websocket.Upgrader
}

// SendRequest is the body of POST /api/sessions/:id/messages.
type SendRequest struct {
	Text string `json:"text"`
}

// SendResponse is returned by POST /api/sessions/:id/messages.
type SendResponse struct {
	SessionID string          `json:"session_id"`
	Reply     core.Message    `json:"reply"`
	Messages  []core.Message  `json:"messages"`
	Progress  []core.Progress `json:"progress"`
}

// HistoryResponse is returned by GET /api/sessions/:id/messages.
type HistoryResponse struct {
	SessionID string         `json:"session_id"`
	Messages  []core.Message `json:"messages"`
}

// NewServer creates the chat server and registers its routes.
func NewServer(assistant *marketingmesh.Assistant, creds *credential.Store, optFns ...func(o *Options)) *Server {
	opts := Options{
		Authenticator:  BearerAuthenticator,
		MaxMessageSize: 64 * 1024,
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		assistant: assistant,
		creds:     creds,
		opts:      opts,
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if len(opts.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: opts.AllowedOrigins}))
	} else {
		e.Use(middleware.CORS())
	}

	e.GET("/healthz", s.handleHealth)

	auth := authMiddleware(opts.Authenticator, creds, opts.RequireAuth)

	api := e.Group("/api", auth)
	api.POST("/sessions", s.handleCreateSession)
	api.POST("/sessions/:id/messages", s.handleSend)
	api.GET("/sessions/:id/messages", s.handleHistory)
	api.DELETE("/sessions/:id/run", s.handleCancel)

	e.GET("/ws", s.handleWebSocket, auth)

	s.echo = e

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.opts.Logger.Info("chat.server.start", "addr", addr)

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.opts.Logger.Info("chat.server.shutdown")
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(c echo.Context) error {
	return c.JSON(http.StatusCreated, map[string]string{"session_id": core.NewID()})
}

func (s *Server) handleSend(c echo.Context) error {
	sessionID := c.Param("id")

	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	id := identityFrom(c)
	sink := stream.NewMemorySink()

	reply, err := s.assistant.HandleMessage(c.Request().Context(), marketingmesh.Inbound{
		SessionID: sessionID,
		UserID:    id.UserID,
		Text:      req.Text,
	}, sink)
	if err != nil {
		s.opts.Logger.Error("chat.send.error", "session", sessionID, "error", err.Error())
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process message")
	}

	return c.JSON(http.StatusOK, SendResponse{
		SessionID: sessionID,
		Reply:     reply,
		Messages:  sink.Messages(),
		Progress:  sink.ProgressEvents(),
	})
}

func (s *Server) handleHistory(c echo.Context) error {
	sessionID := c.Param("id")

	msgs, err := s.assistant.History(c.Request().Context(), sessionID)
	if err != nil {
		s.opts.Logger.Error("chat.history.error", "session", sessionID, "error", err.Error())
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load history")
	}

	if msgs == nil {
		msgs = []core.Message{}
	}

	return c.JSON(http.StatusOK, HistoryResponse{SessionID: sessionID, Messages: msgs})
}

func (s *Server) handleCancel(c echo.Context) error {
	if err := s.assistant.Cancel(c.Param("id")); err != nil {
		if errors.Is(err, marketingmesh.ErrNoActiveRun) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return err
	}

	return c.NoContent(http.StatusAccepted)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.opts.AllowedOrigins, origin)
}
