package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/hupe1980/marketingmesh"
	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/logging"
)

// Frame types exchanged over the WebSocket.
const (
	FrameMessage  = "message"
	FrameCancel   = "cancel"
	FrameToken    = "token"
	FrameProgress = "progress"
	FrameDone     = "done"
	FrameError    = "error"
	FrameReady    = "ready"
)

// Frame is the WebSocket envelope in both directions. Inbound frames use
// Type and Text; outbound frames fill the field matching their type.
type Frame struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Text      string         `json:"text,omitempty"`
	Progress  *core.Progress `json:"progress,omitempty"`
	Message   *core.Message  `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// wsConn serialises writes to a WebSocket and implements stream.Sink.
type wsConn struct {
	conn         *websocket.Conn
	sessionID    string
	writeTimeout time.Duration

	mu sync.Mutex
}

func (w *wsConn) write(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return err
	}

	return w.conn.WriteJSON(f)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeTimeout))
}

// Token implements stream.Sink.
func (w *wsConn) Token(_ context.Context, sessionID, text string) error {
	return w.write(Frame{Type: FrameToken, SessionID: sessionID, Text: text})
}

// Progress implements stream.Sink.
func (w *wsConn) Progress(_ context.Context, p core.Progress) error {
	return w.write(Frame{Type: FrameProgress, SessionID: p.SessionID, Text: p.Text, Progress: &p})
}

// Message implements stream.Sink.
func (w *wsConn) Message(_ context.Context, sessionID string, msg core.Message) error {
	return w.write(Frame{Type: FrameMessage, SessionID: sessionID, Message: &msg})
}

// handleWebSocket upgrades GET /ws?session_id=... and runs the connection.
// Inbound messages are processed one at a time in arrival order; a cancel
// frame stops the run in progress.
func (s *Server) handleWebSocket(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		sessionID = core.NewID()
	}

	id := identityFrom(c)

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.opts.Logger.Warn("chat.ws.upgrade_failed", "error", err.Error())
		return nil
	}

	conn := &wsConn{conn: ws, sessionID: sessionID, writeTimeout: s.opts.WriteTimeout}
	logger := logging.With(s.opts.Logger, "session", sessionID, "user", id.UserID)

	ctx, cancel := context.WithCancel(context.Background())
	inbox := make(chan string, 16)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.processInbox(ctx, conn, id, inbox, logger)
	}()

	go func() {
		defer wg.Done()
		s.keepAlive(ctx, conn)
	}()

	logger.Info("chat.ws.connected")
	_ = conn.write(Frame{Type: FrameReady, SessionID: sessionID})

	s.readLoop(conn, inbox, logger)

	close(inbox)
	cancel()
	wg.Wait()
	_ = ws.Close()

	logger.Info("chat.ws.disconnected")

	return nil
}

func (s *Server) readLoop(conn *wsConn, inbox chan<- string, logger logging.Logger) {
	ws := conn.conn
	ws.SetReadLimit(s.opts.MaxMessageSize)

	readTimeout := 2 * s.opts.PingInterval
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("chat.ws.read_error", "error", err.Error())
			}
			return
		}

		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			_ = conn.write(Frame{Type: FrameError, SessionID: conn.sessionID, Error: "invalid JSON frame"})
			continue
		}

		switch f.Type {
		case FrameMessage:
			if strings.TrimSpace(f.Text) == "" {
				_ = conn.write(Frame{Type: FrameError, SessionID: conn.sessionID, Error: "text is required"})
				continue
			}
			select {
			case inbox <- f.Text:
			default:
				_ = conn.write(Frame{Type: FrameError, SessionID: conn.sessionID, Error: "too many pending messages"})
			}
		case FrameCancel:
			if err := s.assistant.Cancel(conn.sessionID); err != nil {
				_ = conn.write(Frame{Type: FrameError, SessionID: conn.sessionID, Error: err.Error()})
			}
		default:
			_ = conn.write(Frame{Type: FrameError, SessionID: conn.sessionID, Error: "unknown frame type: " + f.Type})
		}
	}
}

func (s *Server) processInbox(ctx context.Context, conn *wsConn, id Identity, inbox <-chan string, logger logging.Logger) {
	for text := range inbox {
		if ctx.Err() != nil {
			continue
		}

		reply, err := s.assistant.HandleMessage(ctx, marketingmesh.Inbound{
			SessionID: conn.sessionID,
			UserID:    id.UserID,
			Text:      text,
		}, conn)
		if err != nil {
			logger.Error("chat.ws.handle_error", "error", err.Error())
			_ = conn.write(Frame{Type: FrameError, SessionID: conn.sessionID, Error: "failed to process message"})
			continue
		}

		_ = conn.write(Frame{Type: FrameDone, SessionID: conn.sessionID, Message: &reply})
	}
}

func (s *Server) keepAlive(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
