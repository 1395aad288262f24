package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"labagent/pkg/api"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // host GUI runs on another origin
	},
}

type WebConfig struct {
	Port int `json:"port"` // Default: 8080
}

// IncomingMessage is what the host GUI sends: the user's text plus the
// classifier's output and, optionally, a fresh state snapshot.
type IncomingMessage struct {
	Text        string         `json:"text"`
	Intent      string         `json:"intent,omitempty"`
	Agent       string         `json:"agent,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	SystemState map[string]any `json:"system_state,omitempty"`
	Session     string         `json:"session,omitempty"` // Conversation key, defaults to the connection id
}

// outgoing frame types
const (
	frameSession = "session"
	frameReply   = "reply"
	frameSignal  = "signal"
)

type SafeConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (sc *SafeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.Conn.WriteMessage(websocket.TextMessage, data)
}

type WebChannel struct {
	config      WebConfig
	server      *http.Server
	connections map[string]*SafeConn // connection id -> WS Connection
	mu          sync.RWMutex
}

func NewWebChannel(cfg WebConfig) *WebChannel {
	return &WebChannel{
		config:      cfg,
		connections: make(map[string]*SafeConn),
	}
}

func (c *WebChannel) ID() string {
	return "web"
}

// Handler returns the HTTP handler serving the websocket endpoint.
func (c *WebChannel) Handler(ctx api.ChannelContext) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		c.handleWebSocket(w, r, ctx)
	})
	return mux
}

func (c *WebChannel) Start(ctx api.ChannelContext) error {
	c.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", c.config.Port),
		Handler: c.Handler(ctx),
	}

	slog.Info("Web API listening", "port", c.config.Port)

	go func() {
		if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web API server error", "error", err)
		}
	}()

	return nil
}

func (c *WebChannel) Stop() error {
	// Hijacked websocket connections survive server.Close.
	c.mu.Lock()
	for id, conn := range c.connections {
		conn.Close()
		delete(c.connections, id)
	}
	c.mu.Unlock()

	if c.server != nil {
		return c.server.Close()
	}
	return nil
}

func (c *WebChannel) conn(session api.SessionContext) (*SafeConn, error) {
	c.mu.RLock()
	conn, ok := c.connections[session.UserID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("web client %s not connected", session.UserID)
	}
	return conn, nil
}

func (c *WebChannel) Send(session api.SessionContext, message string) error {
	conn, err := c.conn(session)
	if err != nil {
		return err
	}
	return conn.WriteJSON(map[string]string{
		"type":    frameReply,
		"session": session.ChatID,
		"text":    message,
	})
}

// SendSignal implements the gateway.SignalingChannel interface
func (c *WebChannel) SendSignal(session api.SessionContext, signal string) error {
	conn, err := c.conn(session)
	if err != nil {
		return err
	}
	return conn.WriteJSON(map[string]string{
		"type":    frameSignal,
		"session": session.ChatID,
		"value":   signal,
	})
}

func (c *WebChannel) handleWebSocket(w http.ResponseWriter, r *http.Request, ctx api.ChannelContext) {
	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WS Upgrade failed", "error", err)
		return
	}

	conn := &SafeConn{Conn: rawConn}
	connID := uuid.NewString()

	c.mu.Lock()
	c.connections[connID] = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.connections, connID)
		c.mu.Unlock()
		conn.Close()
	}()

	if err := conn.WriteJSON(map[string]string{"type": frameSession, "id": connID}); err != nil {
		slog.Error("Failed to greet web client", "error", err)
		return
	}
	slog.Debug("Web client connected", "id", connID, "remote", r.RemoteAddr)

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}
		ctx.OnMessage(c.ID(), decodeMessage(connID, msgBytes))
	}
}

// decodeMessage accepts an IncomingMessage or, failing that, plain text.
func decodeMessage(connID string, data []byte) *api.UnifiedMessage {
	var in IncomingMessage
	if err := json.Unmarshal(data, &in); err != nil {
		in = IncomingMessage{Text: string(data)}
	}

	chatID := in.Session
	if chatID == "" {
		chatID = connID
	}

	return &api.UnifiedMessage{
		Session: api.SessionContext{
			ChannelID: "web",
			UserID:    connID,
			ChatID:    chatID,
			Username:  "host",
		},
		Content:     in.Text,
		Intent:      in.Intent,
		Agent:       in.Agent,
		Parameters:  in.Parameters,
		SystemState: in.SystemState,
		Raw:         in,
	}
}
