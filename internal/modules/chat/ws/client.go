package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"bloodlink/internal/modules/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// NewUpgrader accepts requests without an Origin header and those whose origin is allowed.
// An empty list or "*" allows every origin.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, o := range allowedOrigins {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
}

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
	Log    *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string, log *slog.Logger) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		UserID: userID,
		Log:    log.With(slog.String("userID", userID)),
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		if err := c.Conn.Close(); err != nil && !isClosedConn(err) {
			c.Log.Warn("error closing connection in ReadPump", "error", err)
		}
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				c.Log.Warn("ReadPump: unexpected close error", "error", err)
			} else if !errors.Is(err, websocket.ErrCloseSent) && !isClosedConn(err) {
				c.Log.Info("ReadPump: connection closed", "error", err)
			}
			break
		}
		messageBytes = bytes.TrimSpace(bytes.Replace(messageBytes, newline, space, -1))

		var wsMsg chat.WebSocketMessage
		if err := json.Unmarshal(messageBytes, &wsMsg); err != nil {
			c.Log.Warn("ReadPump: failed to unmarshal websocket message", "error", err)
			c.Hub.sendErrorToClient(c, "invalid message format", "", "")
			continue
		}
		c.Hub.ProcessClientMessage(c, wsMsg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.Conn.Close(); err != nil && !isClosedConn(err) {
			c.Log.Warn("error closing connection in WritePump", "error", err)
		}
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.Log.Error("WritePump: failed to get next writer", "error", err)
				return
			}
			if _, err := w.Write(message); err != nil {
				c.Log.Error("WritePump: failed to write message", "error", err)
				_ = w.Close()
				return
			}
			if err := w.Close(); err != nil {
				c.Log.Error("WritePump: failed to close writer", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func isClosedConn(err error) bool {
	return strings.Contains(err.Error(), "use of closed network connection")
}
