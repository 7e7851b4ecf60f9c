package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"gallery-service/internal/player"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBuffer = 256
)

// Client is one browser session: a connection and the player it drives.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	player *player.Player
	logger *log.Logger

	mu     sync.Mutex
	closed bool

	unsubscribe func()
}

// enqueue queues msg for the write pump without blocking. It reports false
// when the client is closed or its buffer is full.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) enqueueJSON(v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("encode message", "err", err)
		return false
	}
	return c.enqueue(b)
}

func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// readPump feeds browser commands into the player until the connection
// fails.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read", "err", err)
			}
			return
		}
		c.handle(data)
	}
}

// writePump drains send to the connection and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type command struct {
	Type     string   `json:"type"`
	Index    *int     `json:"index"`
	ID       string   `json:"id"`
	Percent  *float64 `json:"percent"`
	Elapsed  float64  `json:"elapsed"`
	Duration float64  `json:"duration"`
	Message  string   `json:"message"`
	Load     uint64   `json:"load"` // id of the transport load a report is about
}

var errMissingField = errors.New("missing field")

func (c *Client) handle(data []byte) {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.notice("invalid message")
		return
	}

	p := c.player
	var err error
	switch cmd.Type {
	case "toggle":
		err = p.TogglePlayPause()
	case "select":
		if cmd.ID != "" {
			err = p.SelectTrackID(cmd.ID)
			break
		}
		if cmd.Index == nil {
			err = errMissingField
			break
		}
		err = p.SelectTrack(*cmd.Index)
	case "next":
		err = p.Next()
	case "previous":
		err = p.Previous()
	case "seek":
		if cmd.Percent == nil {
			err = errMissingField
			break
		}
		err = p.Seek(*cmd.Percent)
	case "volume":
		if cmd.Percent == nil {
			err = errMissingField
			break
		}
		err = p.SetVolume(*cmd.Percent)
	case "timeupdate":
		p.OnTimeUpdateFor(cmd.Load, cmd.Elapsed, cmd.Duration)
	case "ended":
		p.OnTrackEndedFor(cmd.Load)
	case "error":
		p.OnTransportError(errors.New(cmd.Message))
	default:
		c.notice("unknown command: " + cmd.Type)
		return
	}
	if err != nil {
		c.notice(cmd.Type + ": " + err.Error())
	}
}

func (c *Client) notice(msg string) {
	c.enqueueJSON(map[string]any{
		"type":    "notice",
		"kind":    "error",
		"message": msg,
	})
}

func (c *Client) sendState(s player.Snapshot) {
	c.enqueueJSON(stateMessage{Type: "state", Snapshot: s})
}

type stateMessage struct {
	Type string `json:"type"`
	player.Snapshot
}
