// Package realtime runs the WebSocket player sessions and relays library
// events to them.
package realtime

import (
	"context"
	"io"
	"net/http"
	"time"

	"gallery-service/internal/player"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// Channel matches the channel the gallery publishes library events on.
const Channel = "broadcast"

type Server struct {
	hub      *Hub
	rdb      *redis.Client
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewServer builds the session server. rdb may be nil. allowedOrigin is
// either empty (same host only), "*" or an exact origin.
func NewServer(hub *Hub, rdb *redis.Client, allowedOrigin string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		hub:    hub,
		rdb:    rdb,
		logger: logger,
	}
	switch allowedOrigin {
	case "":
		// gorilla's default: Origin host must equal Host.
	case "*":
		s.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	default:
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == allowedOrigin
		}
	}
	return s
}

// Handler serves GET /ws.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleWS)
}

// RunRedisSubscriber forwards every message on Channel to the hub until ctx
// is done. It returns immediately without Redis.
func (s *Server) RunRedisSubscriber(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	sub := s.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.hub.Broadcast(ctx, []byte(msg.Payload))
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	seen := s.hub.trackEvents.Load()
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	var tracks []player.Track
	if s.hub.source != nil {
		var err error
		tracks, err = s.hub.source.ListTracks(ctx)
		if err != nil {
			s.logger.Warn("load tracks for session", "err", err)
		}
	}
	cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade", "err", err)
		return
	}

	id := uuid.NewString()
	client := &Client{
		id:     id,
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		logger: s.logger.With("session", id),
	}

	client.enqueueJSON(map[string]any{
		"type": "welcome",
		"now":  time.Now().UTC().Format(time.RFC3339Nano),
	})

	client.player = player.New(tracks, wsTransport{c: client}, player.WithLogger(client.logger))
	client.unsubscribe = client.player.Subscribe(client.sendState)
	client.sendState(client.player.Snapshot())

	s.hub.Register(client)
	// A track event handled before the session joined refreshed everyone
	// but this player, which may hold the list from before it.
	if s.hub.trackEvents.Load() != seen {
		s.hub.requestRefresh()
	}

	go client.writePump()
	go client.readPump()
}
