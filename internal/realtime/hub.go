package realtime

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync/atomic"

	"gallery-service/internal/player"

	"github.com/charmbracelet/log"
)

// TrackSource loads the current playlist, newest first.
type TrackSource interface {
	ListTracks(ctx context.Context) ([]player.Track, error)
}

// Hub owns the set of connected sessions and fans library events out to
// them. Track events also reload the playlist into every session's player.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Inbound library events to broadcast to all clients.
	broadcast chan []byte

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Fresh playlists from the refresher.
	tracks chan []player.Track

	// Coalesced refresh requests; capacity 1.
	refresh chan struct{}

	// Closed when Run returns.
	done chan struct{}

	// Number of track events seen; sessions compare it around their
	// bootstrap load.
	trackEvents atomic.Uint64

	source TrackSource
	logger *log.Logger
}

func NewHub(source TrackSource, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		tracks:     make(chan []player.Track),
		refresh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		source:     source,
		logger:     logger,
	}
}

// Run serves the hub until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	go h.runRefresher(ctx)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				if !client.enqueue(message) {
					h.logger.Warn("drop slow client", "client", client.id)
					h.drop(client)
				}
			}
			if isTrackEvent(message) {
				h.trackEvents.Add(1)
				h.requestRefresh()
			}

		case tracks := <-h.tracks:
			for client := range h.clients {
				client.player.SetTracks(tracks)
			}
		}
	}
}

// Broadcast hands a raw event to every session. It blocks until the hub
// takes it or ctx is done.
func (h *Hub) Broadcast(ctx context.Context, message []byte) {
	select {
	case h.broadcast <- message:
	case <-ctx.Done():
	case <-h.done:
	}
}

// Publish makes the hub an in-process event publisher for deployments
// without Redis.
func (h *Hub) Publish(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		h.logger.Error("encode event", "type", eventType, "err", err)
		return
	}
	h.Broadcast(ctx, data)
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.close()
}

func (h *Hub) requestRefresh() {
	select {
	case h.refresh <- struct{}{}:
	default:
	}
}

// runRefresher reloads the playlist one request at a time so lists reach
// the hub in the order they were read.
func (h *Hub) runRefresher(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.refresh:
		}
		if h.source == nil {
			continue
		}
		tracks, err := h.source.ListTracks(ctx)
		if err != nil {
			h.logger.Error("reload tracks", "err", err)
			continue
		}
		select {
		case h.tracks <- tracks:
		case <-ctx.Done():
			return
		}
	}
}

func isTrackEvent(message []byte) bool {
	var ev struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &ev); err != nil {
		return false
	}
	return strings.HasPrefix(ev.Type, "track.")
}
