package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// Hub delivers room events to the open connections of their recipients.
// It also remembers the rooms each connected user is in, across all of the user's connections.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}
	rooms   map[int64]map[int64]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With("component", "hub"),
		clients: make(map[int64]map[*client]struct{}),
		rooms:   make(map[int64]map[int64]struct{}),
	}
}

// Publish queues the event on every connection of every recipient. Slow connections are dropped.
func (that *Hub) Publish(_ context.Context, event entity.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	data, err := json.Marshal(Message{Action: string(event.Type), Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if event.NewRoomID != nil {
		for _, userID := range event.Recipients {
			that.track(userID, *event.NewRoomID)
		}
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	for _, userID := range event.Recipients {
		for c := range that.clients[userID] {
			if !c.enqueue(data) {
				that.logger.Warn("dropping slow connection", "connectionID", c.id, "userID", userID)
			}
		}
	}

	return nil
}

// Connected reports whether userID has an open connection.
func (that *Hub) Connected(userID int64) bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.clients[userID]) > 0
}

func (that *Hub) register(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.clients[c.userID] == nil {
		that.clients[c.userID] = make(map[*client]struct{})
	}
	that.clients[c.userID][c] = struct{}{}
}

// unregister removes c. When it was the last connection of its user, the user's rooms are returned and forgotten.
func (that *Hub) unregister(c *client) []int64 {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.clients[c.userID], c)
	if len(that.clients[c.userID]) > 0 {
		return nil
	}
	delete(that.clients, c.userID)

	rooms := make([]int64, 0, len(that.rooms[c.userID]))
	for roomID := range that.rooms[c.userID] {
		rooms = append(rooms, roomID)
	}
	delete(that.rooms, c.userID)
	slices.Sort(rooms)

	return rooms
}

// track records that userID is in roomID. Users without an open connection are ignored.
func (that *Hub) track(userID, roomID int64) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.clients[userID]) == 0 {
		return
	}

	if that.rooms[userID] == nil {
		that.rooms[userID] = make(map[int64]struct{})
	}
	that.rooms[userID][roomID] = struct{}{}
}

func (that *Hub) untrack(userID, roomID int64) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.rooms[userID], roomID)
}
