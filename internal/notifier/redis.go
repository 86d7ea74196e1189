package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// Channel is the Redis channel that mirrors the events of a room.
func Channel(roomID int64) string {
	return "room:" + strconv.FormatInt(roomID, 10) + ":events"
}

// Message is the payload published on a room channel.
type Message struct {
	Recipients []int64      `json:"recipients"`
	Event      entity.Event `json:"event"`
}

// Redis mirrors room events to Redis pub/sub for other processes.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client: client,
	}
}

func (that *Redis) Publish(ctx context.Context, event entity.Event) error {
	payload, err := json.Marshal(Message{Recipients: event.Recipients, Event: event})
	if err != nil {
		return fmt.Errorf("could not marshal event: %w", err)
	}

	if err = that.client.Publish(ctx, Channel(event.RoomID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
