package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// Publisher delivers a room event to its recipients.
type Publisher interface {
	Publish(ctx context.Context, event entity.Event) error
}

type eventObserver interface {
	EventPublished(eventType string, ok bool)
}

// Fanout publishes every event to all of its publishers.
type Fanout []Publisher

func (that Fanout) Publish(ctx context.Context, event entity.Event) error {
	var errs []error
	for _, publisher := range that {
		if err := publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Retrying retries a publisher with exponential backoff a bounded number of times.
type Retrying struct {
	logger          *slog.Logger
	next            Publisher
	observer        eventObserver
	maxAttempts     uint64
	initialInterval time.Duration
}

func NewRetrying(logger *slog.Logger, next Publisher, observer eventObserver, maxAttempts int, initialInterval time.Duration) *Retrying {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Retrying{
		logger:          logger.With("component", "notifier"),
		next:            next,
		observer:        observer,
		maxAttempts:     uint64(maxAttempts),
		initialInterval: initialInterval,
	}
}

func (that *Retrying) Publish(ctx context.Context, event entity.Event) error {
	log := that.logger.With("method", "Publish", "roomID", event.RoomID, "event", event.Type)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = that.initialInterval

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := that.next.Publish(ctx, event); err != nil {
			log.Warn("failed to publish event", "attempt", attempt, "error", err)
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, that.maxAttempts-1), ctx))

	if that.observer != nil {
		that.observer.EventPublished(string(event.Type), err == nil)
	}

	if err != nil {
		return fmt.Errorf("failed to publish %s after %d attempts: %w", event.Type, attempt, err)
	}

	return nil
}
