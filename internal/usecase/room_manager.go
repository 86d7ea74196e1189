package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/lifecycle"
	"github.com/rocketscienceinc/gomoku-backend/internal/metrics"
	"github.com/rocketscienceinc/gomoku-backend/internal/registry"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository"
)

const (
	historyAttempts      = 3
	historyRetryInterval = 20 * time.Millisecond
)

type roomStore interface {
	LoadRoom(ctx context.Context, id int64) (*entity.Room, error)
	LoadMatch(ctx context.Context, id int64) (*entity.Match, error)
	Save(ctx context.Context, changes repository.Changeset) error
	FindRoomByCode(ctx context.Context, code string) (int64, error)
	ListPublicRooms(ctx context.Context) ([]*entity.Room, error)
	NextRoomID(ctx context.Context) (int64, error)
	NextMatchID(ctx context.Context) (int64, error)
	ReserveJoinCode(ctx context.Context, code string, roomID int64) (bool, error)
	ReleaseJoinCode(ctx context.Context, code string) error
}

type historyStore interface {
	Record(ctx context.Context, history *entity.GameHistory) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]entity.GameHistory, error)
}

type publisher interface {
	Publish(ctx context.Context, event entity.Event) error
}

type operationObserver interface {
	ObserveOperation(operation, result string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, time.Duration) {}

// Session is what a room actor keeps between operations: the last committed aggregate, or nil when it must be loaded.
type Session struct {
	agg *lifecycle.Aggregate
}

type operation func(ctx context.Context, agg *lifecycle.Aggregate) (*lifecycle.Outcome, error)

// RoomManager runs lifecycle operations inside the actor of their room and persists and publishes the results.
type RoomManager struct {
	logger    *slog.Logger
	rooms     *registry.Registry[Session]
	engine    *lifecycle.Engine
	store     roomStore
	history   historyStore
	publisher publisher
	observer  operationObserver
}

func NewRoomManager(
	logger *slog.Logger,
	rooms *registry.Registry[Session],
	store roomStore,
	history historyStore,
	publisher publisher,
	observer operationObserver,
) *RoomManager {
	if observer == nil {
		observer = nopObserver{}
	}

	return &RoomManager{
		logger:    logger.With("component", "room_manager"),
		rooms:     rooms,
		engine:    lifecycle.NewEngine(storeAllocator{store: store}, time.Now),
		store:     store,
		history:   history,
		publisher: publisher,
		observer:  observer,
	}
}

// CreateRoom opens a room with hostID seated as host.
func (that *RoomManager) CreateRoom(ctx context.Context, hostID int64, name string, isPrivate bool) (snapshot *lifecycle.Aggregate, err error) {
	defer that.observe("createRoom", time.Now(), &err)

	roomID, err := that.store.NextRoomID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate room id: %w: %w", apperror.ErrStorageUnavailable, err)
	}

	log := that.logger.With("method", "CreateRoom", "roomID", roomID)

	err = that.rooms.Do(ctx, roomID, func(ctx context.Context, session *Session) error {
		agg, out, err := that.engine.Create(ctx, roomID, name, isPrivate, hostID)
		if err != nil {
			return err
		}

		snapshot, err = that.commit(ctx, log, session, agg, out)
		return err
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// JoinRoom seats userID in roomID. code is required for private rooms.
func (that *RoomManager) JoinRoom(ctx context.Context, roomID, userID int64, code string) (*lifecycle.Aggregate, error) {
	code = normalizeCode(code)

	snapshot, _, err := that.execute(ctx, "joinRoom", roomID, func(_ context.Context, agg *lifecycle.Aggregate) (*lifecycle.Outcome, error) {
		return that.engine.Join(agg, userID, code)
	})

	return snapshot, err
}

// JoinByCode resolves a private room by its join code and joins it.
func (that *RoomManager) JoinByCode(ctx context.Context, code string, userID int64) (*lifecycle.Aggregate, error) {
	code = normalizeCode(code)
	if !entity.IsJoinCode(code) {
		return nil, apperror.ErrInvalidJoinCode
	}

	roomID, err := that.store.FindRoomByCode(ctx, code)
	if errors.Is(err, repository.ErrJoinCodeNotFound) {
		return nil, apperror.ErrInvalidJoinCode
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find room by code: %w: %w", apperror.ErrStorageUnavailable, err)
	}

	return that.JoinRoom(ctx, roomID, userID, code)
}

// LeaveRoom removes userID from roomID. Transports call it on disconnect too.
func (that *RoomManager) LeaveRoom(ctx context.Context, roomID, userID int64) error {
	_, _, err := that.execute(ctx, "leaveRoom", roomID, func(_ context.Context, agg *lifecycle.Aggregate) (*lifecycle.Outcome, error) {
		return that.engine.Leave(agg, userID)
	})

	return err
}

func (that *RoomManager) SetReady(ctx context.Context, roomID, userID int64, ready bool) (*lifecycle.Aggregate, error) {
	snapshot, _, err := that.execute(ctx, "setReady", roomID, func(ctx context.Context, agg *lifecycle.Aggregate) (*lifecycle.Outcome, error) {
		return that.engine.SetReady(ctx, agg, userID, ready)
	})

	return snapshot, err
}

// SubmitMove places a stone for userID and returns the new state of the room.
func (that *RoomManager) SubmitMove(ctx context.Context, roomID, userID int64, pos entity.Position) (*lifecycle.Aggregate, error) {
	snapshot, _, err := that.execute(ctx, "submitMove", roomID, func(_ context.Context, agg *lifecycle.Aggregate) (*lifecycle.Outcome, error) {
		return that.engine.Move(agg, userID, pos)
	})

	return snapshot, err
}

func (that *RoomManager) Surrender(ctx context.Context, roomID, userID int64) (*lifecycle.Aggregate, error) {
	snapshot, _, err := that.execute(ctx, "surrender", roomID, func(_ context.Context, agg *lifecycle.Aggregate) (*lifecycle.Outcome, error) {
		return that.engine.Surrender(agg, userID)
	})

	return snapshot, err
}

func (that *RoomManager) RequestRematch(ctx context.Context, roomID, userID int64) (*lifecycle.Aggregate, error) {
	snapshot, _, err := that.execute(ctx, "requestRematch", roomID, func(ctx context.Context, agg *lifecycle.Aggregate) (*lifecycle.Outcome, error) {
		return that.engine.RequestRematch(ctx, agg, userID)
	})

	return snapshot, err
}

// AcceptRematch returns the id of the rematch room, or zero when userID is the requester still waiting for the opponent.
func (that *RoomManager) AcceptRematch(ctx context.Context, roomID, userID int64) (int64, error) {
	snapshot, out, err := that.execute(ctx, "acceptRematch", roomID, func(ctx context.Context, agg *lifecycle.Aggregate) (*lifecycle.Outcome, error) {
		return that.engine.AcceptRematch(ctx, agg, userID)
	})
	if err != nil {
		return 0, err
	}

	switch {
	case out.RematchRoomID != nil:
		return *out.RematchRoomID, nil
	case snapshot.Room.RematchRoomID != nil:
		return *snapshot.Room.RematchRoomID, nil
	default:
		return 0, nil
	}
}

func (that *RoomManager) DeclineRematch(ctx context.Context, roomID, userID int64) (*lifecycle.Aggregate, error) {
	snapshot, _, err := that.execute(ctx, "declineRematch", roomID, func(_ context.Context, agg *lifecycle.Aggregate) (*lifecycle.Outcome, error) {
		return that.engine.DeclineRematch(agg, userID)
	})

	return snapshot, err
}

// GetRoom reads the stored room without going through its actor. The result may trail in-flight operations.
func (that *RoomManager) GetRoom(ctx context.Context, roomID int64) (*lifecycle.Aggregate, error) {
	return that.load(ctx, roomID)
}

// ListPublicRooms returns public rooms that are still waiting for players.
func (that *RoomManager) ListPublicRooms(ctx context.Context) ([]*entity.Room, error) {
	rooms, err := that.store.ListPublicRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list public rooms: %w: %w", apperror.ErrStorageUnavailable, err)
	}

	return rooms, nil
}

func (that *RoomManager) GameHistory(ctx context.Context, userID int64, limit int) ([]entity.GameHistory, error) {
	histories, err := that.history.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list game history: %w: %w", apperror.ErrStorageUnavailable, err)
	}

	return histories, nil
}

// execute applies op to a copy of the room's aggregate inside its actor and commits the copy on success.
func (that *RoomManager) execute(ctx context.Context, name string, roomID int64, op operation) (snapshot *lifecycle.Aggregate, out *lifecycle.Outcome, err error) {
	defer that.observe(name, time.Now(), &err)

	log := that.logger.With("method", name, "roomID", roomID)

	err = that.rooms.Do(ctx, roomID, func(ctx context.Context, session *Session) error {
		if session.agg == nil {
			agg, err := that.load(ctx, roomID)
			if err != nil {
				return err
			}
			session.agg = agg
		}

		work := session.agg.Clone()

		result, err := op(ctx, work)
		if err != nil {
			return err
		}
		out = result

		if !result.Changed {
			snapshot = work
			return nil
		}

		snapshot, err = that.commit(ctx, log, session, work, result)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return snapshot, out, nil
}

// commit validates, persists and publishes the result of one operation, then makes agg the actor's state.
func (that *RoomManager) commit(ctx context.Context, log *slog.Logger, session *Session, agg *lifecycle.Aggregate, out *lifecycle.Outcome) (*lifecycle.Aggregate, error) {
	if err := validate(agg, out); err != nil {
		log.Error("operation broke room invariants", "error", err)
		that.releaseCodes(ctx, log, out.Reserved)
		return nil, err
	}

	if err := that.persist(ctx, agg, out); err != nil {
		log.Error("failed to persist room", "error", err)
		session.agg = nil
		that.releaseCodes(ctx, log, out.Reserved)
		return nil, err
	}

	if out.Deleted {
		session.agg = nil
	} else {
		session.agg = agg
	}

	that.publish(context.WithoutCancel(ctx), log, out.Events)

	return agg.Clone(), nil
}

func validate(agg *lifecycle.Aggregate, out *lifecycle.Outcome) error {
	if !out.Deleted {
		if err := agg.Validate(); err != nil {
			return err
		}
	}

	if out.Spawned != nil {
		if err := out.Spawned.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// persist records history before saving the room. A failed save leaves a history row that the match's
// committed conclusion later overwrites, since Record upserts by match id.
func (that *RoomManager) persist(ctx context.Context, agg *lifecycle.Aggregate, out *lifecycle.Outcome) error {
	if out.History != nil {
		if err := that.recordHistory(ctx, out.History); err != nil {
			return fmt.Errorf("failed to record game history: %w: %w", apperror.ErrStorageUnavailable, err)
		}
	}

	changes := repository.Changeset{
		NewMoves:      out.NewMoves,
		ReleasedCodes: out.Released,
	}

	if out.Deleted {
		changes.DeletedRooms = append(changes.DeletedRooms, agg.Room.ID)
	} else {
		changes.Rooms = append(changes.Rooms, agg.Room)
		changes.Match = agg.Match
	}

	if out.Spawned != nil {
		changes.Rooms = append(changes.Rooms, out.Spawned.Room)
	}

	if err := that.store.Save(ctx, changes); err != nil {
		return fmt.Errorf("failed to save room: %w: %w", apperror.ErrStorageUnavailable, err)
	}

	return nil
}

func (that *RoomManager) recordHistory(ctx context.Context, history *entity.GameHistory) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = historyRetryInterval

	return backoff.Retry(func() error {
		return that.history.Record(ctx, history)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, historyAttempts-1), ctx))
}

// publish delivers events in order. Delivery failures never undo a committed operation.
func (that *RoomManager) publish(ctx context.Context, log *slog.Logger, events []entity.Event) {
	for _, event := range events {
		if err := that.publisher.Publish(ctx, event); err != nil {
			log.Warn("failed to publish event", "event", event.Type, "error", err)
		}
	}
}

func (that *RoomManager) releaseCodes(ctx context.Context, log *slog.Logger, codes []string) {
	for _, code := range codes {
		if err := that.store.ReleaseJoinCode(context.WithoutCancel(ctx), code); err != nil {
			log.Warn("failed to release join code", "code", code, "error", err)
		}
	}
}

func (that *RoomManager) load(ctx context.Context, roomID int64) (*lifecycle.Aggregate, error) {
	room, err := that.store.LoadRoom(ctx, roomID)
	if errors.Is(err, repository.ErrRoomNotFound) {
		return nil, apperror.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w: %w", apperror.ErrStorageUnavailable, err)
	}

	agg := &lifecycle.Aggregate{Room: room}

	if room.CurrentMatchID != nil {
		agg.Match, err = that.store.LoadMatch(ctx, *room.CurrentMatchID)
		if errors.Is(err, apperror.ErrInvariantViolation) {
			return nil, fmt.Errorf("failed to load match of room %d: %w", roomID, err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load match: %w: %w", apperror.ErrStorageUnavailable, err)
		}
	}

	if err = agg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to load room %d: %w", roomID, err)
	}

	return agg, nil
}

func (that *RoomManager) observe(name string, started time.Time, err *error) {
	that.observer.ObserveOperation(name, resultOf(*err), time.Since(started))
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case apperror.IsPrecondition(err):
		return metrics.ResultRejected
	case errors.Is(err, apperror.ErrStorageUnavailable):
		return metrics.ResultUnavailable
	default:
		return metrics.ResultError
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
