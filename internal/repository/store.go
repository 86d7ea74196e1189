package repository

import (
	"context"
	"errors"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrMatchNotFound    = errors.New("match not found")
	ErrJoinCodeNotFound = errors.New("join code not found")
)

// Changeset is everything one operation writes. Stores apply it atomically.
type Changeset struct {
	Rooms    []*entity.Room
	Match    *entity.Match
	NewMoves []entity.Move

	DeletedRooms  []int64
	ReleasedCodes []string
}

func (that Changeset) IsEmpty() bool {
	return len(that.Rooms) == 0 && that.Match == nil && len(that.NewMoves) == 0 &&
		len(that.DeletedRooms) == 0 && len(that.ReleasedCodes) == 0
}

// RoomStore persists rooms, matches and their move logs.
type RoomStore interface {
	LoadRoom(ctx context.Context, id int64) (*entity.Room, error)
	// LoadMatch returns the match with its move log replayed onto the board.
	LoadMatch(ctx context.Context, id int64) (*entity.Match, error)
	Save(ctx context.Context, changes Changeset) error

	FindRoomByCode(ctx context.Context, code string) (int64, error)
	ListPublicRooms(ctx context.Context) ([]*entity.Room, error)

	NextRoomID(ctx context.Context) (int64, error)
	NextMatchID(ctx context.Context) (int64, error)
	// ReserveJoinCode claims code for roomID. It returns false when the code is taken.
	ReserveJoinCode(ctx context.Context, code string, roomID int64) (bool, error)
	ReleaseJoinCode(ctx context.Context, code string) error
}

// HistoryStore records concluded matches. Record is idempotent per match id.
type HistoryStore interface {
	Record(ctx context.Context, history *entity.GameHistory) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]entity.GameHistory, error)
}
