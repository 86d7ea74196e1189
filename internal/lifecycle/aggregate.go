package lifecycle

import (
	"fmt"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// Aggregate is a room together with its current match, if any.
type Aggregate struct {
	Room  *entity.Room  `json:"room"`
	Match *entity.Match `json:"match,omitempty"`
}

func (that *Aggregate) Clone() *Aggregate {
	if that == nil {
		return nil
	}

	return &Aggregate{
		Room:  that.Room.Clone(),
		Match: that.Match.Clone(),
	}
}

// Validate checks room and match invariants and their agreement.
func (that *Aggregate) Validate() error {
	if that.Room == nil {
		return fmt.Errorf("%w: aggregate without room", apperror.ErrInvariantViolation)
	}

	if err := that.Room.Validate(); err != nil {
		return err
	}

	if that.Match == nil {
		if that.Room.CurrentMatchID != nil {
			return fmt.Errorf("%w: room %d references missing match %d", apperror.ErrInvariantViolation, that.Room.ID, *that.Room.CurrentMatchID)
		}
		return nil
	}

	if err := that.Match.Validate(); err != nil {
		return err
	}

	if that.Room.CurrentMatchID == nil || *that.Room.CurrentMatchID != that.Match.ID || that.Match.RoomID != that.Room.ID {
		return fmt.Errorf("%w: room %d and match %d disagree", apperror.ErrInvariantViolation, that.Room.ID, that.Match.ID)
	}

	if that.Match.IsOngoing() != (that.Room.GameState == entity.StateInProgress) {
		return fmt.Errorf("%w: room %d is %s with match %s", apperror.ErrInvariantViolation, that.Room.ID, that.Room.GameState, that.Match.Result)
	}

	for _, seat := range []entity.Seat{that.Match.First, that.Match.Second} {
		if that.Room.Player(seat.UserID) == nil {
			return fmt.Errorf("%w: room %d does not list seated user %d", apperror.ErrInvariantViolation, that.Room.ID, seat.UserID)
		}
	}

	return nil
}
