package lifecycle

import (
	"context"
	"fmt"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// RequestRematch opens a rematch negotiation. A request from the other player while one is pending accepts it.
func (that *Engine) RequestRematch(ctx context.Context, agg *Aggregate, userID int64) (*Outcome, error) {
	room := agg.Room

	if err := rematchPreconditions(room, userID); err != nil {
		return nil, err
	}

	switch room.Rematch {
	case entity.RematchCreated, entity.RematchBothAccepted:
		return &Outcome{RematchRoomID: room.RematchRoomID}, nil
	case entity.RematchRequested:
		if isRequester(room, userID) {
			return &Outcome{}, nil
		}
		return that.accept(ctx, agg, userID)
	case entity.RematchNone:
	}

	if room.Abandoned || !opponentPresent(room, userID) {
		return nil, apperror.ErrOpponentLeft
	}

	requesterID := userID
	room.Rematch = entity.RematchRequested
	room.RematchRequesterID = &requesterID
	room.Player(userID).AcceptedRematch = true

	out := &Outcome{}
	out.emit(entity.NewEvent(entity.EventRematchRequested, room, that.now()).WithUser(userID))

	return out, nil
}

// AcceptRematch accepts a pending request and creates the rematch room.
func (that *Engine) AcceptRematch(ctx context.Context, agg *Aggregate, userID int64) (*Outcome, error) {
	room := agg.Room

	if err := rematchPreconditions(room, userID); err != nil {
		return nil, err
	}

	switch room.Rematch {
	case entity.RematchNone:
		return nil, apperror.ErrNoRequestPending
	case entity.RematchCreated, entity.RematchBothAccepted:
		return &Outcome{RematchRoomID: room.RematchRoomID}, nil
	case entity.RematchRequested:
	}

	if isRequester(room, userID) {
		return &Outcome{}, nil
	}

	return that.accept(ctx, agg, userID)
}

// DeclineRematch drops a pending request.
func (that *Engine) DeclineRematch(agg *Aggregate, userID int64) (*Outcome, error) {
	room := agg.Room

	if err := rematchPreconditions(room, userID); err != nil {
		return nil, err
	}

	if room.Rematch != entity.RematchRequested && room.Rematch != entity.RematchBothAccepted {
		return nil, apperror.ErrNoRequestPending
	}

	room.ResetRematch()

	out := &Outcome{}
	out.emit(entity.NewEvent(entity.EventRematchDeclined, room, that.now()).WithUser(userID))

	return out, nil
}

// accept moves the negotiation through BOTH_ACCEPTED to CREATED and spawns the new room.
func (that *Engine) accept(ctx context.Context, agg *Aggregate, userID int64) (*Outcome, error) {
	room := agg.Room

	if !opponentPresent(room, userID) {
		return nil, apperror.ErrOpponentLeft
	}

	now := that.now()
	out := &Outcome{}

	room.Player(userID).AcceptedRematch = true
	room.Rematch = entity.RematchBothAccepted
	out.emit(entity.NewEvent(entity.EventRematchAccepted, room, now).WithUser(userID))

	newRoomID, err := that.alloc.NextRoomID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate rematch room id: %w", err)
	}

	var code string
	if room.IsPrivate {
		code, err = that.alloc.ReserveJoinCode(ctx, newRoomID)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve rematch join code: %w", err)
		}
		out.Reserved = append(out.Reserved, code)
	}

	host := room.Host()
	guest := room.Other(host.UserID)

	rematch := entity.NewRoom(newRoomID, room.Name, room.IsPrivate, code, host.UserID, now)
	rematch.AddPlayer(host.UserID, true, now)
	rematch.AddPlayer(guest.UserID, false, now)
	rematch.GameState = entity.StateWaitingForReady

	room.Rematch = entity.RematchCreated
	room.RematchRoomID = &newRoomID

	out.Spawned = &Aggregate{Room: rematch}
	resultID := newRoomID
	out.RematchRoomID = &resultID

	created := entity.NewEvent(entity.EventRematchRoomCreated, room, now)
	created.NewRoomID = &resultID
	created.GameState = rematch.GameState
	out.emit(created)

	return out, nil
}

func rematchPreconditions(room *entity.Room, userID int64) error {
	if !room.GameState.IsTerminal() {
		return apperror.ErrNotTerminal
	}

	if !room.IsMember(userID) {
		return apperror.ErrNotInRoom
	}

	return nil
}

func isRequester(room *entity.Room, userID int64) bool {
	return room.RematchRequesterID != nil && *room.RematchRequesterID == userID
}
