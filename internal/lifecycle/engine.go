package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// Allocator hands out identifiers that must be unique across processes.
type Allocator interface {
	NextRoomID(ctx context.Context) (int64, error)
	NextMatchID(ctx context.Context) (int64, error)
	ReserveJoinCode(ctx context.Context, roomID int64) (string, error)
}

// Outcome describes what an operation changed. A zero Outcome means the operation was a no-op.
type Outcome struct {
	Changed  bool
	Events   []entity.Event
	NewMoves []entity.Move
	History  *entity.GameHistory

	// Spawned is a room created as a side effect, such as a rematch room.
	Spawned       *Aggregate
	RematchRoomID *int64

	// Deleted is set when the room was torn down because nobody is left in it.
	Deleted  bool
	Reserved []string
	Released []string
}

func (that *Outcome) emit(event entity.Event) {
	that.Changed = true
	that.Events = append(that.Events, event)
}

// Engine applies lifecycle operations to an aggregate in place. Callers hand it a copy and discard the copy on error.
type Engine struct {
	alloc Allocator
	now   func() time.Time
}

func NewEngine(alloc Allocator, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}

	return &Engine{
		alloc: alloc,
		now:   now,
	}
}

// Create opens a room with hostID as its only player.
func (that *Engine) Create(ctx context.Context, roomID int64, name string, isPrivate bool, hostID int64) (*Aggregate, *Outcome, error) {
	now := that.now()
	out := &Outcome{}

	var code string
	if isPrivate {
		var err error
		code, err = that.alloc.ReserveJoinCode(ctx, roomID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to reserve join code: %w", err)
		}
		out.Reserved = append(out.Reserved, code)
	}

	room := entity.NewRoom(roomID, name, isPrivate, code, hostID, now)
	room.AddPlayer(hostID, true, now)

	event := entity.NewEvent(entity.EventPlayerJoined, room, now).WithUser(hostID)
	event.GameState = room.GameState
	out.emit(event)

	return &Aggregate{Room: room}, out, nil
}

// Join seats userID in the room. code is checked when the room is private.
func (that *Engine) Join(agg *Aggregate, userID int64, code string) (*Outcome, error) {
	room := agg.Room

	if room.IsMember(userID) {
		return &Outcome{}, nil
	}

	if room.IsPrivate && code != room.JoinCode {
		return nil, apperror.ErrInvalidJoinCode
	}

	if room.Status != entity.StatusWaiting || room.Abandoned {
		return nil, apperror.ErrRoomNotJoinable
	}

	if isFull(room) {
		return nil, apperror.ErrRoomFull
	}

	now := that.now()
	room.AddPlayer(userID, false, now)
	room.GameState = waitingState(room)

	out := &Outcome{}
	event := entity.NewEvent(entity.EventPlayerJoined, room, now).WithUser(userID)
	event.GameState = room.GameState
	out.emit(event)

	return out, nil
}

// Leave removes userID from the room. Leaving a running game forfeits it.
func (that *Engine) Leave(agg *Aggregate, userID int64) (*Outcome, error) {
	room := agg.Room

	if !room.IsMember(userID) {
		return &Outcome{}, nil
	}

	now := that.now()
	out := &Outcome{}
	left := entity.NewEvent(entity.EventPlayerLeft, room, now).WithUser(userID)

	switch {
	case room.GameState == entity.StateInProgress:
		out.emit(left)

		winnerID := agg.Match.Opponent(userID)
		that.finish(agg, out, entity.EndLeave, &winnerID, nil, now)

		room.Player(userID).Departed = true
		out.Events[0].NewHostID = handOverHost(room, userID)

	case room.GameState.IsTerminal():
		room.Player(userID).Departed = true
		left.NewHostID = handOverHost(room, userID)
		out.emit(left)

		if room.ResetRematch() {
			declined := entity.NewEvent(entity.EventRematchDeclined, room, now).WithUser(userID)
			out.emit(declined)
		}

		if len(room.Members()) == 0 {
			room.Abandoned = true
		}

	default:
		wasHost := room.Player(userID).IsHost
		room.RemovePlayer(userID)

		if len(room.Players) == 0 {
			out.Deleted = true
			if room.JoinCode != "" {
				out.Released = append(out.Released, room.JoinCode)
			}
			out.emit(left)

			return out, nil
		}

		remaining := &room.Players[0]
		if wasHost {
			remaining.IsHost = true
			hostID := remaining.UserID
			left.NewHostID = &hostID
		}
		remaining.Ready = entity.NotReady
		room.GameState = entity.StateWaitingForPlayers

		left.GameState = room.GameState
		out.emit(left)
	}

	return out, nil
}

// SetReady toggles the ready flag of userID and starts the match once both players are ready.
func (that *Engine) SetReady(ctx context.Context, agg *Aggregate, userID int64, ready bool) (*Outcome, error) {
	room := agg.Room

	if room.GameState.IsTerminal() {
		return nil, apperror.ErrRoomClosed
	}

	if room.GameState == entity.StateInProgress {
		return nil, apperror.ErrGameAlreadyStarted
	}

	if !room.IsMember(userID) {
		return nil, apperror.ErrNotInRoom
	}

	want := entity.NotReady
	if ready {
		want = entity.Ready
	}

	player := room.Player(userID)
	if player.Ready == want {
		return &Outcome{}, nil
	}
	player.Ready = want

	if isFull(room) {
		if bothReady(room) {
			room.GameState = entity.StateReadyToStart
		} else {
			room.GameState = entity.StateWaitingForReady
		}
	}

	now := that.now()
	out := &Outcome{}

	event := entity.NewEvent(entity.EventReadyChanged, room, now).WithUser(userID)
	event.Ready = &ready
	event.GameState = room.GameState
	out.emit(event)

	if CanStart(room) {
		if err := that.start(ctx, agg, out, now); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// Move places a stone for userID. A win or a full board concludes the match in the same step.
func (that *Engine) Move(agg *Aggregate, userID int64, pos entity.Position) (*Outcome, error) {
	room := agg.Room

	if room.GameState != entity.StateInProgress || agg.Match == nil {
		return nil, apperror.ErrGameNotInProgress
	}

	if !room.IsMember(userID) {
		return nil, apperror.ErrNotInRoom
	}

	now := that.now()

	move, terminal, err := agg.Match.Play(userID, pos, now)
	if err != nil {
		return nil, err
	}

	out := &Outcome{NewMoves: []entity.Move{move}}

	event := entity.NewEvent(entity.EventMoveMade, room, now).WithUser(userID)
	event.Move = &move
	if !terminal.IsOver() {
		event.NextTurn = agg.Match.NextMark()
	}
	out.emit(event)

	switch terminal.Kind {
	case entity.TerminalWin:
		winnerID := move.UserID
		that.finish(agg, out, entity.EndFiveInRow, &winnerID, terminal.Line, now)
	case entity.TerminalDraw:
		that.finish(agg, out, entity.EndDraw, nil, nil, now)
	case entity.TerminalNone:
	}

	return out, nil
}

// Surrender concedes the running match to the opponent.
func (that *Engine) Surrender(agg *Aggregate, userID int64) (*Outcome, error) {
	room := agg.Room

	if room.GameState != entity.StateInProgress || agg.Match == nil {
		return nil, apperror.ErrGameNotInProgress
	}

	if !room.IsMember(userID) || !agg.Match.Seated(userID) {
		return nil, apperror.ErrNotInRoom
	}

	out := &Outcome{}
	winnerID := agg.Match.Opponent(userID)
	that.finish(agg, out, entity.EndSurrender, &winnerID, nil, that.now())

	return out, nil
}

func (that *Engine) start(ctx context.Context, agg *Aggregate, out *Outcome, now time.Time) error {
	room := agg.Room

	matchID, err := that.alloc.NextMatchID(ctx)
	if err != nil {
		return fmt.Errorf("failed to allocate match id: %w", err)
	}

	host := room.Host()
	guest := room.Other(host.UserID)

	match := entity.NewMatch(matchID, room.ID, host.UserID, guest.UserID, now)
	agg.Match = match

	room.CurrentMatchID = &matchID
	room.GameState = entity.StateInProgress
	room.Status = entity.StatusPlaying
	room.GameStartedAt = &now
	room.GameEndedAt = nil
	for i := range room.Players {
		room.Players[i].Ready = entity.InGame
	}

	event := entity.NewEvent(entity.EventGameStarted, room, now)
	event.GameState = room.GameState
	event.MatchID = &matchID
	event.Seats = []entity.Seat{match.First, match.Second}
	event.NextTurn = match.NextMark()
	out.emit(event)

	return nil
}

// finish concludes the running match. winnerID is nil for a draw.
func (that *Engine) finish(agg *Aggregate, out *Outcome, reason entity.GameEndReason, winnerID *int64, line []entity.Position, now time.Time) {
	room := agg.Room
	match := agg.Match

	if match.IsOngoing() {
		if winnerID != nil {
			match.Conclude(match.ResultFor(*winnerID), now)
		} else {
			match.Conclude(entity.ResultDraw, now)
		}
	}

	room.GameState = reason.TerminalState()
	room.Status = entity.StatusFinished
	room.GameEndedAt = &now
	room.EndReason = reason
	room.WinnerID = match.WinnerID()
	room.LoserID = match.LoserID()

	for i := range room.Players {
		player := &room.Players[i]
		player.Ready = entity.NotReady
		switch {
		case room.WinnerID != nil && player.UserID == *room.WinnerID:
			player.LastGameResult = entity.GameResultWin
		case room.LoserID != nil && player.UserID == *room.LoserID:
			player.LastGameResult = entity.GameResultLose
		default:
			player.LastGameResult = entity.GameResultNone
		}
	}

	out.History = entity.NewGameHistory(match, reason)

	// The code only has to be unique among active rooms.
	if room.JoinCode != "" {
		out.Released = append(out.Released, room.JoinCode)
	}

	event := entity.NewEvent(entity.EventGameEnded, room, now)
	event.GameState = room.GameState
	matchID := match.ID
	event.MatchID = &matchID
	event.Reason = reason
	event.WinnerID = room.WinnerID
	event.LoserID = room.LoserID
	event.Line = line
	out.emit(event)
}

// handOverHost passes the host flag from leaverID to the remaining member and returns the new host.
func handOverHost(room *entity.Room, leaverID int64) *int64 {
	leaver := room.Player(leaverID)
	if leaver == nil || !leaver.IsHost {
		return nil
	}

	other := room.Other(leaverID)
	if other == nil || other.Departed {
		return nil
	}

	leaver.IsHost = false
	other.IsHost = true
	hostID := other.UserID

	return &hostID
}
