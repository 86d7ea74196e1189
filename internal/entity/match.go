package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
)

type MatchResult string

const (
	ResultOngoing         MatchResult = "ongoing"
	ResultFirstPlayerWin  MatchResult = "first_player_win"
	ResultSecondPlayerWin MatchResult = "second_player_win"
	ResultDraw            MatchResult = "draw"
)

type Move struct {
	Position
	Mark     Mark      `json:"mark"`
	Seq      int       `json:"seq"`
	UserID   int64     `json:"user_id"`
	PlayedAt time.Time `json:"played_at"`
}

type Seat struct {
	UserID int64 `json:"user_id"`
	Mark   Mark  `json:"mark"`
}

// Match is one playthrough inside a room. Moves are kept in sequence order and the board is derived from them.
type Match struct {
	ID        int64       `json:"id"`
	RoomID    int64       `json:"room_id"`
	First     Seat        `json:"first"`
	Second    Seat        `json:"second"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   *time.Time  `json:"ended_at,omitempty"`
	Result    MatchResult `json:"result"`

	// Moves are persisted as a separate append-only log.
	Moves []Move `json:"-"`

	board *Board
}

// NewMatch seats first with the first-turn mark.
func NewMatch(id, roomID, first, second int64, now time.Time) *Match {
	return &Match{
		ID:        id,
		RoomID:    roomID,
		First:     Seat{UserID: first, Mark: MarkX},
		Second:    Seat{UserID: second, Mark: MarkO},
		StartedAt: now,
		Result:    ResultOngoing,
		board:     NewBoard(),
	}
}

func (that *Match) IsOngoing() bool {
	return that.Result == ResultOngoing
}

func (that *Match) Board() *Board {
	if that.board == nil {
		that.board = NewBoard()
	}
	return that.board
}

func (that *Match) Seated(userID int64) bool {
	return that.First.UserID == userID || that.Second.UserID == userID
}

func (that *Match) MarkOf(userID int64) (Mark, bool) {
	switch userID {
	case that.First.UserID:
		return that.First.Mark, true
	case that.Second.UserID:
		return that.Second.Mark, true
	default:
		return EmptyCell, false
	}
}

// Opponent returns the other seated user.
func (that *Match) Opponent(userID int64) int64 {
	if that.First.UserID == userID {
		return that.Second.UserID
	}
	return that.First.UserID
}

// NextMark is derived from the move count: even counts belong to the first seat.
func (that *Match) NextMark() Mark {
	if len(that.Moves)%2 == 0 {
		return that.First.Mark
	}
	return that.Second.Mark
}

// Play validates and applies a move by userID at pos.
func (that *Match) Play(userID int64, pos Position, now time.Time) (Move, Terminal, error) {
	if !that.IsOngoing() {
		return Move{}, Terminal{}, apperror.ErrGameNotInProgress
	}

	mark, ok := that.MarkOf(userID)
	if !ok {
		return Move{}, Terminal{}, apperror.ErrNotInRoom
	}

	if mark != that.NextMark() {
		return Move{}, Terminal{}, apperror.ErrNotYourTurn
	}

	if !pos.InBounds() {
		return Move{}, Terminal{}, fmt.Errorf("%w: %s", apperror.ErrOutOfBounds, pos)
	}

	if err := that.Board().Place(pos, mark); err != nil {
		if errors.Is(err, ErrBoardSealed) {
			return Move{}, Terminal{}, fmt.Errorf("%w: %w", apperror.ErrInvariantViolation, err)
		}
		return Move{}, Terminal{}, err
	}

	move := Move{
		Position: pos,
		Mark:     mark,
		Seq:      len(that.Moves) + 1,
		UserID:   userID,
		PlayedAt: now,
	}
	that.Moves = append(that.Moves, move)

	terminal := that.board.CheckTerminal()
	switch terminal.Kind {
	case TerminalWin:
		if terminal.Mark == that.First.Mark {
			that.Conclude(ResultFirstPlayerWin, now)
		} else {
			that.Conclude(ResultSecondPlayerWin, now)
		}
	case TerminalDraw:
		that.Conclude(ResultDraw, now)
	case TerminalNone:
	}

	return move, terminal, nil
}

func (that *Match) Conclude(result MatchResult, now time.Time) {
	that.Result = result
	that.EndedAt = &now
}

// WinnerID returns the winning user, or nil while ongoing or on a draw.
func (that *Match) WinnerID() *int64 {
	switch that.Result {
	case ResultFirstPlayerWin:
		id := that.First.UserID
		return &id
	case ResultSecondPlayerWin:
		id := that.Second.UserID
		return &id
	default:
		return nil
	}
}

func (that *Match) LoserID() *int64 {
	winner := that.WinnerID()
	if winner == nil {
		return nil
	}
	loser := that.Opponent(*winner)
	return &loser
}

// ResultFor returns the result in which userID wins.
func (that *Match) ResultFor(winnerID int64) MatchResult {
	if that.First.UserID == winnerID {
		return ResultFirstPlayerWin
	}
	return ResultSecondPlayerWin
}

// Replay rebuilds the board from a stored move log, checking it is gap-free and strictly alternating.
func (that *Match) Replay(moves []Move) error {
	that.board = NewBoard()
	that.Moves = make([]Move, 0, len(moves))

	for i, move := range moves {
		if move.Seq != i+1 {
			return fmt.Errorf("%w: match %d move %d has sequence %d", apperror.ErrInvariantViolation, that.ID, i+1, move.Seq)
		}

		if move.Mark != that.NextMark() {
			return fmt.Errorf("%w: match %d move %d out of turn", apperror.ErrInvariantViolation, that.ID, move.Seq)
		}

		if err := that.board.Place(move.Position, move.Mark); err != nil {
			return fmt.Errorf("%w: match %d move %d: %w", apperror.ErrInvariantViolation, that.ID, move.Seq, err)
		}

		that.Moves = append(that.Moves, move)
	}

	return nil
}

func (that *Match) Clone() *Match {
	if that == nil {
		return nil
	}

	clone := *that
	clone.Moves = append([]Move(nil), that.Moves...)
	if that.EndedAt != nil {
		endedAt := *that.EndedAt
		clone.EndedAt = &endedAt
	}
	if that.board != nil {
		board := *that.board
		clone.board = &board
	}

	return &clone
}

// Validate checks the move log against the board.
func (that *Match) Validate() error {
	if that.First.UserID == that.Second.UserID {
		return fmt.Errorf("%w: match %d seats one user twice", apperror.ErrInvariantViolation, that.ID)
	}

	seen := make(map[Position]struct{}, len(that.Moves))
	for i, move := range that.Moves {
		if move.Seq != i+1 {
			return fmt.Errorf("%w: match %d has sequence %d at index %d", apperror.ErrInvariantViolation, that.ID, move.Seq, i)
		}
		if _, ok := seen[move.Position]; ok {
			return fmt.Errorf("%w: match %d repeats position %s", apperror.ErrInvariantViolation, that.ID, move.Position)
		}
		seen[move.Position] = struct{}{}
	}

	if that.Board().Filled() != len(that.Moves) {
		return fmt.Errorf("%w: match %d board out of sync with move log", apperror.ErrInvariantViolation, that.ID)
	}

	if that.IsOngoing() && that.Board().CheckTerminal().IsOver() {
		return fmt.Errorf("%w: match %d is ongoing on a terminal board", apperror.ErrInvariantViolation, that.ID)
	}

	return nil
}
