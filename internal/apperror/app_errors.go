package apperror

import "errors"

// Precondition violations. The room is left unchanged when one of these is returned.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrRoomNotJoinable    = errors.New("room is not joinable")
	ErrRoomClosed         = errors.New("room is closed")
	ErrNotInRoom          = errors.New("player is not in the room")
	ErrNotYourTurn        = errors.New("it's not your turn")
	ErrOutOfBounds        = errors.New("position is out of bounds")
	ErrCellOccupied       = errors.New("cell is already occupied")
	ErrGameNotInProgress  = errors.New("game is not in progress")
	ErrGameAlreadyStarted = errors.New("game is already started")
	ErrNotTerminal        = errors.New("game has not ended")
	ErrNoRequestPending   = errors.New("no rematch request pending")
	ErrOpponentLeft       = errors.New("opponent has left the room")
	ErrInvalidJoinCode    = errors.New("invalid join code")
)

// ErrInvariantViolation marks a defect inside the engine. The mutation that produced it is discarded.
var ErrInvariantViolation = errors.New("invariant violation")

// ErrStorageUnavailable marks a failed collaborator call that the caller may retry.
var ErrStorageUnavailable = errors.New("storage unavailable")

var preconditions = []error{
	ErrRoomNotFound,
	ErrRoomFull,
	ErrRoomNotJoinable,
	ErrRoomClosed,
	ErrNotInRoom,
	ErrNotYourTurn,
	ErrOutOfBounds,
	ErrCellOccupied,
	ErrGameNotInProgress,
	ErrGameAlreadyStarted,
	ErrNotTerminal,
	ErrNoRequestPending,
	ErrOpponentLeft,
	ErrInvalidJoinCode,
}

// IsPrecondition reports whether err is a recoverable rejection of the caller's request.
func IsPrecondition(err error) bool {
	for _, target := range preconditions {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// Code returns a stable machine-readable code for err, used by the transports.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrRoomNotJoinable):
		return "room_not_joinable"
	case errors.Is(err, ErrRoomClosed):
		return "room_closed"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, ErrCellOccupied):
		return "occupied"
	case errors.Is(err, ErrGameNotInProgress):
		return "game_not_in_progress"
	case errors.Is(err, ErrGameAlreadyStarted):
		return "game_already_started"
	case errors.Is(err, ErrNotTerminal):
		return "not_terminal"
	case errors.Is(err, ErrNoRequestPending):
		return "no_request_pending"
	case errors.Is(err, ErrOpponentLeft):
		return "opponent_left"
	case errors.Is(err, ErrInvalidJoinCode):
		return "invalid_join_code"
	case errors.Is(err, ErrStorageUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}
