package lifecycle

import "github.com/rocketscienceinc/gomoku-backend/internal/entity"

func isFull(room *entity.Room) bool {
	return len(room.Players) >= entity.MaxPlayers
}

func bothReady(room *entity.Room) bool {
	if len(room.Players) != entity.MaxPlayers {
		return false
	}

	for _, player := range room.Players {
		if player.Ready != entity.Ready {
			return false
		}
	}

	return true
}

// CanStart reports whether the room may leave READY_TO_START for a new match.
func CanStart(room *entity.Room) bool {
	return room.GameState == entity.StateReadyToStart && bothReady(room)
}

// CanJoin reports whether userID would be admitted to the room, not counting the join code.
func CanJoin(room *entity.Room, userID int64) bool {
	if room.IsMember(userID) {
		return true
	}
	return room.Status == entity.StatusWaiting && !room.Abandoned && !isFull(room)
}

func opponentPresent(room *entity.Room, userID int64) bool {
	other := room.Other(userID)
	return other != nil && !other.Departed
}

// waitingState is the pre-game state implied by the roster size.
func waitingState(room *entity.Room) entity.GameState {
	if isFull(room) {
		return entity.StateWaitingForReady
	}
	return entity.StateWaitingForPlayers
}
