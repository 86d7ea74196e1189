package entity

import "time"

type EventType string

const (
	EventPlayerJoined       EventType = "player-joined"
	EventPlayerLeft         EventType = "player-left"
	EventReadyChanged       EventType = "ready-changed"
	EventGameStarted        EventType = "game-started"
	EventMoveMade           EventType = "move-made"
	EventGameEnded          EventType = "game-ended"
	EventRematchRequested   EventType = "rematch-requested"
	EventRematchAccepted    EventType = "rematch-accepted"
	EventRematchDeclined    EventType = "rematch-declined"
	EventRematchRoomCreated EventType = "rematch-room-created"
)

// Event is a room notification. Recipients are the members at the time the event was produced.
type Event struct {
	Type       EventType `json:"type"`
	RoomID     int64     `json:"room_id"`
	Recipients []int64   `json:"-"`
	OccurredAt time.Time `json:"occurred_at"`

	UserID    *int64        `json:"user_id,omitempty"`
	Ready     *bool         `json:"ready,omitempty"`
	GameState GameState     `json:"game_state,omitempty"`
	MatchID   *int64        `json:"match_id,omitempty"`
	Move      *Move         `json:"move,omitempty"`
	NextTurn  Mark          `json:"next_turn,omitempty"`
	Seats     []Seat        `json:"seats,omitempty"`
	Reason    GameEndReason `json:"reason,omitempty"`
	WinnerID  *int64        `json:"winner_id,omitempty"`
	LoserID   *int64        `json:"loser_id,omitempty"`
	Line      []Position    `json:"line,omitempty"`
	NewRoomID *int64        `json:"new_room_id,omitempty"`
	NewHostID *int64        `json:"new_host_id,omitempty"`
}

func NewEvent(eventType EventType, room *Room, now time.Time) Event {
	return Event{
		Type:       eventType,
		RoomID:     room.ID,
		Recipients: room.Members(),
		OccurredAt: now,
	}
}

func (that Event) WithUser(userID int64) Event {
	that.UserID = &userID
	return that
}

// WithRecipient adds userID to the recipients if it is not already there.
func (that Event) WithRecipient(userID int64) Event {
	for _, id := range that.Recipients {
		if id == userID {
			return that
		}
	}
	that.Recipients = append(append([]int64(nil), that.Recipients...), userID)
	return that
}
