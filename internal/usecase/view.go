package usecase

import (
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/lifecycle"
)

// RoomView is the client-facing snapshot of a room and its current match.
type RoomView struct {
	Room  *entity.Room `json:"room"`
	Match *MatchView   `json:"match,omitempty"`
}

type MatchView struct {
	ID        int64              `json:"id"`
	First     entity.Seat        `json:"first"`
	Second    entity.Seat        `json:"second"`
	Result    entity.MatchResult `json:"result"`
	Board     []string           `json:"board"`
	MoveCount int                `json:"move_count"`
	NextTurn  entity.Mark        `json:"next_turn,omitempty"`
	LastMove  *entity.Move       `json:"last_move,omitempty"`
}

// NewRoomView builds the snapshot seen by viewerID. The join code is shown to members only.
func NewRoomView(agg *lifecycle.Aggregate, viewerID int64) *RoomView {
	if agg == nil {
		return nil
	}

	room := agg.Room
	if room.JoinCode != "" && !room.IsMember(viewerID) {
		hidden := *room
		hidden.JoinCode = ""
		room = &hidden
	}

	view := &RoomView{Room: room}

	if match := agg.Match; match != nil {
		board := match.Board()
		view.Match = &MatchView{
			ID:        match.ID,
			First:     match.First,
			Second:    match.Second,
			Result:    match.Result,
			Board:     board.Rows(),
			MoveCount: board.Filled(),
		}

		if match.IsOngoing() {
			view.Match.NextTurn = match.NextMark()
		}

		if n := len(match.Moves); n > 0 {
			last := match.Moves[n-1]
			view.Match.LastMove = &last
		}
	}

	return view
}
