package entity

import "time"

// GameHistory is the durable record of one concluded match. WinnerID and LoserID are both nil for a draw.
type GameHistory struct {
	ID             uint          `json:"-" gorm:"primaryKey"`
	MatchID        int64         `json:"match_id" gorm:"uniqueIndex;not null"`
	RoomID         int64         `json:"room_id" gorm:"index;not null"`
	FirstPlayerID  int64         `json:"first_player_id" gorm:"index;not null"`
	SecondPlayerID int64         `json:"second_player_id" gorm:"index;not null"`
	WinnerID       *int64        `json:"winner_id"`
	LoserID        *int64        `json:"loser_id"`
	Reason         GameEndReason `json:"reason" gorm:"not null"`
	Moves          int           `json:"moves" gorm:"default:0"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        time.Time     `json:"ended_at" gorm:"index"`
}

func NewGameHistory(match *Match, reason GameEndReason) *GameHistory {
	history := &GameHistory{
		MatchID:        match.ID,
		RoomID:         match.RoomID,
		FirstPlayerID:  match.First.UserID,
		SecondPlayerID: match.Second.UserID,
		WinnerID:       match.WinnerID(),
		LoserID:        match.LoserID(),
		Reason:         reason,
		Moves:          len(match.Moves),
		StartedAt:      match.StartedAt,
	}

	if match.EndedAt != nil {
		history.EndedAt = *match.EndedAt
	}

	return history
}

func (that *GameHistory) Involves(userID int64) bool {
	return that.FirstPlayerID == userID || that.SecondPlayerID == userID
}
