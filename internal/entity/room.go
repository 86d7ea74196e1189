package entity

import (
	"fmt"
	"slices"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
)

const (
	MaxPlayers     = 2
	JoinCodeLength = 4
)

type GameState string

const (
	StateWaitingForPlayers GameState = "waiting_for_players"
	StateWaitingForReady   GameState = "waiting_for_ready"
	StateReadyToStart      GameState = "ready_to_start"
	StateInProgress        GameState = "in_progress"
	StateFinished          GameState = "finished"
	StateEndedBySurrender  GameState = "ended_by_surrender"
	StateEndedByLeave      GameState = "ended_by_leave"
)

func (that GameState) IsTerminal() bool {
	switch that {
	case StateFinished, StateEndedBySurrender, StateEndedByLeave:
		return true
	default:
		return false
	}
}

func (that GameState) IsPreGame() bool {
	switch that {
	case StateWaitingForPlayers, StateWaitingForReady, StateReadyToStart:
		return true
	default:
		return false
	}
}

type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

type ReadyState string

const (
	NotReady ReadyState = "not_ready"
	Ready    ReadyState = "ready"
	InGame   ReadyState = "in_game"
)

type GameResult string

const (
	GameResultWin  GameResult = "win"
	GameResultLose GameResult = "lose"
	GameResultNone GameResult = "none"
)

type RematchState string

const (
	RematchNone         RematchState = "none"
	RematchRequested    RematchState = "requested"
	RematchBothAccepted RematchState = "both_accepted"
	RematchCreated      RematchState = "created"
)

type GameEndReason string

const (
	EndFiveInRow GameEndReason = "five_in_row"
	EndDraw      GameEndReason = "draw"
	EndSurrender GameEndReason = "surrender"
	EndLeave     GameEndReason = "leave"
)

// TerminalState maps an end reason to the game state it drives the room into.
func (that GameEndReason) TerminalState() GameState {
	switch that {
	case EndSurrender:
		return StateEndedBySurrender
	case EndLeave:
		return StateEndedByLeave
	default:
		return StateFinished
	}
}

type RoomPlayer struct {
	UserID          int64      `json:"user_id"`
	IsHost          bool       `json:"is_host"`
	Ready           ReadyState `json:"ready_state"`
	JoinedAt        time.Time  `json:"joined_at"`
	LastGameResult  GameResult `json:"last_game_result"`
	AcceptedRematch bool       `json:"accepted_rematch"`
	// Departed players of a concluded room stay on the roster for history.
	Departed bool `json:"departed,omitempty"`
}

type Room struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Status        RoomStatus `json:"status"`
	GameState     GameState  `json:"game_state"`
	IsPrivate     bool       `json:"is_private"`
	JoinCode      string     `json:"join_code,omitempty"`
	CreatorID     int64      `json:"creator_id"`
	CreatedAt     time.Time  `json:"created_at"`
	GameStartedAt *time.Time `json:"game_started_at,omitempty"`
	GameEndedAt   *time.Time `json:"game_ended_at,omitempty"`

	EndReason GameEndReason `json:"end_reason,omitempty"`
	WinnerID  *int64        `json:"winner_id,omitempty"`
	LoserID   *int64        `json:"loser_id,omitempty"`

	Rematch            RematchState `json:"rematch_state"`
	RematchRequesterID *int64       `json:"rematch_requester_id,omitempty"`
	RematchRoomID      *int64       `json:"rematch_room_id,omitempty"`

	Players        []RoomPlayer `json:"players"`
	CurrentMatchID *int64       `json:"current_match_id,omitempty"`
	Abandoned      bool         `json:"abandoned,omitempty"`
}

func NewRoom(id int64, name string, isPrivate bool, joinCode string, creatorID int64, now time.Time) *Room {
	return &Room{
		ID:        id,
		Name:      name,
		Status:    StatusWaiting,
		GameState: StateWaitingForPlayers,
		IsPrivate: isPrivate,
		JoinCode:  joinCode,
		CreatorID: creatorID,
		CreatedAt: now,
		Rematch:   RematchNone,
		Players:   []RoomPlayer{},
	}
}

// Player returns the roster row of userID, including departed players.
func (that *Room) Player(userID int64) *RoomPlayer {
	for i := range that.Players {
		if that.Players[i].UserID == userID {
			return &that.Players[i]
		}
	}
	return nil
}

// IsMember reports whether userID is on the roster and has not departed.
func (that *Room) IsMember(userID int64) bool {
	player := that.Player(userID)
	return player != nil && !player.Departed
}

// Members lists users still present in the room, in join order.
func (that *Room) Members() []int64 {
	members := make([]int64, 0, len(that.Players))
	for _, player := range that.Players {
		if !player.Departed {
			members = append(members, player.UserID)
		}
	}
	return members
}

func (that *Room) Host() *RoomPlayer {
	for i := range that.Players {
		if that.Players[i].IsHost {
			return &that.Players[i]
		}
	}
	return nil
}

// Other returns the roster row of the player who is not userID.
func (that *Room) Other(userID int64) *RoomPlayer {
	for i := range that.Players {
		if that.Players[i].UserID != userID {
			return &that.Players[i]
		}
	}
	return nil
}

func (that *Room) AddPlayer(userID int64, isHost bool, now time.Time) {
	that.Players = append(that.Players, RoomPlayer{
		UserID:         userID,
		IsHost:         isHost,
		Ready:          NotReady,
		JoinedAt:       now,
		LastGameResult: GameResultNone,
	})
}

func (that *Room) RemovePlayer(userID int64) {
	that.Players = slices.DeleteFunc(that.Players, func(player RoomPlayer) bool {
		return player.UserID == userID
	})
}

// ResetRematch clears the negotiation unless the rematch room already exists.
func (that *Room) ResetRematch() bool {
	if that.Rematch == RematchNone || that.Rematch == RematchCreated {
		return false
	}

	that.Rematch = RematchNone
	that.RematchRequesterID = nil
	for i := range that.Players {
		that.Players[i].AcceptedRematch = false
	}

	return true
}

// IsListed reports whether the room is offered in the public lobby.
func (that *Room) IsListed() bool {
	return !that.IsPrivate && that.Status == StatusWaiting
}

func (that *Room) Clone() *Room {
	if that == nil {
		return nil
	}

	clone := *that
	clone.Players = append([]RoomPlayer(nil), that.Players...)
	clone.GameStartedAt = cloneTime(that.GameStartedAt)
	clone.GameEndedAt = cloneTime(that.GameEndedAt)
	clone.WinnerID = cloneID(that.WinnerID)
	clone.LoserID = cloneID(that.LoserID)
	clone.RematchRequesterID = cloneID(that.RematchRequesterID)
	clone.RematchRoomID = cloneID(that.RematchRoomID)
	clone.CurrentMatchID = cloneID(that.CurrentMatchID)

	return &clone
}

// Validate checks the structural invariants of the room.
func (that *Room) Validate() error {
	if len(that.Players) > MaxPlayers {
		return fmt.Errorf("%w: room %d has %d players", apperror.ErrInvariantViolation, that.ID, len(that.Players))
	}

	hosts := 0
	seen := make(map[int64]struct{}, len(that.Players))
	for _, player := range that.Players {
		if player.IsHost {
			hosts++
		}
		if _, ok := seen[player.UserID]; ok {
			return fmt.Errorf("%w: room %d lists user %d twice", apperror.ErrInvariantViolation, that.ID, player.UserID)
		}
		seen[player.UserID] = struct{}{}
	}

	if len(that.Players) > 0 && hosts != 1 {
		return fmt.Errorf("%w: room %d has %d hosts", apperror.ErrInvariantViolation, that.ID, hosts)
	}

	if (that.Status == StatusPlaying) != (that.GameState == StateInProgress) {
		return fmt.Errorf("%w: room %d status %s with game state %s", apperror.ErrInvariantViolation, that.ID, that.Status, that.GameState)
	}

	if that.GameState == StateWaitingForReady && len(that.Players) != MaxPlayers {
		return fmt.Errorf("%w: room %d waits for ready with %d players", apperror.ErrInvariantViolation, that.ID, len(that.Players))
	}

	if that.GameState == StateInProgress && that.CurrentMatchID == nil {
		return fmt.Errorf("%w: room %d is in progress without a match", apperror.ErrInvariantViolation, that.ID)
	}

	if that.IsPrivate != (that.JoinCode != "") {
		return fmt.Errorf("%w: room %d join code does not match privacy", apperror.ErrInvariantViolation, that.ID)
	}

	if that.IsPrivate && !IsJoinCode(that.JoinCode) {
		return fmt.Errorf("%w: room %d has malformed join code", apperror.ErrInvariantViolation, that.ID)
	}

	return nil
}

// IsJoinCode reports whether code has the shape of a join code.
func IsJoinCode(code string) bool {
	if len(code) != JoinCodeLength {
		return false
	}

	for _, r := range code {
		isDigit := r >= '0' && r <= '9'
		isUpper := r >= 'A' && r <= 'Z'
		isLower := r >= 'a' && r <= 'z'
		if !isDigit && !isUpper && !isLower {
			return false
		}
	}

	return true
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
