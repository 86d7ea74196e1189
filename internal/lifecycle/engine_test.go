package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

const (
	hostID  int64 = 100
	guestID int64 = 200
	thirdID int64 = 300
)

var errAllocatorDown = errors.New("allocator down")

type seqAllocator struct {
	rooms   int64
	matches int64
	codes   int
	err     error
}

func (that *seqAllocator) NextRoomID(_ context.Context) (int64, error) {
	if that.err != nil {
		return 0, that.err
	}
	that.rooms++
	return that.rooms, nil
}

func (that *seqAllocator) NextMatchID(_ context.Context) (int64, error) {
	if that.err != nil {
		return 0, that.err
	}
	that.matches++
	return that.matches, nil
}

func (that *seqAllocator) ReserveJoinCode(_ context.Context, _ int64) (string, error) {
	if that.err != nil {
		return "", that.err
	}
	that.codes++
	return fmt.Sprintf("C%03d", that.codes), nil
}

func newEngine() (*Engine, *seqAllocator) {
	alloc := &seqAllocator{rooms: 1}
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return NewEngine(alloc, func() time.Time { return clock }), alloc
}

func eventTypes(out *Outcome) []entity.EventType {
	types := make([]entity.EventType, 0, len(out.Events))
	for _, event := range out.Events {
		types = append(types, event.Type)
	}
	return types
}

// newLobby creates a public room with the host and the guest seated.
func newLobby(t *testing.T, engine *Engine) *Aggregate {
	t.Helper()

	agg, _, err := engine.Create(context.Background(), 1, "lobby", false, hostID)
	require.NoError(t, err)

	_, err = engine.Join(agg, guestID, "")
	require.NoError(t, err)

	return agg
}

// newGame returns a room with a running match.
func newGame(t *testing.T, engine *Engine) *Aggregate {
	t.Helper()

	ctx := context.Background()
	agg := newLobby(t, engine)

	_, err := engine.SetReady(ctx, agg, hostID, true)
	require.NoError(t, err)
	_, err = engine.SetReady(ctx, agg, guestID, true)
	require.NoError(t, err)
	require.Equal(t, entity.StateInProgress, agg.Room.GameState)

	return agg
}

// newFinished returns a room where the host won with a row on y=7.
func newFinished(t *testing.T, engine *Engine) *Aggregate {
	t.Helper()

	agg := newGame(t, engine)
	for i := 0; i < 4; i++ {
		_, err := engine.Move(agg, hostID, entity.Position{X: 3 + i, Y: 7})
		require.NoError(t, err)
		_, err = engine.Move(agg, guestID, entity.Position{X: 3 + i, Y: 8})
		require.NoError(t, err)
	}
	_, err := engine.Move(agg, hostID, entity.Position{X: 7, Y: 7})
	require.NoError(t, err)
	require.Equal(t, entity.StateFinished, agg.Room.GameState)

	return agg
}

func TestEngine_Create(t *testing.T) {
	t.Run("Creates a public room with the host seated", func(t *testing.T) {
		// Given: an engine
		engine, _ := newEngine()

		// When: creating a public room
		agg, out, err := engine.Create(context.Background(), 7, "lobby", false, hostID)

		// Then: the host is alone and the room waits for players
		require.NoError(t, err)
		assert.Equal(t, int64(7), agg.Room.ID)
		assert.Empty(t, agg.Room.JoinCode)
		assert.Equal(t, entity.StateWaitingForPlayers, agg.Room.GameState)
		assert.Equal(t, entity.StatusWaiting, agg.Room.Status)
		require.Len(t, agg.Room.Players, 1)
		assert.True(t, agg.Room.Players[0].IsHost)
		assert.Equal(t, []entity.EventType{entity.EventPlayerJoined}, eventTypes(out))
		require.NoError(t, agg.Validate())
	})

	t.Run("Reserves a join code for a private room", func(t *testing.T) {
		// Given: an engine
		engine, _ := newEngine()

		// When: creating a private room
		agg, out, err := engine.Create(context.Background(), 7, "secret", true, hostID)

		// Then: a four character code is assigned and reported as reserved
		require.NoError(t, err)
		assert.True(t, entity.IsJoinCode(agg.Room.JoinCode))
		assert.Equal(t, []string{agg.Room.JoinCode}, out.Reserved)
	})

	t.Run("Fails when no code can be reserved", func(t *testing.T) {
		// Given: an allocator that is down
		engine, alloc := newEngine()
		alloc.err = errAllocatorDown

		// When: creating a private room
		_, _, err := engine.Create(context.Background(), 7, "secret", true, hostID)

		// Then: the allocator error is returned
		require.ErrorIs(t, err, errAllocatorDown)
	})
}

func TestEngine_Join(t *testing.T) {
	t.Run("Second player moves the room to waiting for ready", func(t *testing.T) {
		// Given: a private room with only the host
		engine, _ := newEngine()
		agg, _, err := engine.Create(context.Background(), 1, "secret", true, hostID)
		require.NoError(t, err)

		// When: the guest joins with the code
		out, err := engine.Join(agg, guestID, agg.Room.JoinCode)

		// Then: the roster is full and both are notified
		require.NoError(t, err)
		assert.Equal(t, entity.StateWaitingForReady, agg.Room.GameState)
		assert.Len(t, agg.Room.Players, 2)
		require.Len(t, out.Events, 1)
		assert.ElementsMatch(t, []int64{hostID, guestID}, out.Events[0].Recipients)
	})

	t.Run("Rejects a wrong code for a private room", func(t *testing.T) {
		// Given: a private room
		engine, _ := newEngine()
		agg, _, err := engine.Create(context.Background(), 1, "secret", true, hostID)
		require.NoError(t, err)

		// When: the guest joins without the code
		_, err = engine.Join(agg, guestID, "")

		// Then: the join is rejected
		require.ErrorIs(t, err, apperror.ErrInvalidJoinCode)
		assert.Len(t, agg.Room.Players, 1)
	})

	t.Run("Rejects a third player", func(t *testing.T) {
		// Given: a full lobby
		engine, _ := newEngine()
		agg := newLobby(t, engine)

		// When: a third player joins
		_, err := engine.Join(agg, thirdID, "")

		// Then: the room is full
		require.ErrorIs(t, err, apperror.ErrRoomFull)
		assert.Len(t, agg.Room.Players, 2)
	})

	t.Run("Rejects joining a running game", func(t *testing.T) {
		// Given: a running game
		engine, _ := newEngine()
		agg := newGame(t, engine)

		// When: a third player joins
		_, err := engine.Join(agg, thirdID, "")

		// Then: the room is not joinable
		require.ErrorIs(t, err, apperror.ErrRoomNotJoinable)
	})

	t.Run("Lets a member re-enter", func(t *testing.T) {
		// Given: a running game
		engine, _ := newEngine()
		agg := newGame(t, engine)

		// When: the host joins again
		out, err := engine.Join(agg, hostID, "")

		// Then: nothing changes
		require.NoError(t, err)
		assert.False(t, out.Changed)
	})

	t.Run("A creator who left cannot come back to a finished room", func(t *testing.T) {
		// Given: a finished game the host has left
		engine, _ := newEngine()
		agg := newGame(t, engine)
		_, err := engine.Surrender(agg, guestID)
		require.NoError(t, err)
		_, err = engine.Leave(agg, hostID)
		require.NoError(t, err)

		// When: the host joins again
		_, err = engine.Join(agg, hostID, "")

		// Then: the room is not joinable and the host role stays with the guest
		require.ErrorIs(t, err, apperror.ErrRoomNotJoinable)
		assert.True(t, agg.Room.Player(guestID).IsHost)
	})
}

func TestEngine_SetReady(t *testing.T) {
	ctx := context.Background()

	t.Run("Stores the flag without a transition below two players", func(t *testing.T) {
		// Given: a room with only the host
		engine, _ := newEngine()
		agg, _, err := engine.Create(ctx, 1, "lobby", false, hostID)
		require.NoError(t, err)

		// When: the host gets ready
		_, err = engine.SetReady(ctx, agg, hostID, true)

		// Then: the room still waits for players
		require.NoError(t, err)
		assert.Equal(t, entity.StateWaitingForPlayers, agg.Room.GameState)
		assert.Equal(t, entity.Ready, agg.Room.Player(hostID).Ready)
	})

	t.Run("Ready twice equals once", func(t *testing.T) {
		// Given: a lobby where the host is ready
		engine, _ := newEngine()
		agg := newLobby(t, engine)
		_, err := engine.SetReady(ctx, agg, hostID, true)
		require.NoError(t, err)
		before := agg.Clone()

		// When: the host is set ready again
		out, err := engine.SetReady(ctx, agg, hostID, true)

		// Then: the call is a no-op
		require.NoError(t, err)
		assert.False(t, out.Changed)
		assert.Equal(t, before, agg)
	})

	t.Run("Both ready starts the match with the host on the first mark", func(t *testing.T) {
		// Given: a lobby where the guest is ready
		engine, _ := newEngine()
		agg := newLobby(t, engine)
		_, err := engine.SetReady(ctx, agg, guestID, true)
		require.NoError(t, err)

		// When: the host gets ready
		out, err := engine.SetReady(ctx, agg, hostID, true)

		// Then: the room passes through ready to start into a running match
		require.NoError(t, err)
		require.Equal(t, []entity.EventType{entity.EventReadyChanged, entity.EventGameStarted}, eventTypes(out))
		assert.Equal(t, entity.StateReadyToStart, out.Events[0].GameState)
		assert.Equal(t, entity.StateInProgress, agg.Room.GameState)
		assert.Equal(t, entity.StatusPlaying, agg.Room.Status)
		require.NotNil(t, agg.Room.GameStartedAt)
		require.NotNil(t, agg.Match)
		assert.Equal(t, hostID, agg.Match.First.UserID)
		assert.Equal(t, entity.MarkX, agg.Match.First.Mark)
		for _, player := range agg.Room.Players {
			assert.Equal(t, entity.InGame, player.Ready)
		}
		require.NoError(t, agg.Validate())
	})

	t.Run("Un-ready reverts to waiting for ready", func(t *testing.T) {
		// Given: a lobby where the host is ready
		engine, _ := newEngine()
		agg := newLobby(t, engine)
		_, err := engine.SetReady(ctx, agg, hostID, true)
		require.NoError(t, err)

		// When: the host withdraws
		_, err = engine.SetReady(ctx, agg, hostID, false)

		// Then: the room waits for ready
		require.NoError(t, err)
		assert.Equal(t, entity.StateWaitingForReady, agg.Room.GameState)
	})

	t.Run("Rejects outsiders, running and closed rooms", func(t *testing.T) {
		engine, _ := newEngine()

		_, err := engine.SetReady(ctx, newLobby(t, engine), thirdID, true)
		require.ErrorIs(t, err, apperror.ErrNotInRoom)

		_, err = engine.SetReady(ctx, newGame(t, engine), hostID, false)
		require.ErrorIs(t, err, apperror.ErrGameAlreadyStarted)

		_, err = engine.SetReady(ctx, newFinished(t, engine), hostID, true)
		require.ErrorIs(t, err, apperror.ErrRoomClosed)
	})

	t.Run("Leaves the room untouched when the match id cannot be allocated", func(t *testing.T) {
		// Given: a lobby where the guest is ready and the allocator is down
		engine, alloc := newEngine()
		agg := newLobby(t, engine)
		_, err := engine.SetReady(ctx, agg, guestID, true)
		require.NoError(t, err)
		alloc.err = errAllocatorDown

		// When: the host gets ready on a copy
		work := agg.Clone()
		_, err = engine.SetReady(ctx, work, hostID, true)

		// Then: the error is returned and the original is unchanged
		require.ErrorIs(t, err, errAllocatorDown)
		assert.Equal(t, entity.StateWaitingForReady, agg.Room.GameState)
		assert.Nil(t, agg.Match)
	})
}

func TestEngine_Move(t *testing.T) {
	t.Run("Accepts the host's first move and rejects a second", func(t *testing.T) {
		// Given: a running game
		engine, _ := newEngine()
		agg := newGame(t, engine)

		// When: the host moves to the centre and then tries again
		out, err := engine.Move(agg, hostID, entity.Position{X: 7, Y: 7})
		require.NoError(t, err)
		_, errAgain := engine.Move(agg, hostID, entity.Position{X: 8, Y: 8})

		// Then: the first move is recorded and the second is out of turn
		require.Len(t, out.NewMoves, 1)
		assert.Equal(t, 1, out.NewMoves[0].Seq)
		assert.Equal(t, entity.MarkO, out.Events[0].NextTurn)
		require.ErrorIs(t, errAgain, apperror.ErrNotYourTurn)
		assert.Len(t, agg.Match.Moves, 1)
	})

	t.Run("Accepts the corners and rejects positions off the board", func(t *testing.T) {
		// Given: a running game
		engine, _ := newEngine()
		agg := newGame(t, engine)

		// When / Then: corners are accepted
		_, err := engine.Move(agg, hostID, entity.Position{X: 0, Y: 0})
		require.NoError(t, err)
		_, err = engine.Move(agg, guestID, entity.Position{X: 14, Y: 14})
		require.NoError(t, err)

		// When / Then: positions off the board are rejected
		_, err = engine.Move(agg, hostID, entity.Position{X: 15, Y: 0})
		require.ErrorIs(t, err, apperror.ErrOutOfBounds)
		_, err = engine.Move(agg, hostID, entity.Position{X: -1, Y: 3})
		require.ErrorIs(t, err, apperror.ErrOutOfBounds)
	})

	t.Run("Five in a row finishes the game", func(t *testing.T) {
		// Given: a running game
		engine, _ := newEngine()

		// When: the host completes a row on y=7
		agg := newFinished(t, engine)

		// Then: the room is finished with the host as the winner
		assert.Equal(t, entity.StatusFinished, agg.Room.Status)
		assert.Equal(t, entity.EndFiveInRow, agg.Room.EndReason)
		require.NotNil(t, agg.Room.WinnerID)
		assert.Equal(t, hostID, *agg.Room.WinnerID)
		assert.Equal(t, guestID, *agg.Room.LoserID)
		assert.Equal(t, entity.GameResultWin, agg.Room.Player(hostID).LastGameResult)
		assert.Equal(t, entity.GameResultLose, agg.Room.Player(guestID).LastGameResult)
		require.NotNil(t, agg.Room.GameEndedAt)
		require.NoError(t, agg.Validate())
	})

	t.Run("The winning move records history and reports the line", func(t *testing.T) {
		// Given: a game where the host has four in a row
		engine, _ := newEngine()
		agg := newGame(t, engine)
		for i := 0; i < 4; i++ {
			_, err := engine.Move(agg, hostID, entity.Position{X: 3 + i, Y: 7})
			require.NoError(t, err)
			_, err = engine.Move(agg, guestID, entity.Position{X: 3 + i, Y: 8})
			require.NoError(t, err)
		}

		// When: the host plays (7,7)
		out, err := engine.Move(agg, hostID, entity.Position{X: 7, Y: 7})

		// Then: move and game end are emitted together
		require.NoError(t, err)
		assert.Equal(t, []entity.EventType{entity.EventMoveMade, entity.EventGameEnded}, eventTypes(out))
		assert.Len(t, out.Events[1].Line, 5)
		require.NotNil(t, out.History)
		assert.Equal(t, agg.Match.ID, out.History.MatchID)
		assert.Equal(t, hostID, *out.History.WinnerID)
		assert.Equal(t, 9, out.History.Moves)
	})

	t.Run("Rejects moves outside a running game", func(t *testing.T) {
		engine, _ := newEngine()

		_, err := engine.Move(newLobby(t, engine), hostID, entity.Position{X: 1, Y: 1})
		require.ErrorIs(t, err, apperror.ErrGameNotInProgress)

		_, err = engine.Move(newFinished(t, engine), guestID, entity.Position{X: 1, Y: 1})
		require.ErrorIs(t, err, apperror.ErrGameNotInProgress)
	})
}

func TestEngine_Surrender(t *testing.T) {
	t.Run("The opponent wins", func(t *testing.T) {
		// Given: a running game
		engine, _ := newEngine()
		agg := newGame(t, engine)

		// When: the host surrenders
		out, err := engine.Surrender(agg, hostID)

		// Then: the guest wins and the room ends by surrender
		require.NoError(t, err)
		assert.Equal(t, entity.StateEndedBySurrender, agg.Room.GameState)
		assert.Equal(t, guestID, *agg.Room.WinnerID)
		assert.Equal(t, entity.ResultSecondPlayerWin, agg.Match.Result)
		assert.Equal(t, entity.EndSurrender, out.History.Reason)
		require.NoError(t, agg.Validate())
	})

	t.Run("Rejects surrender outside a running game", func(t *testing.T) {
		engine, _ := newEngine()

		_, err := engine.Surrender(newLobby(t, engine), hostID)
		require.ErrorIs(t, err, apperror.ErrGameNotInProgress)
	})
}

func TestEngine_Leave(t *testing.T) {
	t.Run("Leaving a running game forfeits it", func(t *testing.T) {
		// Given: a running game
		engine, _ := newEngine()
		agg := newGame(t, engine)

		// When: the guest leaves
		out, err := engine.Leave(agg, guestID)

		// Then: the host wins by forfeit and further moves are rejected
		require.NoError(t, err)
		assert.Equal(t, []entity.EventType{entity.EventPlayerLeft, entity.EventGameEnded}, eventTypes(out))
		assert.Equal(t, entity.StateEndedByLeave, agg.Room.GameState)
		assert.Equal(t, hostID, *agg.Room.WinnerID)
		assert.True(t, agg.Room.Player(guestID).Departed)
		assert.Equal(t, entity.EndLeave, out.History.Reason)

		_, err = engine.Move(agg, hostID, entity.Position{X: 1, Y: 1})
		require.ErrorIs(t, err, apperror.ErrGameNotInProgress)
		require.NoError(t, agg.Validate())
	})

	t.Run("A leaving host hands over the host role", func(t *testing.T) {
		// Given: a running game
		engine, _ := newEngine()
		agg := newGame(t, engine)

		// When: the host leaves
		out, err := engine.Leave(agg, hostID)

		// Then: the guest becomes host
		require.NoError(t, err)
		assert.True(t, agg.Room.Player(guestID).IsHost)
		assert.False(t, agg.Room.Player(hostID).IsHost)
		require.NotNil(t, out.Events[0].NewHostID)
		assert.Equal(t, guestID, *out.Events[0].NewHostID)
	})

	t.Run("Leaving before the game reverts to waiting for players", func(t *testing.T) {
		// Given: a lobby where the guest is ready
		engine, _ := newEngine()
		agg := newLobby(t, engine)
		_, err := engine.SetReady(context.Background(), agg, guestID, true)
		require.NoError(t, err)

		// When: the host leaves
		_, err = engine.Leave(agg, hostID)

		// Then: the guest is alone, host and not ready
		require.NoError(t, err)
		require.Len(t, agg.Room.Players, 1)
		assert.Equal(t, entity.StateWaitingForPlayers, agg.Room.GameState)
		assert.True(t, agg.Room.Players[0].IsHost)
		assert.Equal(t, entity.NotReady, agg.Room.Players[0].Ready)
		require.NoError(t, agg.Validate())
	})

	t.Run("The last player leaving tears the room down", func(t *testing.T) {
		// Given: a private room with only the host
		engine, _ := newEngine()
		agg, _, err := engine.Create(context.Background(), 1, "secret", true, hostID)
		require.NoError(t, err)

		// When: the host leaves
		out, err := engine.Leave(agg, hostID)

		// Then: the room is deleted and its code released
		require.NoError(t, err)
		assert.True(t, out.Deleted)
		assert.Equal(t, []string{agg.Room.JoinCode}, out.Released)
	})

	t.Run("Leaving a finished room keeps the row and abandons it when empty", func(t *testing.T) {
		// Given: a finished game
		engine, _ := newEngine()
		agg := newFinished(t, engine)

		// When: both players leave
		_, err := engine.Leave(agg, guestID)
		require.NoError(t, err)
		_, err = engine.Leave(agg, hostID)
		require.NoError(t, err)

		// Then: both rows are retained and the room is abandoned
		assert.Len(t, agg.Room.Players, 2)
		assert.True(t, agg.Room.Abandoned)
		assert.Equal(t, entity.StateFinished, agg.Room.GameState)
		require.NoError(t, agg.Validate())
	})

	t.Run("Leaving is a no-op for non-members", func(t *testing.T) {
		// Given: a lobby
		engine, _ := newEngine()
		agg := newLobby(t, engine)

		// When: an outsider leaves
		out, err := engine.Leave(agg, thirdID)

		// Then: nothing changes
		require.NoError(t, err)
		assert.False(t, out.Changed)
	})
}
