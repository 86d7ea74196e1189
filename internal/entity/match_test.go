package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
)

const (
	hostID  int64 = 1
	guestID int64 = 2
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestMatch_Play(t *testing.T) {
	t.Run("Assigns the first mark to the first seat and alternates", func(t *testing.T) {
		// Given: a fresh match
		match := NewMatch(10, 1, hostID, guestID, now)

		// When: both players move in turn
		first, _, errFirst := match.Play(hostID, Position{X: 7, Y: 7}, now)
		second, _, errSecond := match.Play(guestID, Position{X: 8, Y: 7}, now)

		// Then: moves are numbered from one with alternating marks
		require.NoError(t, errFirst)
		require.NoError(t, errSecond)
		assert.Equal(t, 1, first.Seq)
		assert.Equal(t, MarkX, first.Mark)
		assert.Equal(t, 2, second.Seq)
		assert.Equal(t, MarkO, second.Mark)
		assert.Equal(t, MarkX, match.NextMark())
	})

	t.Run("Rejects a second move by the same player", func(t *testing.T) {
		// Given: the host has just moved
		match := NewMatch(10, 1, hostID, guestID, now)
		_, _, err := match.Play(hostID, Position{X: 7, Y: 7}, now)
		require.NoError(t, err)

		// When: the host moves again
		_, _, err = match.Play(hostID, Position{X: 8, Y: 8}, now)

		// Then: it is not the host's turn and the log is unchanged
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Len(t, match.Moves, 1)
	})

	t.Run("Checks guards in order", func(t *testing.T) {
		// Given: a match where the host has moved at (7,7)
		match := NewMatch(10, 1, hostID, guestID, now)
		_, _, err := match.Play(hostID, Position{X: 7, Y: 7}, now)
		require.NoError(t, err)

		// When / Then: each guard reports its own reason
		_, _, err = match.Play(99, Position{X: 99, Y: 99}, now)
		require.ErrorIs(t, err, apperror.ErrNotInRoom)

		_, _, err = match.Play(hostID, Position{X: 99, Y: 99}, now)
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)

		_, _, err = match.Play(guestID, Position{X: 15, Y: 0}, now)
		require.ErrorIs(t, err, apperror.ErrOutOfBounds)

		_, _, err = match.Play(guestID, Position{X: 7, Y: 7}, now)
		require.ErrorIs(t, err, apperror.ErrCellOccupied)

		assert.Len(t, match.Moves, 1)
	})

	t.Run("Concludes the match on five in a row", func(t *testing.T) {
		// Given: host has four in a row on y=7 and guest has scattered stones
		match := NewMatch(10, 1, hostID, guestID, now)
		for i := 0; i < 4; i++ {
			_, _, err := match.Play(hostID, Position{X: 3 + i, Y: 7}, now)
			require.NoError(t, err)
			_, _, err = match.Play(guestID, Position{X: i, Y: 0}, now)
			require.NoError(t, err)
		}

		// When: host completes the line at (7,7)
		_, terminal, err := match.Play(hostID, Position{X: 7, Y: 7}, now)

		// Then: host wins and no further moves are accepted
		require.NoError(t, err)
		assert.Equal(t, TerminalWin, terminal.Kind)
		assert.Equal(t, ResultFirstPlayerWin, match.Result)
		require.NotNil(t, match.EndedAt)
		assert.Equal(t, hostID, *match.WinnerID())
		assert.Equal(t, guestID, *match.LoserID())

		_, _, err = match.Play(guestID, Position{X: 10, Y: 10}, now)
		require.ErrorIs(t, err, apperror.ErrGameNotInProgress)
	})

	t.Run("Concludes the match as a draw on a full board", func(t *testing.T) {
		// Given: the cells of a drawn board split by mark
		var xs, os []Position
		for y := 0; y < BoardSize; y++ {
			for x := 0; x < BoardSize; x++ {
				if drawPattern(x, y) == MarkX {
					xs = append(xs, Position{X: x, Y: y})
				} else {
					os = append(os, Position{X: x, Y: y})
				}
			}
		}
		match := NewMatch(10, 1, hostID, guestID, now)

		// When: both players fill them alternately
		var terminal Terminal
		for i := range xs {
			var err error
			_, terminal, err = match.Play(hostID, xs[i], now)
			require.NoError(t, err)
			if i < len(os) {
				_, terminal, err = match.Play(guestID, os[i], now)
				require.NoError(t, err)
			}
		}

		// Then: the match is a draw without winner or loser
		assert.Equal(t, TerminalDraw, terminal.Kind)
		assert.Equal(t, ResultDraw, match.Result)
		assert.Nil(t, match.WinnerID())
		assert.Nil(t, match.LoserID())
	})
}

func TestMatch_Replay(t *testing.T) {
	t.Run("Rebuilds the board from a valid log", func(t *testing.T) {
		// Given: a played match
		played := NewMatch(10, 1, hostID, guestID, now)
		_, _, err := played.Play(hostID, Position{X: 7, Y: 7}, now)
		require.NoError(t, err)
		_, _, err = played.Play(guestID, Position{X: 0, Y: 0}, now)
		require.NoError(t, err)

		// When: a match without a board replays the log
		loaded := &Match{ID: 10, RoomID: 1, First: played.First, Second: played.Second, Result: ResultOngoing}
		err = loaded.Replay(played.Moves)

		// Then: the board matches the original
		require.NoError(t, err)
		assert.Equal(t, played.Board().Rows(), loaded.Board().Rows())
		assert.Equal(t, MarkX, loaded.NextMark())
		require.NoError(t, loaded.Validate())
	})

	t.Run("Rejects a log with a sequence gap", func(t *testing.T) {
		// Given: a log that skips sequence 2
		moves := []Move{
			{Position: Position{X: 1, Y: 1}, Mark: MarkX, Seq: 1},
			{Position: Position{X: 2, Y: 2}, Mark: MarkO, Seq: 3},
		}

		// When: replaying it
		err := NewMatch(10, 1, hostID, guestID, now).Replay(moves)

		// Then: the log is rejected as an invariant violation
		require.ErrorIs(t, err, apperror.ErrInvariantViolation)
	})

	t.Run("Rejects a log with a repeated position", func(t *testing.T) {
		// Given: a log that places twice on (1,1)
		moves := []Move{
			{Position: Position{X: 1, Y: 1}, Mark: MarkX, Seq: 1},
			{Position: Position{X: 1, Y: 1}, Mark: MarkO, Seq: 2},
		}

		// When: replaying it
		err := NewMatch(10, 1, hostID, guestID, now).Replay(moves)

		// Then: the log is rejected
		require.ErrorIs(t, err, apperror.ErrInvariantViolation)
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
	})
}

func TestMatch_Clone(t *testing.T) {
	// Given: a match with one move
	match := NewMatch(10, 1, hostID, guestID, now)
	_, _, err := match.Play(hostID, Position{X: 7, Y: 7}, now)
	require.NoError(t, err)

	// When: the clone receives another move
	clone := match.Clone()
	_, _, err = clone.Play(guestID, Position{X: 8, Y: 8}, now)
	require.NoError(t, err)

	// Then: the original is untouched
	assert.Len(t, match.Moves, 1)
	assert.Equal(t, EmptyCell, match.Board().At(Position{X: 8, Y: 8}))
	assert.Len(t, clone.Moves, 2)
}
