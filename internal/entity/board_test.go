package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
)

// drawPattern fills the board without any run of five.
func drawPattern(x, y int) Mark {
	if ((x/2)+y)%2 == 0 {
		return MarkX
	}
	return MarkO
}

func TestBoard_Place(t *testing.T) {
	t.Run("Accepts corner cells", func(t *testing.T) {
		// Given: an empty board
		board := NewBoard()

		// When: placing marks on opposite corners
		errFirst := board.Place(Position{X: 0, Y: 0}, MarkX)
		errSecond := board.Place(Position{X: 14, Y: 14}, MarkO)

		// Then: both placements are accepted
		require.NoError(t, errFirst)
		require.NoError(t, errSecond)
		assert.Equal(t, MarkX, board.At(Position{X: 0, Y: 0}))
		assert.Equal(t, MarkO, board.At(Position{X: 14, Y: 14}))
		assert.Equal(t, 2, board.Filled())
	})

	t.Run("Rejects positions outside the grid", func(t *testing.T) {
		// Given: an empty board
		board := NewBoard()

		// When: placing outside the grid
		errRight := board.Place(Position{X: 15, Y: 0}, MarkX)
		errLeft := board.Place(Position{X: -1, Y: 3}, MarkX)

		// Then: both are rejected as out of bounds and nothing is placed
		require.ErrorIs(t, errRight, apperror.ErrOutOfBounds)
		require.ErrorIs(t, errLeft, apperror.ErrOutOfBounds)
		assert.Equal(t, 0, board.Filled())
	})

	t.Run("Rejects an occupied cell", func(t *testing.T) {
		// Given: a board with a mark at (7,7)
		board := NewBoard()
		require.NoError(t, board.Place(Position{X: 7, Y: 7}, MarkX))

		// When: placing on the same cell again
		err := board.Place(Position{X: 7, Y: 7}, MarkO)

		// Then: the cell is reported occupied and keeps its mark
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		assert.Equal(t, MarkX, board.At(Position{X: 7, Y: 7}))
	})

	t.Run("Rejects placements after a win", func(t *testing.T) {
		// Given: a board with five X in a row
		board := NewBoard()
		for x := 0; x < WinLength; x++ {
			require.NoError(t, board.Place(Position{X: x, Y: 0}, MarkX))
		}

		// When: placing another mark
		err := board.Place(Position{X: 10, Y: 10}, MarkO)

		// Then: the board is sealed
		require.ErrorIs(t, err, ErrBoardSealed)
	})
}

func TestBoard_CheckTerminal(t *testing.T) {
	t.Run("Reports none while no line is complete", func(t *testing.T) {
		// Given: four X in a row
		board := NewBoard()
		for x := 3; x < 7; x++ {
			require.NoError(t, board.Place(Position{X: x, Y: 7}, MarkX))
		}

		// When: checking the terminal state
		terminal := board.CheckTerminal()

		// Then: the game continues
		assert.Equal(t, TerminalNone, terminal.Kind)
		assert.False(t, terminal.IsOver())
	})

	t.Run("Detects a horizontal line completed in the middle", func(t *testing.T) {
		// Given: X at x=3,4,6,7 on row 7
		board := NewBoard()
		for _, x := range []int{3, 4, 6, 7} {
			require.NoError(t, board.Place(Position{X: x, Y: 7}, MarkX))
		}

		// When: X fills the gap at x=5
		require.NoError(t, board.Place(Position{X: 5, Y: 7}, MarkX))
		terminal := board.CheckTerminal()

		// Then: X wins with the whole line
		assert.Equal(t, TerminalWin, terminal.Kind)
		assert.Equal(t, MarkX, terminal.Mark)
		assert.Equal(t, []Position{{3, 7}, {4, 7}, {5, 7}, {6, 7}, {7, 7}}, terminal.Line)
	})

	t.Run("Detects vertical and both diagonal lines", func(t *testing.T) {
		cases := map[string][]Position{
			"vertical":      {{2, 0}, {2, 1}, {2, 2}, {2, 3}, {2, 4}},
			"diagonal":      {{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}},
			"anti-diagonal": {{10, 14}, {11, 13}, {12, 12}, {13, 11}, {14, 10}},
		}

		for name, line := range cases {
			t.Run(name, func(t *testing.T) {
				// Given: an empty board
				board := NewBoard()

				// When: O fills the line
				for _, pos := range line {
					require.NoError(t, board.Place(pos, MarkO))
				}

				// Then: O wins
				terminal := board.CheckTerminal()
				assert.Equal(t, TerminalWin, terminal.Kind)
				assert.Equal(t, MarkO, terminal.Mark)
				assert.Len(t, terminal.Line, WinLength)
			})
		}
	})

	t.Run("Counts an overline as a win", func(t *testing.T) {
		// Given: X at x=0..2 and x=4..5 on row 0
		board := NewBoard()
		for _, x := range []int{0, 1, 2, 4, 5} {
			require.NoError(t, board.Place(Position{X: x, Y: 0}, MarkX))
		}

		// When: X joins both runs into six
		require.NoError(t, board.Place(Position{X: 3, Y: 0}, MarkX))

		// Then: the six-long run wins
		terminal := board.CheckTerminal()
		assert.Equal(t, TerminalWin, terminal.Kind)
		assert.Len(t, terminal.Line, 6)
	})

	t.Run("Does not join marks of different players", func(t *testing.T) {
		// Given: X X O X X on row 0
		board := NewBoard()
		require.NoError(t, board.Place(Position{X: 2, Y: 0}, MarkO))
		for _, x := range []int{0, 1, 3} {
			require.NoError(t, board.Place(Position{X: x, Y: 0}, MarkX))
		}

		// When: X extends the right run
		require.NoError(t, board.Place(Position{X: 4, Y: 0}, MarkX))

		// Then: no line is complete
		assert.Equal(t, TerminalNone, board.CheckTerminal().Kind)
	})

	t.Run("Reports a draw on a full board without a line", func(t *testing.T) {
		// Given: an empty board
		board := NewBoard()

		// When: every cell is filled with a pattern that has no run of five
		for y := 0; y < BoardSize; y++ {
			for x := 0; x < BoardSize; x++ {
				require.NoError(t, board.Place(Position{X: x, Y: y}, drawPattern(x, y)))
			}
		}

		// Then: the board is drawn
		assert.Equal(t, TerminalDraw, board.CheckTerminal().Kind)
		assert.Equal(t, BoardSize*BoardSize, board.Filled())
	})
}

func TestBoard_Rows(t *testing.T) {
	// Given: a board with two marks
	board := NewBoard()
	require.NoError(t, board.Place(Position{X: 0, Y: 0}, MarkX))
	require.NoError(t, board.Place(Position{X: 2, Y: 0}, MarkO))

	// When: rendering rows
	rows := board.Rows()

	// Then: marks appear in place and empty cells are dots
	require.Len(t, rows, BoardSize)
	assert.Equal(t, "X.O............", rows[0])
	assert.Equal(t, "...............", rows[1])
}
