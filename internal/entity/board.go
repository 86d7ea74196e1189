package entity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
)

const (
	BoardSize = 15
	WinLength = 5
)

type Mark string

const (
	MarkX     Mark = "X"
	MarkO     Mark = "O"
	EmptyCell Mark = ""
)

// Opponent returns the other mark.
func (that Mark) Opponent() Mark {
	if that == MarkX {
		return MarkO
	}
	return MarkX
}

type TerminalKind string

const (
	TerminalNone TerminalKind = "none"
	TerminalWin  TerminalKind = "win"
	TerminalDraw TerminalKind = "draw"
)

var ErrBoardSealed = errors.New("board already has a winning line")

// axes are the four directions scanned from the last placed cell. The opposite direction is covered by negation.
var axes = [4]Position{
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: 1, Y: 1},
	{X: 1, Y: -1},
}

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (that Position) InBounds() bool {
	return that.X >= 0 && that.X < BoardSize && that.Y >= 0 && that.Y < BoardSize
}

func (that Position) String() string {
	return fmt.Sprintf("(%d,%d)", that.X, that.Y)
}

// Terminal is the result of checking the board after a placement.
type Terminal struct {
	Kind TerminalKind `json:"kind"`
	Mark Mark         `json:"mark,omitempty"`
	Line []Position   `json:"line,omitempty"`
}

func (that Terminal) IsOver() bool {
	return that.Kind == TerminalWin || that.Kind == TerminalDraw
}

type Board struct {
	cells    [BoardSize][BoardSize]Mark
	filled   int
	terminal Terminal
}

func NewBoard() *Board {
	return &Board{terminal: Terminal{Kind: TerminalNone}}
}

// Place puts mark at pos and evaluates the terminal state from that cell.
func (that *Board) Place(pos Position, mark Mark) error {
	if that.terminal.Kind == TerminalWin {
		return ErrBoardSealed
	}

	if !pos.InBounds() {
		return fmt.Errorf("%w: %s", apperror.ErrOutOfBounds, pos)
	}

	if that.cells[pos.Y][pos.X] != EmptyCell {
		return fmt.Errorf("%w: %s", apperror.ErrCellOccupied, pos)
	}

	that.cells[pos.Y][pos.X] = mark
	that.filled++
	that.terminal = that.evaluate(pos, mark)

	return nil
}

// CheckTerminal reports the state reached by the last placement.
func (that *Board) CheckTerminal() Terminal {
	return that.terminal
}

func (that *Board) At(pos Position) Mark {
	if !pos.InBounds() {
		return EmptyCell
	}
	return that.cells[pos.Y][pos.X]
}

func (that *Board) Filled() int {
	return that.filled
}

// Rows renders the board as one string per row, '.' for an empty cell.
func (that *Board) Rows() []string {
	rows := make([]string, BoardSize)
	for y := 0; y < BoardSize; y++ {
		var sb strings.Builder
		for x := 0; x < BoardSize; x++ {
			switch that.cells[y][x] {
			case EmptyCell:
				sb.WriteByte('.')
			default:
				sb.WriteString(string(that.cells[y][x]))
			}
		}
		rows[y] = sb.String()
	}
	return rows
}

func (that *Board) evaluate(pos Position, mark Mark) Terminal {
	for _, axis := range axes {
		line := that.lineThrough(pos, mark, axis)
		if len(line) >= WinLength {
			return Terminal{Kind: TerminalWin, Mark: mark, Line: line}
		}
	}

	if that.filled == BoardSize*BoardSize {
		return Terminal{Kind: TerminalDraw}
	}

	return Terminal{Kind: TerminalNone}
}

// lineThrough collects the contiguous run of mark through pos along axis, ordered from the negative end.
func (that *Board) lineThrough(pos Position, mark Mark, axis Position) []Position {
	back := 0
	for p := (Position{X: pos.X - axis.X, Y: pos.Y - axis.Y}); that.At(p) == mark && p.InBounds(); p = (Position{X: p.X - axis.X, Y: p.Y - axis.Y}) {
		back++
	}

	start := Position{X: pos.X - back*axis.X, Y: pos.Y - back*axis.Y}

	line := make([]Position, 0, WinLength)
	for p := start; p.InBounds() && that.At(p) == mark; p = (Position{X: p.X + axis.X, Y: p.Y + axis.Y}) {
		line = append(line, p)
	}

	return line
}
