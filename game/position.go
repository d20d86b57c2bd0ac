// Package game implements the rules of Dodgem: board positions,
// legal-move generation, termination checks, and the remain measure
// that the database builder uses to schedule its work.
package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Side identifies a player. First moves left to right and exits on the
// rightmost column; Second moves bottom to top and exits on the top row.
type Side int

const (
	First  Side = 0
	Second Side = 1
)

func (s Side) Opponent() Side {
	return 1 - s
}

func (s Side) String() string {
	if s == First {
		return "First"
	}
	return "Second"
}

// ExitCell is the destination returned by LegalDestinations for the
// exit action. It never appears inside a Position; an exited piece is
// simply removed from its side's list.
const ExitCell = -1

// ErrMalformedKey is returned by ParseKey for any input that is not a
// byte-exact canonical position key.
var ErrMalformedKey = errors.New("malformed position key")

// Position is a game state: the board cells occupied by each side's
// active pieces, and the side to move. Cell indices are row-major in
// [0, n²); pieces that have exited the board are not listed. The piece
// slices are kept sorted ascending so that Key is canonical.
type Position struct {
	Pieces [2][]int
	Turn   Side
}

// Key returns the canonical string encoding of p:
// "[[a1,a2,...],[b1,b2,...],t]" with both lists sorted ascending, no
// whitespace, and t either 0 or 1. Two states that differ only in
// piece-listing order encode identically.
func (p Position) Key() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for side := 0; side < 2; side++ {
		cells := sortedCells(p.Pieces[side])
		sb.WriteByte('[')
		for i, cell := range cells {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(cell))
		}
		sb.WriteString("],")
	}
	sb.WriteString(strconv.Itoa(int(p.Turn)))
	sb.WriteByte(']')
	return sb.String()
}

func (p Position) String() string {
	return p.Key()
}

// Equals compares two positions by canonical key.
func (p Position) Equals(o Position) bool {
	return p.Key() == o.Key()
}

// ParseKey is the exact inverse of Key. It rejects, with an error
// wrapping ErrMalformedKey, anything that is not a well-formed key:
// wrong arity, an out-of-range turn, unsorted or duplicated cells, or
// a cell occupied by both sides.
func ParseKey(key string) (Position, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(key), &raw); err != nil {
		return Position{}, fmt.Errorf("%w: %q: %v", ErrMalformedKey, key, err)
	}
	if len(raw) != 3 {
		return Position{}, fmt.Errorf("%w: %q: want 3 elements, got %d", ErrMalformedKey, key, len(raw))
	}
	var p Position
	seen := make(map[int]bool)
	for side := 0; side < 2; side++ {
		cells := []int{}
		if err := json.Unmarshal(raw[side], &cells); err != nil {
			return Position{}, fmt.Errorf("%w: %q: side %d: %v", ErrMalformedKey, key, side, err)
		}
		for i, cell := range cells {
			if cell < 0 {
				return Position{}, fmt.Errorf("%w: %q: negative cell %d", ErrMalformedKey, key, cell)
			}
			if i > 0 && cells[i-1] >= cell {
				return Position{}, fmt.Errorf("%w: %q: cells not strictly ascending", ErrMalformedKey, key)
			}
			if seen[cell] {
				return Position{}, fmt.Errorf("%w: %q: cell %d occupied twice", ErrMalformedKey, key, cell)
			}
			seen[cell] = true
		}
		p.Pieces[side] = cells
	}
	var turn int
	if err := json.Unmarshal(raw[2], &turn); err != nil {
		return Position{}, fmt.Errorf("%w: %q: turn: %v", ErrMalformedKey, key, err)
	}
	if turn != 0 && turn != 1 {
		return Position{}, fmt.Errorf("%w: %q: turn must be 0 or 1, got %d", ErrMalformedKey, key, turn)
	}
	p.Turn = Side(turn)
	return p, nil
}

// sortedCells returns cells sorted ascending, copying only when the
// input is out of order.
func sortedCells(cells []int) []int {
	for i := 1; i < len(cells); i++ {
		if cells[i-1] > cells[i] {
			sorted := make([]int, len(cells))
			copy(sorted, cells)
			sort.Ints(sorted)
			return sorted
		}
	}
	return cells
}

// occupied reports whether any active piece of either side sits on cell.
func (p Position) occupied(cell int) bool {
	for side := 0; side < 2; side++ {
		for _, c := range p.Pieces[side] {
			if c == cell {
				return true
			}
		}
	}
	return false
}

// withMove returns a copy of p where the given side's piece at from has
// moved to to, with the mover's turn passed to the opponent.
func (p Position) withMove(side Side, from, to int) Position {
	next := Position{Turn: p.Turn.Opponent()}
	for s := 0; s < 2; s++ {
		cells := make([]int, len(p.Pieces[s]))
		copy(cells, p.Pieces[s])
		next.Pieces[s] = cells
	}
	for i, c := range next.Pieces[side] {
		if c == from {
			next.Pieces[side][i] = to
			break
		}
	}
	sort.Ints(next.Pieces[side])
	return next
}

// withExit returns a copy of p where the given side's piece at from has
// left the board, with the mover's turn passed to the opponent.
func (p Position) withExit(side Side, from int) Position {
	next := Position{Turn: p.Turn.Opponent()}
	for s := 0; s < 2; s++ {
		cells := make([]int, 0, len(p.Pieces[s]))
		for _, c := range p.Pieces[s] {
			if s == int(side) && c == from {
				continue
			}
			cells = append(cells, c)
		}
		next.Pieces[s] = cells
	}
	return next
}
