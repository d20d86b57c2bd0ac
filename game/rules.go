package game

import "fmt"

// search horizons per board size, established empirically for the
// exhaustive build. Indexed by n-3.
var maxDepths = [3]int{20, 30, 50}

// Rules holds the board size and answers all rule questions for it.
// A Rules value is immutable and safe for concurrent use.
type Rules struct {
	n        int
	maxDepth int
}

// NewRules returns the rules for an n×n board, n between 3 and 5.
func NewRules(n int) (*Rules, error) {
	if n < 3 || n > 5 {
		return nil, fmt.Errorf("board size %d not supported (want 3-5)", n)
	}
	return &Rules{n: n, maxDepth: maxDepths[n-3]}, nil
}

// Size returns the board dimension n.
func (r *Rules) Size() int {
	return r.n
}

// MaxDepth returns the deepest search horizon used when building the
// exact database for this board size.
func (r *Rules) MaxDepth() int {
	return r.maxDepth
}

// MaxRemain is the remain measure of the initial position, and the
// largest value Remain can take: each side starts with n-1 pieces that
// each need n moves to leave the board.
func (r *Rules) MaxRemain() int {
	return 2 * r.n * (r.n - 1)
}

// InitialPosition places First's pieces on the leftmost column except
// the top-left corner, Second's on the bottom row except the
// bottom-left corner, with First to move.
func (r *Rules) InitialPosition() Position {
	var p Position
	for i := 0; i < r.n-1; i++ {
		p.Pieces[First] = append(p.Pieces[First], r.n*i)
		p.Pieces[Second] = append(p.Pieces[Second], r.n*(r.n-1)+1+i)
	}
	p.Turn = First
	return p
}

// Remain is the combined distance-to-exit measure: for each of
// Second's pieces 1+row-from-top, for each of First's pieces the
// column distance to the right edge (both counting the exit move
// itself). It never increases along any legal move.
func (r *Rules) Remain(p Position) int {
	remain := 0
	for _, cell := range p.Pieces[Second] {
		remain += 1 + cell/r.n
	}
	for _, cell := range p.Pieces[First] {
		remain += r.n - cell%r.n
	}
	return remain
}

// LegalDestinations returns the cells the given side's piece on cell
// may move to: one step forward or one step sideways onto an empty
// in-bounds cell, never backward. A piece on its exit edge gets
// ExitCell instead of the forward step.
func (r *Rules) LegalDestinations(p Position, cell int, side Side) []int {
	var dests []int
	n := r.n

	if side == Second {
		// forward is up; exit from the top row
		if cell < n {
			dests = append(dests, ExitCell)
		} else if !p.occupied(cell - n) {
			dests = append(dests, cell-n)
		}
		if cell%n > 0 && !p.occupied(cell-1) {
			dests = append(dests, cell-1)
		}
		if cell%n < n-1 && !p.occupied(cell+1) {
			dests = append(dests, cell+1)
		}
		return dests
	}

	// First: forward is right; exit from the rightmost column
	if cell%n == n-1 {
		dests = append(dests, ExitCell)
	} else if !p.occupied(cell + 1) {
		dests = append(dests, cell+1)
	}
	if cell >= n && !p.occupied(cell-n) {
		dests = append(dests, cell-n)
	}
	if cell < n*(n-1) && !p.occupied(cell+n) {
		dests = append(dests, cell+n)
	}
	return dests
}

// NextPositions enumerates every position reachable by one legal
// action (a board move or an exit) of the side to move, deduplicated
// by canonical key. Successors have the turn passed to the opponent.
func (r *Rules) NextPositions(p Position) []Position {
	var next []Position
	seen := make(map[string]bool)
	for _, cell := range p.Pieces[p.Turn] {
		for _, dest := range r.LegalDestinations(p, cell, p.Turn) {
			var succ Position
			if dest == ExitCell {
				succ = p.withExit(p.Turn, cell)
			} else {
				succ = p.withMove(p.Turn, cell, dest)
			}
			key := succ.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			next = append(next, succ)
		}
	}
	return next
}

// HasLegalMove reports whether the side to move has any legal action.
func (r *Rules) HasLegalMove(p Position) bool {
	for _, cell := range p.Pieces[p.Turn] {
		if len(r.LegalDestinations(p, cell, p.Turn)) > 0 {
			return true
		}
	}
	return false
}

// IsFinished reports whether the game is over at p, and the winner if
// so. A side that has exited all of its pieces wins; a side to move
// with no legal action wins (being immobilized wins in Dodgem). Draw
// by repetition is a property of the play loop, not of a position, and
// is not decided here.
func (r *Rules) IsFinished(p Position) (bool, Side) {
	if len(p.Pieces[First]) == 0 {
		return true, First
	}
	if len(p.Pieces[Second]) == 0 {
		return true, Second
	}
	if !r.HasLegalMove(p) {
		return true, p.Turn
	}
	return false, First
}
