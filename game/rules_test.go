package game

import (
	"testing"

	"github.com/matryer/is"
)

func TestNewRules(t *testing.T) {
	is := is.New(t)
	for n, wantDepth := range map[int]int{3: 20, 4: 30, 5: 50} {
		r, err := NewRules(n)
		is.NoErr(err)
		is.Equal(r.Size(), n)
		is.Equal(r.MaxDepth(), wantDepth)
		is.Equal(r.MaxRemain(), 2*n*(n-1))
	}
	for _, n := range []int{0, 2, 6} {
		_, err := NewRules(n)
		is.True(err != nil)
	}
}

func TestInitialPosition(t *testing.T) {
	is := is.New(t)
	r, err := NewRules(3)
	is.NoErr(err)
	is.Equal(r.InitialPosition().Key(), "[[0,3],[7,8],0]")

	r4, err := NewRules(4)
	is.NoErr(err)
	is.Equal(r4.InitialPosition().Key(), "[[0,4,8],[13,14,15],0]")
	is.Equal(r4.Remain(r4.InitialPosition()), r4.MaxRemain())
}

func TestLegalDestinationsFirst(t *testing.T) {
	is := is.New(t)
	r, err := NewRules(3)
	is.NoErr(err)

	// First on 4 (center): forward right 5, up 1, down 7; never left.
	p, err := ParseKey("[[4],[8],0]")
	is.NoErr(err)
	is.Equal(r.LegalDestinations(p, 4, First), []int{5, 1, 7})

	// First piece on its exit edge: exit replaces the forward move,
	// lateral moves stay available.
	p, err = ParseKey("[[5],[1],0]")
	is.NoErr(err)
	is.Equal(r.LegalDestinations(p, 5, First), []int{ExitCell, 2, 8})

	// occupied cells block
	p, err = ParseKey("[[4,5],[1],0]")
	is.NoErr(err)
	is.Equal(r.LegalDestinations(p, 4, First), []int{7})
}

func TestLegalDestinationsSecond(t *testing.T) {
	is := is.New(t)
	r, err := NewRules(3)
	is.NoErr(err)

	// Second on 4 (center): forward up 1, left 3, right 5; never down.
	p, err := ParseKey("[[0],[4],1]")
	is.NoErr(err)
	is.Equal(r.LegalDestinations(p, 4, Second), []int{1, 3, 5})

	// Second piece on the top row exits instead of moving forward.
	p, err = ParseKey("[[0],[1],1]")
	is.NoErr(err)
	is.Equal(r.LegalDestinations(p, 1, Second), []int{ExitCell, 2})
}

func TestExitedPieceDoesNotBlock(t *testing.T) {
	is := is.New(t)
	r, err := NewRules(3)
	is.NoErr(err)

	// First exited its only piece; Second's piece on 2 sees an empty
	// board and keeps its full move set.
	p, err := ParseKey("[[],[5],1]")
	is.NoErr(err)
	is.Equal(r.LegalDestinations(p, 5, Second), []int{2, 4})
	for _, succ := range r.NextPositions(p) {
		is.Equal(len(succ.Pieces[First]), 0)
	}
}

func TestNextPositionsTurnAlternates(t *testing.T) {
	is := is.New(t)
	r, err := NewRules(4)
	is.NoErr(err)
	p := r.InitialPosition()
	next := r.NextPositions(p)
	is.True(len(next) > 0)
	seen := make(map[string]bool)
	for _, succ := range next {
		is.Equal(succ.Turn, Second)
		is.True(!seen[succ.Key()]) // deduplicated
		seen[succ.Key()] = true
	}
}

func TestRemainMonotonicNonIncrease(t *testing.T) {
	is := is.New(t)
	for _, n := range []int{3, 4} {
		r, err := NewRules(n)
		is.NoErr(err)
		frontier := []Position{r.InitialPosition()}
		for ply := 0; ply < 4; ply++ {
			var next []Position
			for _, p := range frontier {
				remain := r.Remain(p)
				for _, succ := range r.NextPositions(p) {
					is.True(r.Remain(succ) <= remain)
					next = append(next, succ)
				}
			}
			frontier = next
		}
	}
}

func TestImmobilizedSideWins(t *testing.T) {
	is := is.New(t)
	r, err := NewRules(3)
	is.NoErr(err)

	// First's piece on 0 is walled in by Second's pieces on 1 and 3.
	p, err := ParseKey("[[0],[1,3],0]")
	is.NoErr(err)
	is.True(!r.HasLegalMove(p))
	finished, winner := r.IsFinished(p)
	is.True(finished)
	is.Equal(winner, First)
}

func TestExitedAllPiecesWins(t *testing.T) {
	is := is.New(t)
	r, err := NewRules(3)
	is.NoErr(err)

	p, err := ParseKey("[[],[7,8],1]")
	is.NoErr(err)
	finished, winner := r.IsFinished(p)
	is.True(finished)
	is.Equal(winner, First)

	p, err = ParseKey("[[0,3],[],0]")
	is.NoErr(err)
	finished, winner = r.IsFinished(p)
	is.True(finished)
	is.Equal(winner, Second)
}

func TestGameNotFinishedAtStart(t *testing.T) {
	is := is.New(t)
	for _, n := range []int{3, 4, 5} {
		r, err := NewRules(n)
		is.NoErr(err)
		finished, _ := r.IsFinished(r.InitialPosition())
		is.True(!finished)
	}
}
