package eval

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/sekika/dodgem/game"
)

// MinLevel and MaxLevel bound the playing strength schedule. Level 1
// is a shallow randomized search; level 4 answers from the exact
// database.
const (
	MinLevel = 1
	MaxLevel = 4
)

// randIntn is swapped out in tests for determinism.
var randIntn = frand.Intn

// randRange returns a uniform value in [lo, hi].
func randRange(lo, hi int) int {
	return lo + randIntn(hi-lo+1)
}

// planFor translates a strength level into a search plan. The depth
// schedule depends on the board size, how many moves have been played
// and how much material remains, so that deep searches are spent where
// they matter.
func (e *Evaluator) planFor(level, moveCount, remain int) (searchPlan, error) {
	n := e.rules.Size()
	plan := searchPlan{useEvalmap: true}
	switch level {
	case 1:
		plan.useEvalmap = false
		plan.depth = randRange(1, 7)
	case 2:
		switch n {
		case 3:
			plan.useEvalmap = false
			plan.depth = randRange(6, 10)
		case 4:
			if moveCount < 8 {
				plan.depth = 1
				break
			}
			plan.useEvalmap = false
			if remain > 12 {
				plan.depth = randRange(6, 11)
			} else {
				plan.depth = 30
			}
		default:
			if moveCount < 10 {
				plan.depth = 1
			} else if remain < 15 {
				plan.depth = 10
			} else {
				plan.depth = 4
			}
		}
	case 3:
		switch n {
		case 3:
			plan.depth = 5
		case 4:
			if remain < 15 {
				plan.depth = 40
			} else {
				plan.depth = randRange(12, 18)
			}
		default:
			if moveCount < 3 {
				plan.depth = 1
			} else if remain < 15 {
				plan.depth = 40
			} else {
				plan.depth = 13 - remain/5
			}
		}
	case 4:
		if e.db == nil {
			return searchPlan{}, fmt.Errorf("eval: level %d requires a position store", level)
		}
		plan.useStore = true
		plan.depth = 1
	default:
		return searchPlan{}, fmt.Errorf("eval: level %d not defined", level)
	}
	return plan, nil
}

// Candidates evaluates every successor of p at the given strength
// level and returns the ones with the best value for the player to
// move, along with that value from the opponent's perspective. When
// the shallowest search cannot separate moves, ties break on the
// remaining-material measure so that pieces keep advancing. Callers
// that track game history filter the set further before choosing.
func (e *Evaluator) Candidates(ctx context.Context, p game.Position, level, moveCount int) ([]game.Position, int, error) {
	plan, err := e.planFor(level, moveCount, e.rules.Remain(p))
	if err != nil {
		return nil, 0, err
	}
	e.cache.reset()
	children := e.rules.NextPositions(p)
	if len(children) == 0 {
		return nil, 0, ErrNoMoves
	}
	minEval := Win + 2
	var best []game.Position
	for _, child := range children {
		v, err := e.evaluate(ctx, child, plan)
		if err != nil {
			return nil, 0, err
		}
		if plan.depth == 1 && v > -Win && v < Win {
			v = e.rules.Remain(child)
		}
		if v < minEval {
			minEval = v
			best = best[:0]
		}
		if v == minEval {
			best = append(best, child)
		}
	}
	return best, minEval, nil
}

// SelectMove picks one of the best successors of p uniformly at
// random. A proven loss narrows the choice to the moves shedding
// material fastest.
func (e *Evaluator) SelectMove(ctx context.Context, p game.Position, level, moveCount int) (game.Position, int, error) {
	best, minEval, err := e.Candidates(ctx, p, level, moveCount)
	if err != nil {
		return game.Position{}, 0, err
	}
	if minEval >= Win {
		best = MinRemain(e.rules, best)
		log.Debug().
			Str("position", p.Key()).
			Int("value", minEval).
			Msg("all-moves-lose")
	}
	return best[randIntn(len(best))], minEval, nil
}

// MinRemain keeps only the positions with the least remaining
// material.
func MinRemain(rules *game.Rules, positions []game.Position) []game.Position {
	if len(positions) == 0 {
		return positions
	}
	min := rules.Remain(positions[0])
	for _, p := range positions[1:] {
		if r := rules.Remain(p); r < min {
			min = r
		}
	}
	kept := positions[:0]
	for _, p := range positions {
		if rules.Remain(p) == min {
			kept = append(kept, p)
		}
	}
	return kept
}
