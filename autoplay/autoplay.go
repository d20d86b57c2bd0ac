// Package autoplay runs engine-vs-engine games, applying the
// repetition draw rule that the position evaluator itself does not
// know about.
package autoplay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/sekika/dodgem/eval"
	"github.com/sekika/dodgem/game"
)

// DefaultDrawRepetition is how many times one player may recreate the
// same position before the game is scored a draw.
const DefaultDrawRepetition = 3

var randIntn = frand.Intn

// Result is the outcome of one game.
type Result struct {
	Winner game.Side
	Draw   bool
	Moves  int
	// History holds one key per move, keyed by the player who made it,
	// plus the opening position.
	History []string
}

// Stats aggregates a series of games.
type Stats struct {
	Games      int
	FirstWins  int
	SecondWins int
	Draws      int
}

// Runner plays games between two configured strength levels.
type Runner struct {
	rules          *game.Rules
	evaluator      *eval.Evaluator
	levels         [2]int
	drawRepetition int
}

type Option func(*Runner)

func WithDrawRepetition(n int) Option {
	return func(r *Runner) {
		if n > 1 {
			r.drawRepetition = n
		}
	}
}

// New returns a runner where levels[0] plays First and levels[1] plays
// Second. Level 4 needs an evaluator constructed with a store.
func New(rules *game.Rules, evaluator *eval.Evaluator, levels [2]int, opts ...Option) *Runner {
	r := &Runner{
		rules:          rules,
		evaluator:      evaluator,
		levels:         levels,
		drawRepetition: DefaultDrawRepetition,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// moverKey keys a position by the player who produced it instead of
// the player to move. Repetition tracking counts how often the same
// player recreates the same arrangement.
func moverKey(p game.Position, mover game.Side) string {
	p.Turn = mover
	return p.Key()
}

// PlayGame plays one game from the opening. Among equally valued moves
// the runner prefers ones not seen before in this game; when every
// candidate repeats, the least repeated are kept and the game is a
// draw once a position would recur for the configured count.
func (r *Runner) PlayGame(ctx context.Context) (Result, error) {
	p := r.rules.InitialPosition()
	history := []string{p.Key()}
	var res Result

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		mover := p.Turn
		best, minEval, err := r.evaluator.Candidates(ctx, p, r.levels[mover], len(history))
		if err != nil {
			return res, fmt.Errorf("move %d: %w", res.Moves+1, err)
		}

		best, drawNow := r.filterRepeats(best, history, mover)
		if minEval >= eval.Win {
			best = eval.MinRemain(r.rules, best)
		}
		next := best[randIntn(len(best))]
		history = append(history, moverKey(next, mover))
		res.Moves++
		p = next

		if drawNow {
			res.Draw = true
			break
		}
		if finished, winner := r.rules.IsFinished(p); finished {
			res.Winner = winner
			break
		}
	}
	res.History = history
	return res, nil
}

// filterRepeats restricts candidates to unseen positions when any
// exist; otherwise it keeps the least repeated ones and reports
// whether choosing one of them ends the game as a draw.
func (r *Runner) filterRepeats(candidates []game.Position, history []string, mover game.Side) ([]game.Position, bool) {
	var fresh []game.Position
	for _, c := range candidates {
		if countOf(history, moverKey(c, mover)) == 0 {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) > 0 {
		return fresh, false
	}

	minCount := -1
	var least []game.Position
	for _, c := range candidates {
		count := countOf(history, moverKey(c, mover))
		switch {
		case minCount < 0 || count < minCount:
			minCount = count
			least = []game.Position{c}
		case count == minCount:
			least = append(least, c)
		}
	}
	return least, minCount >= r.drawRepetition-1
}

func countOf(history []string, key string) int {
	count := 0
	for _, h := range history {
		if h == key {
			count++
		}
	}
	return count
}

// PlayGames plays count games back to back and aggregates the
// outcomes.
func (r *Runner) PlayGames(ctx context.Context, count int) (Stats, error) {
	var stats Stats
	for i := 0; i < count; i++ {
		res, err := r.PlayGame(ctx)
		if err != nil {
			return stats, err
		}
		stats.Games++
		switch {
		case res.Draw:
			stats.Draws++
		case res.Winner == game.First:
			stats.FirstWins++
		default:
			stats.SecondWins++
		}
		log.Debug().Int("game", i+1).Int("moves", res.Moves).
			Bool("draw", res.Draw).Stringer("winner", res.Winner).
			Msg("game-finished")
	}
	log.Info().Int("n", r.rules.Size()).
		Int("level-first", r.levels[game.First]).
		Int("level-second", r.levels[game.Second]).
		Int("games", stats.Games).
		Int("first-wins", stats.FirstWins).
		Int("second-wins", stats.SecondWins).
		Int("draws", stats.Draws).
		Msg("series-finished")
	return stats, nil
}
