// Package eval implements depth-limited negamax evaluation of dodgem
// positions, layered over a precomputed evaluation map and an exact
// position store.
package eval

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"

	"github.com/sekika/dodgem/evalmap"
	"github.com/sekika/dodgem/game"
	"github.com/sekika/dodgem/store"
)

// Win is the magnitude of a proven win or loss. A position with no
// legal move scores Win+1 for the player to move, slightly better than
// winning by exiting every piece.
const Win = 100

// undetermined ranks between a proven loss and every genuine value in
// bounded sweeps. Genuine values are 0 or at least Win in magnitude,
// so the sentinel can never collide with one.
const undetermined = -1

var ErrNoMoves = errors.New("no legal moves")

// Evaluator evaluates positions for one board size. The evaluation map
// is swapped atomically by Reload; it is never mutated in place.
// Provisional search results go to an internal memo instead.
type Evaluator struct {
	rules *game.Rules
	emap  atomic.Pointer[evalmap.Map]
	db    *store.DB
	cache *memoCache
}

type Option func(*Evaluator)

// WithStore makes full evaluation consult exact values from the
// position store before searching. This is the highest tier: store
// errors surface to the caller instead of degrading to search.
func WithStore(db *store.DB) Option {
	return func(e *Evaluator) { e.db = db }
}

func WithEvalmap(m *evalmap.Map) Option {
	return func(e *Evaluator) { e.emap.Store(m) }
}

func New(rules *game.Rules, opts ...Option) *Evaluator {
	e := &Evaluator{
		rules: rules,
		cache: newMemoCache(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Rules() *game.Rules { return e.rules }

// Reload swaps in a new evaluation map. Searches in flight keep the
// map they started with.
func (e *Evaluator) Reload(m *evalmap.Map) {
	e.emap.Store(m)
}

// searchPlan controls which lookup layers a search may use.
type searchPlan struct {
	depth      int
	useStore   bool
	useEvalmap bool
}

// Evaluate returns the value of p from the perspective of the player
// to move, searching depth plies. Exact values from the store (when
// configured) and evaluation map entries at sufficient depth short
// circuit the search.
func (e *Evaluator) Evaluate(ctx context.Context, p game.Position, depth int) (int, error) {
	return e.evaluate(ctx, p, searchPlan{
		depth:      depth,
		useStore:   e.db != nil,
		useEvalmap: true,
	})
}

// lookup consults the memo and, when permitted, the evaluation map for
// a value established at the requested depth or deeper.
func (e *Evaluator) lookup(plan searchPlan, key string, depth int) (int, bool) {
	if v, ok := e.cache.get(key, depth); ok {
		return v, true
	}
	if plan.useEvalmap {
		if entry, ok := e.emap.Load().Lookup(key); ok && entry.Depth >= depth {
			return entry.Value, true
		}
	}
	return 0, false
}

func (e *Evaluator) evaluate(ctx context.Context, p game.Position, plan searchPlan) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	key := p.Key()
	if plan.useStore {
		rec, ok, err := e.db.GetEval(ctx, e.rules.Size(), key)
		if err != nil {
			return 0, err
		}
		if ok && rec.HasValue {
			return rec.Value, nil
		}
	}
	if v, ok := e.lookup(plan, key, plan.depth); ok {
		return v, nil
	}
	if len(p.Pieces[p.Turn]) == 0 {
		return Win, nil
	}
	if len(p.Pieces[p.Turn.Opponent()]) == 0 {
		return -Win, nil
	}
	children := e.rules.NextPositions(p)
	if len(children) == 0 {
		return Win + 1, nil
	}
	if plan.depth < 1 {
		return e.leafValue(p), nil
	}
	childPlan := plan
	childPlan.depth = plan.depth - 1
	minEval := Win + 1
	for _, child := range children {
		ckey := child.Key()
		v, ok := e.lookup(childPlan, ckey, childPlan.depth)
		if !ok {
			var err error
			v, err = e.evaluate(ctx, child, childPlan)
			if err != nil {
				return 0, err
			}
			if err := e.cache.put(ckey, v, childPlan.depth); err != nil {
				return 0, err
			}
		}
		if v <= -Win {
			return -v, nil
		}
		if v < minEval {
			minEval = v
		}
	}
	return -minEval, nil
}

// leafValue scores a position at the search horizon. Each piece
// contributes its distance to the exit edge, plus one when the square
// directly ahead is held by the opponent. The net advantage is doubled
// and offset by one so that a leaf value can never be confused with
// the zero of a proven draw.
func (e *Evaluator) leafValue(p game.Position) int {
	n := e.rules.Size()
	adv := 0
	for _, cell := range p.Pieces[game.Second] {
		adv -= 1 + cell/n
		if slices.Contains(p.Pieces[game.First], cell-n) {
			adv--
		}
	}
	for _, cell := range p.Pieces[game.First] {
		adv += n - cell%n
		if cell%n < n-1 && slices.Contains(p.Pieces[game.Second], cell+1) {
			adv++
		}
	}
	if p.Turn == game.First {
		return 1 - 2*adv
	}
	return 1 + 2*adv
}

// EvaluateSimple is the bounded sweep used when building the exact
// database. Unlike Evaluate it never falls back to the leaf heuristic:
// when the horizon runs out before the position resolves it reports
// determined=false. A position repeating within the current line is a
// draw. Child values come from the store when already solved there.
func (e *Evaluator) EvaluateSimple(ctx context.Context, p game.Position, depth int) (value int, determined bool, err error) {
	if e.db == nil {
		return 0, false, errors.New("eval: simple evaluation requires a store")
	}
	v, err := e.simple(ctx, p, depth, nil)
	if err != nil {
		return 0, false, err
	}
	if v == undetermined {
		return 0, false, nil
	}
	return v, true, nil
}

func (e *Evaluator) simple(ctx context.Context, p game.Position, depth int, path []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	key := p.Key()
	if slices.Contains(path, key) {
		return 0, nil
	}
	if depth < 0 {
		return undetermined, nil
	}
	if len(p.Pieces[p.Turn]) == 0 {
		return Win, nil
	}
	if len(p.Pieces[p.Turn.Opponent()]) == 0 {
		return -Win, nil
	}
	children := e.rules.NextPositions(p)
	if len(children) == 0 {
		return Win + 1, nil
	}
	childPath := make([]string, len(path), len(path)+1)
	copy(childPath, path)
	childPath = append(childPath, key)
	minEval := Win + 2
	for _, child := range children {
		rec, ok, err := e.db.GetEval(ctx, e.rules.Size(), child.Key())
		if err != nil {
			return 0, err
		}
		var v int
		if ok && rec.HasValue {
			v = rec.Value
		} else {
			v, err = e.simple(ctx, child, depth-1, childPath)
			if err != nil {
				return 0, err
			}
		}
		if v < minEval {
			minEval = v
		}
	}
	if minEval == undetermined {
		return undetermined, nil
	}
	return -minEval, nil
}
