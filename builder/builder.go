// Package builder constructs the exact evaluation database for a board
// size: first an index of reachable positions bucketed by (depth,
// remain), then a per-cohort resolution pass that assigns every
// position a proven value.
package builder

import (
	"github.com/sekika/dodgem/eval"
	"github.com/sekika/dodgem/game"
	"github.com/sekika/dodgem/store"
)

// Builder drives a database build. Builds are resumable: finished
// remain cohorts and depth layers are recorded in the store and skipped
// on re-run.
type Builder struct {
	rules *game.Rules
	db    *store.DB
	eval  *eval.Evaluator

	workers          int
	unresolvedAsDraw bool
	schedule         []int
}

type Option func(*Builder)

// WithWorkers sets how many positions of one bucket are resolved
// concurrently. The default is serial.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithResearchSchedule overrides the horizons used to re-search
// undetermined positions. The default schedule adapts to the worklist
// size.
func WithResearchSchedule(depths []int) Option {
	return func(b *Builder) {
		if len(depths) > 0 {
			b.schedule = depths
		}
	}
}

// WithUnresolvedAsDraw records positions still undetermined after the
// re-search schedule as draws instead of leaving them unresolved. This
// reproduces the historical database layout; the residue is reported
// either way.
func WithUnresolvedAsDraw() Option {
	return func(b *Builder) { b.unresolvedAsDraw = true }
}

func New(rules *game.Rules, db *store.DB, opts ...Option) *Builder {
	b := &Builder{
		rules:   rules,
		db:      db,
		eval:    eval.New(rules, eval.WithStore(db)),
		workers: 1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}
