package builder

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sekika/dodgem/eval"
	"github.com/sekika/dodgem/game"
	"github.com/sekika/dodgem/store"
)

// initialSweepDepth is the shallow horizon tried for every position of
// a bucket before it lands on the re-search worklist.
const initialSweepDepth = 2

// Build creates the complete evaluation database: the depth index
// followed by one resolution pass per remain cohort, in increasing
// remain order so that every successor of a cohort is already solved or
// at least indexed. A cohort whose summary document exists is skipped,
// making an interrupted build resumable.
func (b *Builder) Build(ctx context.Context) error {
	n := b.rules.Size()
	if err := b.BuildDepthIndex(ctx); err != nil {
		return err
	}
	for remain := 1; remain <= b.rules.MaxRemain(); remain++ {
		summary, done, err := b.db.RemainSummary(ctx, n, remain)
		if err != nil {
			return err
		}
		if !done {
			summary, err = b.buildCohort(ctx, remain)
			if err != nil {
				return fmt.Errorf("remain %d: %w", remain, err)
			}
		}
		log.Info().Int("n", n).Int("remain", remain).
			Int("positions", summary.Positions).
			Int("win", summary.Win).
			Int("unresolved", summary.Unresolved).
			Msg("remain-cohort-done")
	}
	if err := b.resolveDraws(ctx); err != nil {
		return err
	}
	log.Info().Int("n", n).Msg("database-build-complete")
	return nil
}

// cohortState accumulates results of one remain cohort across its
// depth buckets.
type cohortState struct {
	mu           sync.Mutex
	positions    int
	win          int
	undetermined map[string]bool
}

// buildCohort resolves every position whose remain measure equals
// remain. Each depth bucket gets a shallow sweep first; whatever stays
// undetermined is re-searched with progressively deeper horizons, the
// schedule depending on how much is left.
func (b *Builder) buildCohort(ctx context.Context, remain int) (store.RemainSummary, error) {
	n := b.rules.Size()
	state := &cohortState{undetermined: make(map[string]bool)}
	for depth := 0; depth <= b.rules.MaxDepth(); depth++ {
		if err := b.sweepBucket(ctx, depth, remain, state); err != nil {
			return store.RemainSummary{}, err
		}
	}

	schedule := b.schedule
	if schedule == nil {
		schedule = researchSchedule(len(state.undetermined))
	}
	for _, depth := range schedule {
		if len(state.undetermined) == 0 {
			break
		}
		log.Debug().Int("n", n).Int("remain", remain).
			Int("undetermined", len(state.undetermined)).
			Int("depth", depth).
			Msg("re-search")
		if err := b.research(ctx, remain, depth, state); err != nil {
			return store.RemainSummary{}, err
		}
	}

	unresolved := len(state.undetermined)
	if b.unresolvedAsDraw && unresolved > 0 {
		// residue that never resolves is cyclic play; record it as drawn
		for key := range state.undetermined {
			rec, ok, err := b.db.GetEval(ctx, n, key)
			if err != nil {
				return store.RemainSummary{}, err
			}
			if !ok {
				return store.RemainSummary{}, fmt.Errorf("undetermined key %q has no record", key)
			}
			if err := b.db.PutEval(ctx, n, key, store.Resolved(0, rec.Depth, remain)); err != nil {
				return store.RemainSummary{}, err
			}
		}
		log.Info().Int("n", n).Int("remain", remain).Int("draws", unresolved).
			Msg("unresolved-recorded-as-draws")
		unresolved = 0
	}

	summary := store.RemainSummary{
		Positions:  state.positions,
		Win:        state.win,
		Unresolved: unresolved,
	}
	return summary, b.db.SetRemainSummary(ctx, n, remain, summary)
}

// sweepBucket runs the shallow sweep over one (depth, remain) bucket.
// Positions solved earlier are only counted; the rest are evaluated and
// either resolved in place or queued for re-search.
func (b *Builder) sweepBucket(ctx context.Context, depth, remain int, state *cohortState) error {
	n := b.rules.Size()
	keys, _, err := b.db.Bucket(ctx, n, depth, remain)
	if err != nil {
		return err
	}
	state.positions += len(keys)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, key := range keys {
		g.Go(func() error {
			rec, ok, err := b.db.GetEval(gctx, n, key)
			if err != nil {
				return err
			}
			if ok && rec.HasValue {
				if abs(rec.Value) >= eval.Win {
					state.mu.Lock()
					state.win++
					state.mu.Unlock()
				}
				return nil
			}
			p, err := game.ParseKey(key)
			if err != nil {
				return err
			}
			v, determined, err := b.eval.EvaluateSimple(gctx, p, initialSweepDepth)
			if err != nil {
				return err
			}
			if !determined {
				rec := store.EvalRecord{Depth: depth, Remain: remain}
				if err := b.db.PutEval(gctx, n, key, rec); err != nil {
					return err
				}
				state.mu.Lock()
				state.undetermined[key] = true
				state.mu.Unlock()
				return nil
			}
			if err := b.db.PutEval(gctx, n, key, store.Resolved(v, depth, b.rules.Remain(p))); err != nil {
				return err
			}
			if abs(v) >= eval.Win {
				state.mu.Lock()
				state.win++
				state.mu.Unlock()
			}
			return nil
		})
	}
	return g.Wait()
}

// research retries every undetermined position of the cohort at the
// given horizon, removing the ones that resolve.
func (b *Builder) research(ctx context.Context, remain, depth int, state *cohortState) error {
	n := b.rules.Size()
	pending := make([]string, 0, len(state.undetermined))
	for key := range state.undetermined {
		pending = append(pending, key)
	}
	sort.Strings(pending)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for _, key := range pending {
		g.Go(func() error {
			p, err := game.ParseKey(key)
			if err != nil {
				return err
			}
			v, determined, err := b.eval.EvaluateSimple(gctx, p, depth)
			if err != nil {
				return err
			}
			if !determined {
				return nil
			}
			rec, ok, err := b.db.GetEval(gctx, n, key)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("undetermined key %q has no record", key)
			}
			if rec.HasValue && rec.Value != v {
				return fmt.Errorf("%w: key %s: stored %d, re-search found %d",
					eval.ErrValueConflict, key, rec.Value, v)
			}
			// the position keeps the depth it was indexed at
			if err := b.db.PutEval(gctx, n, key, store.Resolved(v, rec.Depth, remain)); err != nil {
				return err
			}
			state.mu.Lock()
			delete(state.undetermined, key)
			if abs(v) >= eval.Win {
				state.win++
			}
			state.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// researchSchedule picks the horizons for the re-search rounds. Small
// worklists can afford deep retries; very large ones get only shallow
// ones, leaving the residue to later cohorts or the draw rule.
func researchSchedule(undetermined int) []int {
	switch {
	case undetermined < 5000:
		return []int{2, 2, 2, 3, 3, 3, 5, 5, 7, 9}
	case undetermined < 10000:
		return []int{2, 2, 2, 3, 3, 3, 5, 5, 7}
	case undetermined < 100000:
		return []int{2, 2, 2, 3, 3, 3, 5, 5}
	case undetermined < 500000:
		return []int{2, 2, 3, 3, 3, 4, 4}
	case undetermined < 700000:
		return []int{2, 2, 3, 3, 3, 4}
	default:
		return []int{2, 2, 3}
	}
}

// resolveDraws pins the known repetition cycles of the 3x3 game to
// draws so that database-backed play never walks into one.
func (b *Builder) resolveDraws(ctx context.Context) error {
	n := b.rules.Size()
	for _, key := range game.ForcedDrawKeys(n) {
		rec, ok, err := b.db.GetEval(ctx, n, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("forced draw key %q not in database", key)
		}
		if err := b.db.PutEval(ctx, n, key, store.Resolved(0, rec.Depth, rec.Remain)); err != nil {
			return err
		}
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
