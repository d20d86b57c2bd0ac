package builder

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/sekika/dodgem/game"
	"github.com/sekika/dodgem/store"
)

// BuildDepthIndex enumerates every position reachable from the opening
// within the size's search horizon and stores it in (depth, remain)
// buckets, where depth counts plies left until the horizon. The walk
// descends one depth layer at a time: the candidates of layer d are the
// successors of every position in layer d+1. A position already indexed
// at a higher depth stays there; one indexed lower is promoted.
//
// A depth layer whose buckets exist is skipped entirely, so an
// interrupted build picks up where it stopped.
func (b *Builder) BuildDepthIndex(ctx context.Context) error {
	n := b.rules.Size()
	maxDepth := b.rules.MaxDepth()
	maxRemain := b.rules.MaxRemain()
	initial := b.rules.InitialPosition()

	if err := b.db.SetBucket(ctx, n, maxDepth, maxRemain, []string{initial.Key()}); err != nil {
		return err
	}

	total := 0
	for depth := maxDepth - 1; depth >= 0; depth-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, done, err := b.db.Bucket(ctx, n, depth, maxRemain)
		if err != nil {
			return err
		}
		if !done {
			if err := b.indexDepthLayer(ctx, depth); err != nil {
				return err
			}
		}
		positions, err := b.depthLayerTotal(ctx, depth)
		if err != nil {
			return err
		}
		total += positions
		log.Info().Int("n", n).Int("depth", depth).Int("positions", positions).
			Msg("depth-layer-indexed")
	}
	log.Info().Int("n", n).Int("positions", total).Msg("depth-index-complete")
	return nil
}

// indexDepthLayer generates the candidate positions of one depth layer
// from the layer above it and writes them into per-remain buckets.
func (b *Builder) indexDepthLayer(ctx context.Context, depth int) error {
	n := b.rules.Size()
	maxRemain := b.rules.MaxRemain()

	candidates := make(map[string]bool)
	for remain := 1; remain <= maxRemain; remain++ {
		keys, _, err := b.db.Bucket(ctx, n, depth+1, remain)
		if err != nil {
			return err
		}
		for _, key := range keys {
			p, err := game.ParseKey(key)
			if err != nil {
				return fmt.Errorf("depth %d remain %d: %w", depth+1, remain, err)
			}
			// a side with no pieces left ends the game; nothing follows
			if len(p.Pieces[game.First]) == 0 || len(p.Pieces[game.Second]) == 0 {
				continue
			}
			for _, succ := range b.rules.NextPositions(p) {
				candidates[succ.Key()] = true
			}
		}
	}

	ordered := make([]string, 0, len(candidates))
	for key := range candidates {
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)

	buckets := make(map[int][]string)
	for _, key := range ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, ok, err := b.db.GetEval(ctx, n, key)
		if err != nil {
			return err
		}
		var remain int
		switch {
		case ok && rec.Depth > depth:
			// already indexed closer to the horizon
			continue
		case ok && rec.Depth < depth:
			rec.Depth = depth
			if err := b.db.PutEval(ctx, n, key, rec); err != nil {
				return err
			}
			remain = rec.Remain
		case ok:
			p, err := game.ParseKey(key)
			if err != nil {
				return err
			}
			remain = b.rules.Remain(p)
		default:
			p, err := game.ParseKey(key)
			if err != nil {
				return err
			}
			remain = b.rules.Remain(p)
			rec := store.EvalRecord{Depth: depth, Remain: remain}
			if err := b.db.PutEval(ctx, n, key, rec); err != nil {
				return err
			}
		}
		buckets[remain] = append(buckets[remain], key)
	}

	for remain := 1; remain <= maxRemain; remain++ {
		if err := b.db.SetBucket(ctx, n, depth, remain, buckets[remain]); err != nil {
			return err
		}
	}
	return nil
}

// depthLayerTotal returns the position count of one depth layer,
// computing and storing it on first request.
func (b *Builder) depthLayerTotal(ctx context.Context, depth int) (int, error) {
	n := b.rules.Size()
	if positions, ok, err := b.db.DepthTotal(ctx, n, depth); err != nil || ok {
		return positions, err
	}
	sum := 0
	for remain := 1; remain <= b.rules.MaxRemain(); remain++ {
		keys, _, err := b.db.Bucket(ctx, n, depth, remain)
		if err != nil {
			return 0, err
		}
		sum += len(keys)
	}
	if err := b.db.SetDepthTotal(ctx, n, depth, sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// DepthCount is the position count of one (depth, remain) bucket.
type DepthCount struct {
	Depth  int
	Remain int
	Count  int
}

// Status reports how many positions each depth layer of the index
// holds. Counts come from the buckets themselves, not the cached
// totals, so the report reflects what is actually stored.
type Status struct {
	N         int
	Positions int
	ByDepth   map[int]int
	Buckets   []DepthCount
}

func (b *Builder) Status(ctx context.Context) (Status, error) {
	n := b.rules.Size()
	s := Status{N: n, ByDepth: make(map[int]int)}
	for depth := 0; depth <= b.rules.MaxDepth(); depth++ {
		for remain := 1; remain <= b.rules.MaxRemain(); remain++ {
			keys, ok, err := b.db.Bucket(ctx, n, depth, remain)
			if err != nil {
				return Status{}, err
			}
			if !ok || len(keys) == 0 {
				continue
			}
			s.Buckets = append(s.Buckets, DepthCount{Depth: depth, Remain: remain, Count: len(keys)})
			s.ByDepth[depth] += len(keys)
			s.Positions += len(keys)
		}
	}
	return s, nil
}
