package autoplay

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/sekika/dodgem/builder"
	"github.com/sekika/dodgem/eval"
	"github.com/sekika/dodgem/game"
	"github.com/sekika/dodgem/store"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

func rules3(t *testing.T) *game.Rules {
	t.Helper()
	r, err := game.NewRules(3)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestPlayGameShallowLevels(t *testing.T) {
	is := is.New(t)
	r := rules3(t)
	runner := New(r, eval.New(r), [2]int{1, 1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	res, err := runner.PlayGame(ctx)
	is.NoErr(err)
	is.True(res.Moves > 0)
	is.Equal(len(res.History), res.Moves+1)
	is.Equal(res.History[0], r.InitialPosition().Key())
	if !res.Draw {
		is.True(res.Winner == game.First || res.Winner == game.Second)
	}
}

func TestPlayGamesAggregates(t *testing.T) {
	is := is.New(t)
	r := rules3(t)
	runner := New(r, eval.New(r), [2]int{1, 2})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	stats, err := runner.PlayGames(ctx, 5)
	is.NoErr(err)
	is.Equal(stats.Games, 5)
	is.Equal(stats.FirstWins+stats.SecondWins+stats.Draws, 5)
}

func TestPerfectPlayFirstWins(t *testing.T) {
	is := is.New(t)
	r := rules3(t)
	db := store.New(store.NewMemory())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	is.NoErr(builder.New(r, db).Build(ctx))

	// the 3x3 opening is a forced win for the first player. With exact
	// values on both sides and the repetition breakers pinned to draws,
	// every game converts within a short, bounded line.
	runner := New(r, eval.New(r, eval.WithStore(db)), [2]int{4, 4})
	for i := 0; i < 3; i++ {
		res, err := runner.PlayGame(ctx)
		is.NoErr(err)
		is.True(!res.Draw)
		is.Equal(res.Winner, game.First)
		is.True(res.Moves <= 13)
	}
}

func TestLevelFourNeedsStore(t *testing.T) {
	is := is.New(t)
	r := rules3(t)
	runner := New(r, eval.New(r), [2]int{4, 4})
	_, err := runner.PlayGame(context.Background())
	is.True(err != nil)
}

func TestFilterRepeats(t *testing.T) {
	is := is.New(t)
	r := rules3(t)
	runner := New(r, eval.New(r), [2]int{1, 1})

	p := r.InitialPosition()
	candidates := r.NextPositions(p)

	// nothing played yet: every candidate is fresh
	kept, draw := runner.filterRepeats(candidates, []string{p.Key()}, p.Turn)
	is.Equal(len(kept), len(candidates))
	is.Equal(draw, false)

	// all candidates seen once: kept, not yet a draw
	history := []string{p.Key()}
	for _, c := range candidates {
		history = append(history, moverKey(c, p.Turn))
	}
	kept, draw = runner.filterRepeats(candidates, history, p.Turn)
	is.Equal(len(kept), len(candidates))
	is.Equal(draw, false)

	// seen twice: choosing any of them is the third occurrence
	for _, c := range candidates {
		history = append(history, moverKey(c, p.Turn))
	}
	_, draw = runner.filterRepeats(candidates, history, p.Turn)
	is.Equal(draw, true)
}
