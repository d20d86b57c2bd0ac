package evalmap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/sekika/dodgem/store"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(m.Run())
}

func TestCreateAndLoad(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	db := store.New(store.NewMemory())

	// for n=3: maxDepth 20, maxRemain 12, policy {10, 7, 5} keeps
	// records with depth>=10, remain>=7, value!=0, depth-remain>=3
	keep := "[[1,3],[7,8],1]"
	is.NoErr(db.PutEval(ctx, 3, keep, store.Resolved(100, 15, 8)))
	shallow := "[[2,3],[7,8],0]"
	is.NoErr(db.PutEval(ctx, 3, shallow, store.Resolved(100, 9, 8)))
	lowRemain := "[[2],[7],0]"
	is.NoErr(db.PutEval(ctx, 3, lowRemain, store.Resolved(-100, 15, 4)))
	drawValued := "[[1,3],[7,8],0]"
	is.NoErr(db.PutEval(ctx, 3, drawValued, store.Resolved(0, 15, 8)))
	belowFrontier := "[[0,3],[7,8],1]"
	is.NoErr(db.PutEval(ctx, 3, belowFrontier, store.Resolved(100, 10, 8)))
	unresolved := "[[0,5],[7,8],0]"
	is.NoErr(db.PutEval(ctx, 3, unresolved, store.EvalRecord{Depth: 15, Remain: 8}))

	path := filepath.Join(t.TempDir(), "dodgem_eval.json.gz")
	is.NoErr(Create(ctx, db, path, map[int]Policy{3: DefaultPolicies[3]}))

	m, err := Load(path, 3)
	is.NoErr(err)
	is.Equal(m.N(), 3)

	e, ok := m.Lookup(keep)
	is.True(ok)
	is.Equal(e, Entry{Value: 100, Depth: 15})

	_, ok = m.Lookup(shallow)
	is.True(!ok)
	_, ok = m.Lookup(lowRemain)
	is.True(!ok)
	_, ok = m.Lookup(drawValued)
	is.True(!ok)
	_, ok = m.Lookup(belowFrontier)
	is.True(!ok)
	_, ok = m.Lookup(unresolved)
	is.True(!ok)

	// 3x3 forced draws are pinned with maximal depth
	e, ok = m.Lookup("[[3,8],[4,6],1]")
	is.True(ok)
	is.Equal(e, Entry{Value: 0, Depth: 20})

	// keep + 3 pinned draws
	is.Equal(m.Len(), 4)
}

func TestCreateSkipsUnbuiltSize(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	db := store.New(store.NewMemory())

	// nothing was built for 3x3, so nothing is exported for it, not
	// even the pinned repetition breakers
	path := filepath.Join(t.TempDir(), "dodgem_eval.json.gz")
	is.NoErr(Create(ctx, db, path, map[int]Policy{3: DefaultPolicies[3]}))

	m, err := Load(path, 3)
	is.NoErr(err)
	is.Equal(m.Len(), 0)
}

func TestLoadMissingSection(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	db := store.New(store.NewMemory())
	path := filepath.Join(t.TempDir(), "dodgem_eval.json.gz")
	is.NoErr(Create(ctx, db, path, map[int]Policy{4: DefaultPolicies[4]}))

	_, err := Load(path, 5)
	is.True(err != nil)

	m, err := Load(path, 4)
	is.NoErr(err)
	is.Equal(m.Len(), 0)
}

func TestLoadMissingFile(t *testing.T) {
	is := is.New(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.json.gz"), 3)
	is.True(err != nil)
}

func TestNilMapLookup(t *testing.T) {
	is := is.New(t)
	var m *Map
	_, ok := m.Lookup("[[0,3],[7,8],0]")
	is.True(!ok)
	is.Equal(m.Len(), 0)
}
