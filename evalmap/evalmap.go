// Package evalmap exports a curated subset of the exact evaluation
// database into a single compressed artifact, and loads that artifact
// back into an immutable in-memory map. Computation levels 1-3 play
// from this map alone, with no store connectivity.
package evalmap

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"

	"github.com/sekika/dodgem/game"
	"github.com/sekika/dodgem/store"
)

// Entry is the reduced evaluation record kept in the artifact,
// serialized as the two-element array [value, depth].
type Entry struct {
	Value int
	Depth int
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{e.Value, e.Depth})
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var arr []int
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	if len(arr) != 2 {
		return fmt.Errorf("evalmap entry: want [value,depth], got %d elements", len(arr))
	}
	e.Value = arr[0]
	e.Depth = arr[1]
	return nil
}

// Map is an immutable canonical-key lookup for one board size.
type Map struct {
	n       int
	entries map[string]Entry
}

// NewMap builds a map from already-selected entries. The caller must
// not mutate entries afterwards.
func NewMap(n int, entries map[string]Entry) *Map {
	return &Map{n: n, entries: entries}
}

// Lookup returns the entry for a canonical position key.
func (m *Map) Lookup(key string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	e, ok := m.entries[key]
	return e, ok
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// N returns the board size the map was loaded for.
func (m *Map) N() int {
	return m.n
}

// Policy selects which records of the persisted database enter the
// artifact: minimum established depth, minimum remain, and a frontier
// offset constraining depth-remain, chosen per board size so the
// artifact stays comfortably in memory.
type Policy struct {
	MinDepth  int
	MinRemain int
	// MaxSide offsets the depth-remain frontier: only records with
	// depth-remain >= maxDepth-maxRemain-MaxSide are kept.
	MaxSide int
}

// DefaultPolicies are the selection thresholds the distributed artifact
// is built with.
var DefaultPolicies = map[int]Policy{
	3: {MinDepth: 10, MinRemain: 7, MaxSide: 5},
	4: {MinDepth: 15, MinRemain: 12, MaxSide: 10},
	5: {MinDepth: 30, MinRemain: 15, MaxSide: 2},
}

// rough per-entry footprint used only for the memory sanity check
const approxEntryBytes = 96

// Load reads the artifact at path and returns the map for board size
// n. The decompressed form is one JSON object keyed by board size, so
// a single pass parses everything.
func Load(path string, n int) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open evalmap: %w", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("evalmap %s: %w", path, err)
	}
	defer zr.Close()

	var sections map[string]map[string]Entry
	if err := json.NewDecoder(zr).Decode(&sections); err != nil {
		return nil, fmt.Errorf("evalmap %s: %w", path, err)
	}
	entries, ok := sections[strconv.Itoa(n)]
	if !ok {
		return nil, fmt.Errorf("evalmap %s has no data for board size %d", path, n)
	}
	if footprint := uint64(len(entries)) * approxEntryBytes; footprint > memory.TotalMemory()/2 {
		log.Warn().Int("entries", len(entries)).Uint64("approx-bytes", footprint).
			Msg("evalmap-close-to-physical-memory")
	}
	log.Debug().Int("n", n).Int("entries", len(entries)).Str("path", path).Msg("evalmap-loaded")
	return &Map{n: n, entries: entries}, nil
}

// Create scans the persisted evaluation collections and writes the
// artifact at path: gzip-compressed JSON mapping board size to a
// canonical-key section selected by that size's policy.
func Create(ctx context.Context, db *store.DB, path string, policies map[int]Policy) error {
	sections := make(map[string]map[string]Entry, len(policies))
	sizes := make([]int, 0, len(policies))
	for n := range policies {
		sizes = append(sizes, n)
	}
	sort.Ints(sizes)
	for _, n := range sizes {
		section, err := selectSection(ctx, db, n, policies[n])
		if err != nil {
			return err
		}
		sections[strconv.Itoa(n)] = section
		log.Info().Int("n", n).Int("entries", len(section)).Msg("evalmap-section-selected")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create evalmap: %w", err)
	}
	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(sections); err != nil {
		f.Close()
		return fmt.Errorf("write evalmap: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("write evalmap: %w", err)
	}
	return f.Close()
}

func selectSection(ctx context.Context, db *store.DB, n int, policy Policy) (map[string]Entry, error) {
	rules, err := game.NewRules(n)
	if err != nil {
		return nil, err
	}
	// records at the frontier of the depth walk carry little depth
	// relative to their remain; the offset keeps them out
	frontier := rules.MaxDepth() - rules.MaxRemain() - policy.MaxSide

	section := make(map[string]Entry)
	records := 0
	err = db.ScanEvals(ctx, n, func(key string, rec store.EvalRecord) error {
		records++
		if !rec.HasValue || rec.Value == 0 {
			return nil
		}
		if rec.Depth < policy.MinDepth || rec.Remain < policy.MinRemain {
			return nil
		}
		if rec.Depth-rec.Remain < frontier {
			return nil
		}
		section[key] = Entry{Value: rec.Value, Depth: rec.Depth}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// a size that was never built exports an empty section
	if records == 0 {
		return section, nil
	}
	// pinned with maximal depth so no shallower search result can
	// shadow them
	for _, key := range game.ForcedDrawKeys(n) {
		section[key] = Entry{Value: 0, Depth: rules.MaxDepth()}
	}
	return section, nil
}
