package game

// forcedDraw3 are 3×3 positions rewritten as draws in the exact
// database. Even with complete analysis, perfect play on the 3×3 board
// runs into short cycles ending in threefold repetition; pinning these
// positions to 0 keeps database-backed play from walking into such
// cycles as if they were wins.
var forcedDraw3 = []string{
	"[[3,8],[4,6],1]",
	"[[2,3],[4,6],1]",
	"[[2,3],[4,8],1]",
}

// ForcedDrawKeys returns the canonical keys of positions whose stored
// value is pinned to a draw for the given board size.
func ForcedDrawKeys(n int) []string {
	if n == 3 {
		return forcedDraw3
	}
	return nil
}
