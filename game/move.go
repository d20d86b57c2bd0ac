package game

import (
	"fmt"
	"strconv"
)

// MoveDescription derives a human-readable move string, such as "5-6"
// or "3-X" (X meaning the piece exited), from two adjacent positions.
func MoveDescription(prev, curr Position) string {
	side := First
	if equalCells(prev.Pieces[First], curr.Pieces[First]) {
		side = Second
	}
	from, to := -1, ExitCell
	for _, c := range prev.Pieces[side] {
		if !contains(curr.Pieces[side], c) {
			from = c
		}
	}
	for _, c := range curr.Pieces[side] {
		if !contains(prev.Pieces[side], c) {
			to = c
		}
	}
	if from < 0 {
		return "?"
	}
	if to == ExitCell {
		return fmt.Sprintf("%d-X", from)
	}
	return strconv.Itoa(from) + "-" + strconv.Itoa(to)
}

func equalCells(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
