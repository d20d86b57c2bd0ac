package game

import "strings"

var sideChars = [2]string{"▷", "▲"}

// DisplayText renders the board as text, for logs and the CLI.
func (r *Rules) DisplayText(p Position) string {
	var sb strings.Builder
	hor := "・" + strings.Repeat("━・", r.n)
	sb.WriteString(hor)
	sb.WriteByte('\n')
	for row := 0; row < r.n; row++ {
		sb.WriteString("┃")
		for col := 0; col < r.n; col++ {
			cell := row*r.n + col
			switch {
			case contains(p.Pieces[First], cell):
				sb.WriteString(sideChars[First])
			case contains(p.Pieces[Second], cell):
				sb.WriteString(sideChars[Second])
			default:
				sb.WriteString("　")
			}
			sb.WriteString("┃")
		}
		sb.WriteByte('\n')
		sb.WriteString(hor)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func contains(cells []int, cell int) bool {
	for _, c := range cells {
		if c == cell {
			return true
		}
	}
	return false
}
