package docconv

import "strings"

// Shared markdown assembly helpers used by the converter variants.

// writeHeading appends an ATX heading, clamping the level to 1..6.
func writeHeading(sb *strings.Builder, level int, text string) {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	sb.WriteString(strings.Repeat("#", level))
	sb.WriteByte(' ')
	sb.WriteString(strings.TrimSpace(text))
	sb.WriteString("\n\n")
}

// writeTable appends a pipe table. The first row is the header; all
// rows are padded to the widest row so the table stays balanced.
func writeTable(sb *strings.Builder, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	if width == 0 {
		return
	}

	writeRow := func(cells []string) {
		sb.WriteByte('|')
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(cells) {
				cell = escapeCell(cells[i])
			}
			sb.WriteByte(' ')
			sb.WriteString(cell)
			sb.WriteString(" |")
		}
		sb.WriteByte('\n')
	}

	writeRow(rows[0])
	sb.WriteByte('|')
	for i := 0; i < width; i++ {
		sb.WriteString(" --- |")
	}
	sb.WriteByte('\n')
	for _, r := range rows[1:] {
		writeRow(r)
	}
	sb.WriteByte('\n')
}

// writeList appends a bullet list.
func writeList(sb *strings.Builder, items []string) {
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(it)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
}

// escapeCell neutralizes pipes and newlines inside a table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.TrimSpace(s)
}

// countWords is the word-count heuristic recorded in metadata.
func countWords(s string) int {
	return len(strings.Fields(s))
}
