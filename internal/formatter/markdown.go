// Package formatter renders record batches as signed markdown reports.
package formatter

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"blackwatch/pkg/metadata"
)

const minColumnWidth = 3

// FormatMarkdown pads every pipe table in content to equal display widths
// and re-signs the document with stamp.
func FormatMarkdown(content string, stamp metadata.Stamp) string {
	_, clean := metadata.Extract(content)

	var (
		out   []string
		table []string
	)

	flush := func() {
		if len(table) > 0 {
			out = append(out, alignTable(table)...)
			table = nil
		}
	}

	for _, line := range strings.Split(clean, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
			table = append(table, line)
			continue
		}

		flush()
		out = append(out, line)
	}

	flush()

	return metadata.Sign(strings.Join(out, "\n"), stamp)
}

// splitRow returns the trimmed cells of a table row. Escaped pipes stay
// inside their cell.
func splitRow(row string) []string {
	row = strings.TrimSpace(row)
	row = strings.TrimPrefix(row, "|")
	row = strings.TrimSuffix(row, "|")

	var (
		cells []string
		cur   strings.Builder
	)

	for i := 0; i < len(row); i++ {
		switch {
		case row[i] == '\\' && i+1 < len(row) && row[i+1] == '|':
			cur.WriteString(`\|`)
			i++
		case row[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(row[i])
		}
	}

	return append(cells, strings.TrimSpace(cur.String()))
}

func isDelimiterRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" || !strings.Contains(c, "-") {
			return false
		}
	}

	return len(cells) > 0
}

func alignTable(rows []string) []string {
	if len(rows) < 2 {
		return rows
	}

	table := make([][]string, len(rows))
	cols := 0

	for i, row := range rows {
		table[i] = splitRow(row)
		cols = max(cols, len(table[i]))
	}

	delim := -1
	if isDelimiterRow(table[1]) {
		delim = 1
	}

	widths := make([]int, cols)
	for i := range widths {
		widths[i] = minColumnWidth
	}

	for r, row := range table {
		if r == delim {
			continue
		}

		for c, cell := range row {
			widths[c] = max(widths[c], runewidth.StringWidth(cell))
		}
	}

	out := make([]string, len(table))

	for r, row := range table {
		var sb strings.Builder

		sb.WriteString("|")

		for c := 0; c < cols; c++ {
			sb.WriteString(" ")

			if r == delim {
				sb.WriteString(strings.Repeat("-", widths[c]))
			} else {
				cell := ""
				if c < len(row) {
					cell = row[c]
				}

				sb.WriteString(runewidth.FillRight(cell, widths[c]))
			}

			sb.WriteString(" |")
		}

		out[r] = sb.String()
	}

	return out
}
