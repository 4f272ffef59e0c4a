package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/KaramelBytes/tabschema-cli/internal/schema"
)

// Markdown renders a compact report suitable for terminals or standalone docs.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	if r.Truncated {
		b.WriteString(fmt.Sprintf("Rows: %d (truncated)\n", r.RowCount))
	} else {
		b.WriteString(fmt.Sprintf("Rows: %d\n", r.RowCount))
	}
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", r.ColumnCount))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.OrderedColumns() {
		null := "not null"
		if c.Nullable {
			null = "nullable"
		}
		b.WriteString(fmt.Sprintf("- %s: %s (%s, unique %d)", safeName(c.Name), c.DataType, null, c.UniqueCount))
		if v, ok := r.Verdicts[c.Name]; ok && c.DataType == schema.Enum {
			b.WriteString(fmt.Sprintf("; categories %d, confidence %.2f", v.CategoryCount, v.ConfidenceScore))
		}
		if len(c.SampleValues) > 0 {
			b.WriteString("; e.g., ")
			for i, s := range c.SampleValues {
				if i > 0 {
					b.WriteString(" | ")
				}
				b.WriteString(safeVal(s))
			}
		}
		b.WriteString("\n")
	}

	if len(r.SampleRows) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString("| ")
		for i, name := range r.ColumnOrder {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(name))
		}
		b.WriteString(" |\n| ")
		for i := range r.ColumnOrder {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range r.SampleRows {
			b.WriteString("| ")
			for i := range r.ColumnOrder {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				b.WriteString(safeVal(clip(val, 80)))
			}
			b.WriteString(" |\n")
		}
	}

	if r.SQL != nil {
		b.WriteString("\n[SQL]\n```sql\n")
		b.WriteString(r.SQL.CreateTable)
		b.WriteString("\n\n")
		b.WriteString(r.SQL.InsertTemplate)
		b.WriteString("\n```\n")
	}

	if notes := r.notes(); len(notes) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, n := range notes {
			b.WriteString("- ")
			b.WriteString(n)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (r *Result) notes() []string {
	var out []string
	if r.Truncated {
		out = append(out, fmt.Sprintf("analyzed only the first %d rows", r.RowCount))
	}
	for _, c := range r.OrderedColumns() {
		if c.DataType == schema.Enum && c.UniqueCount > len(c.SampleValues) {
			out = append(out, fmt.Sprintf("%s: enum type lists %d of %d observed values", c.Name, len(c.SampleValues), c.UniqueCount))
		}
	}
	return out
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

// clip shortens s to at most n runes, ending in "..." when cut.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
