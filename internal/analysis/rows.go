package analysis

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RowSource reads a header row followed by at most maxRows data rows from
// delimited text. Rows are returned verbatim; short rows are padded with
// empty fields.
type RowSource struct {
	r         *csv.Reader
	header    []string
	max       int
	read      int
	truncated bool
	done      bool
}

// NewRowSource reads the header row. A maxRows <= 0 means no cap.
func NewRowSource(r io.Reader, delim rune, maxRows int) (*RowSource, error) {
	if delim == 0 {
		delim = ','
	}
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &HeaderReadError{Err: errors.New("input is empty")}
		}
		return nil, &HeaderReadError{Err: err}
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], string(utf8BOM))
	}
	return &RowSource{r: cr, header: header, max: maxRows}, nil
}

// Header returns the raw header fields.
func (s *RowSource) Header() []string { return s.header }

// Rows reports how many data rows have been returned so far.
func (s *RowSource) Rows() int { return s.read }

// Truncated reports whether input rows remained when the cap was reached.
// It is only meaningful after Next has returned io.EOF.
func (s *RowSource) Truncated() bool { return s.truncated }

// Next returns the next data row, or io.EOF once the input or the row cap is
// exhausted.
func (s *RowSource) Next() ([]string, error) {
	if s.done {
		return nil, io.EOF
	}
	if s.max > 0 && s.read >= s.max {
		s.done = true
		// Peek one record to tell a capped read from an exact fit.
		if _, err := s.r.Read(); !errors.Is(err, io.EOF) {
			s.truncated = true
		}
		return nil, io.EOF
	}
	rec, err := s.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
			return nil, io.EOF
		}
		return nil, &RowReadError{Row: s.read + 1, Err: err}
	}
	s.read++
	ncol := len(s.header)
	if len(rec) > ncol {
		return nil, &ColumnLookupError{Row: s.read, Index: ncol, Columns: ncol}
	}
	if len(rec) < ncol {
		tmp := make([]string, ncol)
		copy(tmp, rec)
		rec = tmp
	}
	return rec, nil
}

// ReadRows drains a RowSource over data and returns the header and rows.
func ReadRows(data []byte, delim rune, maxRows int) ([]string, [][]string, error) {
	if delim == 0 {
		delim = SniffDelimiter(data)
	}
	src, err := NewRowSource(bytes.NewReader(data), delim, maxRows)
	if err != nil {
		return nil, nil, err
	}
	var rows [][]string
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, rec)
	}
	return src.Header(), rows, nil
}

var delimiterCandidates = []rune{',', ';', '\t', '|'}

// SniffDelimiter picks the most frequent candidate delimiter in the first
// line of data, ignoring quoted sections. Ties and misses fall back to ','.
func SniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	counts := make(map[rune]int, len(delimiterCandidates))
	inQuotes := false
	for _, r := range string(line) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		counts[r]++
	}
	best, bestCount := ',', counts[',']
	for _, c := range delimiterCandidates[1:] {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

// delimiterForPath returns a delimiter implied by the file extension, or 0.
func delimiterForPath(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		return '\t'
	case ".psv":
		return '|'
	}
	return 0
}

// IsTabular reports whether name has an extension the analyzer can read.
func IsTabular(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".tab", ".psv", ".xlsx":
		return true
	}
	return false
}
