package analysis

import "fmt"

// HeaderReadError indicates the input has no parsable header row.
type HeaderReadError struct {
	Err error
}

func (e *HeaderReadError) Error() string {
	return fmt.Sprintf("failed to read headers: %v", e.Err)
}

func (e *HeaderReadError) Unwrap() error { return e.Err }

// RowReadError indicates a data row could not be tokenized. Row is 1-based
// and counts data rows only.
type RowReadError struct {
	Row int
	Err error
}

func (e *RowReadError) Error() string {
	return fmt.Sprintf("read row %d: %v", e.Row, e.Err)
}

func (e *RowReadError) Unwrap() error { return e.Err }

// ColumnLookupError reports a field whose index has no matching header.
type ColumnLookupError struct {
	Row     int
	Index   int
	Columns int
}

func (e *ColumnLookupError) Error() string {
	return fmt.Sprintf("row %d: field %d has no matching header (%d columns)", e.Row, e.Index+1, e.Columns)
}
