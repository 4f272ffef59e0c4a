package analysis

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

// XLSXSource reads rows from one worksheet of an .xlsx workbook. The first
// row of the sheet is the header.
type XLSXSource struct {
	rows      *sheetRowReader
	header    []string
	max       int
	read      int
	truncated bool
	done      bool
}

// NewXLSXSource opens the worksheet named sheet, or the sheet with the given
// 1-based index when sheet is empty. Index <= 0 selects the first sheet.
func NewXLSXSource(data []byte, sheet string, index, maxRows int) (*XLSXSource, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &HeaderReadError{Err: fmt.Errorf("open xlsx: %w", err)}
	}
	wb, err := readWorkbook(zr)
	if err != nil {
		return nil, &HeaderReadError{Err: err}
	}
	target, err := wb.sheetPath(sheet, index)
	if err != nil {
		return nil, &HeaderReadError{Err: err}
	}
	sheetXML, err := readZipEntry(zr, target)
	if err != nil {
		return nil, &HeaderReadError{Err: err}
	}
	rr := &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(sheetXML)), shared: wb.shared}
	header, err := rr.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &HeaderReadError{Err: errors.New("sheet is empty")}
		}
		return nil, &HeaderReadError{Err: err}
	}
	return &XLSXSource{rows: rr, header: header, max: maxRows}, nil
}

func (s *XLSXSource) Header() []string { return s.header }

func (s *XLSXSource) Truncated() bool { return s.truncated }

// Next returns the next row padded to the header width.
func (s *XLSXSource) Next() ([]string, error) {
	if s.done {
		return nil, io.EOF
	}
	if s.max > 0 && s.read >= s.max {
		s.done = true
		if _, err := s.rows.next(); !errors.Is(err, io.EOF) {
			s.truncated = true
		}
		return nil, io.EOF
	}
	rec, err := s.rows.next()
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
		// Trailing blank cells beyond the header are common in spreadsheets.
		for _, v := range rec[ncol:] {
			if strings.TrimSpace(v) != "" {
				return nil, &ColumnLookupError{Row: s.read, Index: ncol, Columns: ncol}
			}
		}
		rec = rec[:ncol]
	}
	if len(rec) < ncol {
		tmp := make([]string, ncol)
		copy(tmp, rec)
		rec = tmp
	}
	return rec, nil
}

type workbook struct {
	sheets []workbookSheet
	rels   map[string]string
	shared []string
}

type workbookSheet struct {
	Name    string `xml:"name,attr"`
	SheetID int    `xml:"sheetId,attr"`
	RID     string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
}

func readWorkbook(zr *zip.Reader) (*workbook, error) {
	wbXML, err := readZipEntry(zr, "xl/workbook.xml")
	if err != nil {
		return nil, err
	}
	var doc struct {
		Sheets []workbookSheet `xml:"sheets>sheet"`
	}
	if err := xml.Unmarshal(wbXML, &doc); err != nil {
		return nil, fmt.Errorf("parse workbook: %w", err)
	}
	wb := &workbook{sheets: doc.Sheets, rels: map[string]string{}}

	if relsXML, err := readZipEntry(zr, "xl/_rels/workbook.xml.rels"); err == nil {
		var rels struct {
			Items []struct {
				ID     string `xml:"Id,attr"`
				Target string `xml:"Target,attr"`
			} `xml:"Relationship"`
		}
		if err := xml.Unmarshal(relsXML, &rels); err != nil {
			return nil, fmt.Errorf("parse workbook relationships: %w", err)
		}
		for _, r := range rels.Items {
			if r.ID != "" && r.Target != "" {
				wb.rels[r.ID] = r.Target
			}
		}
	}
	if sharedXML, err := readZipEntry(zr, "xl/sharedStrings.xml"); err == nil {
		wb.shared, err = parseSharedStrings(sharedXML)
		if err != nil {
			return nil, err
		}
	}
	return wb, nil
}

func (wb *workbook) sheetPath(name string, index int) (string, error) {
	if name != "" {
		for _, s := range wb.sheets {
			if strings.EqualFold(s.Name, name) {
				if rel, ok := wb.rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
				return fmt.Sprintf("xl/worksheets/sheet%d.xml", s.SheetID), nil
			}
		}
		available := make([]string, len(wb.sheets))
		for i, s := range wb.sheets {
			available[i] = s.Name
		}
		return "", fmt.Errorf("sheet %q not found; available sheets: %s", name, strings.Join(available, ", "))
	}
	if index <= 0 {
		index = 1
	}
	for _, s := range wb.sheets {
		if s.SheetID == index {
			if rel, ok := wb.rels[s.RID]; ok {
				return normalizeRelPath(rel), nil
			}
		}
	}
	return fmt.Sprintf("xl/worksheets/sheet%d.xml", index), nil
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("workbook entry %s: %w", name, errMissingEntry)
}

var errMissingEntry = errors.New("missing")

// parseSharedStrings concatenates every <t> run of each <si> entry.
func parseSharedStrings(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		out []string
		buf strings.Builder
		inT bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse shared strings: %w", err)
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
}

// next returns the cells of the next <row>, placed by their column reference.
func (r *sheetRowReader) next() ([]string, error) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) && inRow {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch {
			case se.Name.Local == "row":
				inRow = true
				row = nil
			case inRow && se.Name.Local == "c":
				var ref, typ string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						ref = a.Value
					case "t":
						typ = a.Value
					}
				}
				val, err := r.cellValue(typ)
				if err != nil {
					return nil, err
				}
				idx := columnIndex(ref)
				if idx < 0 {
					idx = len(row)
				}
				for len(row) <= idx {
					row = append(row, "")
				}
				row[idx] = val
			}
		case xml.EndElement:
			if inRow && se.Name.Local == "row" {
				return row, nil
			}
		}
	}
}

// cellValue reads up to the closing </c> and resolves shared strings.
func (r *sheetRowReader) cellValue(typ string) (string, error) {
	var (
		val  strings.Builder
		inV  bool
		seen bool
	)
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return "", err
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				inV = true
				seen = true
			}
		case xml.CharData:
			if inV {
				val.Write(se)
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "v", "t":
				inV = false
			case "c":
				s := val.String()
				if typ == "s" && seen {
					i, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || i < 0 || i >= len(r.shared) {
						return "", nil
					}
					return r.shared[i], nil
				}
				return s, nil
			}
		}
	}
}

// columnIndex converts a cell reference such as "C12" to a 0-based column.
func columnIndex(ref string) int {
	idx := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'A' && c <= 'Z':
			idx = idx*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			idx = idx*26 + int(c-'a'+1)
		default:
			return idx - 1
		}
	}
	return idx - 1
}

// normalizeRelPath converts a relationship target to its ZIP entry name.
// Targets may be absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
