// Package tabular turns uploaded broker exports (CSV, Excel workbooks and
// HTML statements) into loosely-typed rows keyed by header text.
package tabular

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/username/tradejournal/backend/src/models"
)

// FileType is the detected container format of an upload.
type FileType string

const (
	FileTypeCSV   FileType = "csv"
	FileTypeExcel FileType = "excel"
	FileTypeHTML  FileType = "html"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoTableFound      = errors.New("no table found in document")
	ErrEmptyFile         = errors.New("file contains no data rows")
)

// DetectFileType infers the file type from the filename extension.
func DetectFileType(filename string) (FileType, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(strings.TrimSpace(filename))), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, filename)
	}
	return ParseFileType(ext)
}

// ParseFileType accepts a type tag or a bare extension.
func ParseFileType(tag string) (FileType, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "csv":
		return FileTypeCSV, nil
	case "excel", "xls", "xlsx":
		return FileTypeExcel, nil
	case "html", "htm":
		return FileTypeHTML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, tag)
}

type options struct {
	isHeader func(cells []string) bool
}

// Option customises extraction.
type Option func(*options)

// WithHeaderDetector makes the first row accepted by fn the header row. Rows
// above it (report titles, account details) are discarded. When no row is
// accepted the first row is used.
func WithHeaderDetector(fn func(cells []string) bool) Option {
	return func(o *options) { o.isHeader = fn }
}

// table is the intermediate cell grid every reader produces. headerCells,
// when set for a row, holds only that row's <th> cells.
type table struct {
	rows        [][]string
	headerCells [][]string
}

// Extract converts file bytes into one RawRow per data row.
func Extract(data []byte, fileType FileType, opts ...Option) ([]models.RawRow, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var (
		t   *table
		err error
	)
	switch fileType {
	case FileTypeCSV:
		t, err = readCSV(data)
	case FileTypeExcel:
		t, err = readExcel(data)
	case FileTypeHTML:
		t, err = readHTML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, fileType)
	}
	if err != nil {
		return nil, err
	}
	return t.toRows(o)
}

func (t *table) toRows(o *options) ([]models.RawRow, error) {
	headerIdx := t.findHeader(o.isHeader)
	if headerIdx < 0 {
		return nil, ErrEmptyFile
	}

	headerSource := t.rows[headerIdx]
	if headerIdx < len(t.headerCells) && len(t.headerCells[headerIdx]) > 0 {
		headerSource = t.headerCells[headerIdx]
	}
	header := buildHeader(headerSource)

	var rows []models.RawRow
	for _, cells := range t.rows[headerIdx+1:] {
		if isBlank(cells) {
			continue
		}
		row := make(models.RawRow, len(header))
		for j, name := range header {
			if j < len(cells) {
				row[name] = cells[j]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

func (t *table) findHeader(isHeader func([]string) bool) int {
	first := -1
	for i, cells := range t.rows {
		if isBlank(cells) {
			continue
		}
		if first < 0 {
			first = i
		}
		if isHeader == nil {
			return i
		}
		if isHeader(cells) {
			return i
		}
	}
	return first
}

// buildHeader names every column, giving blank headers a positional name and
// suffixing repeats ("Price", "Price 2") so no column is overwritten. A suffix
// never reuses a name that appears literally elsewhere in the header.
func buildHeader(cells []string) []string {
	literal := make(map[string]bool, len(cells))
	for _, cell := range cells {
		if name := cleanCell(cell); name != "" {
			literal[models.NormalizeHeader(name)] = true
		}
	}

	header := make([]string, len(cells))
	taken := make(map[string]bool, len(cells))
	for i, cell := range cells {
		name := cleanCell(cell)
		if name == "" {
			name = "Column " + strconv.Itoa(i+1)
		}
		if taken[models.NormalizeHeader(name)] {
			base := name
			for n := 2; ; n++ {
				name = base + " " + strconv.Itoa(n)
				key := models.NormalizeHeader(name)
				if !taken[key] && !literal[key] {
					break
				}
			}
		}
		taken[models.NormalizeHeader(name)] = true
		header[i] = name
	}
	return header
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// cleanCell trims cell text and collapses internal whitespace, including the
// non-breaking spaces spreadsheet and HTML exports are full of.
func cleanCell(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\u00a0' || r == '\u202f' {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
