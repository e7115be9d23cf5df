package tabular

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var (
	zipMagic  = []byte{'P', 'K', 0x03, 0x04}
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// readExcel reads the first worksheet of an .xlsx or legacy .xls workbook.
func readExcel(data []byte) (*table, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return readXLSX(data)
	case bytes.HasPrefix(data, ole2Magic):
		return readXLS(data)
	case looksLikeHTML(data):
		return readHTML(data)
	case len(bytes.TrimSpace(data)) == 0:
		return nil, ErrEmptyFile
	}
	return nil, fmt.Errorf("%w: content is not an Excel workbook", ErrUnsupportedFormat)
}

func readXLSX(data []byte) (*table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	sheet := sheets[0]
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", sheet, err)
	}

	dates := newDateCells(f, sheet)
	t := &table{rows: make([][]string, 0, len(records))}
	for r, record := range records {
		cells := make([]string, len(record))
		for c, value := range record {
			if value != "" {
				if iso, ok := dates.iso(c+1, r+1); ok {
					value = iso
				}
			}
			cells[c] = cleanCell(value)
		}
		t.rows = append(t.rows, cells)
	}
	return t, nil
}

// xlsxTimestampLayout is what date-styled cells are rewritten to. The
// formatted text excelize renders ("03-15-24") is locale shaped and cannot
// be read back reliably.
const xlsxTimestampLayout = "2006-01-02 15:04:05"

// dateCells converts cells carrying a date number format back to timestamps.
type dateCells struct {
	f        *excelize.File
	sheet    string
	date1904 bool
	styles   map[int]bool // style id -> has a date format
}

func newDateCells(f *excelize.File, sheet string) *dateCells {
	d := &dateCells{f: f, sheet: sheet, styles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d
}

func (d *dateCells) iso(col, row int) (string, bool) {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", false
	}
	styleID, err := d.f.GetCellStyle(d.sheet, axis)
	if err != nil || !d.isDateStyle(styleID) {
		return "", false
	}
	raw, err := d.f.GetCellValue(d.sheet, axis, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", false
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", false
	}
	ts, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return "", false
	}
	return ts.Round(time.Second).Format(xlsxTimestampLayout), true
}

func (d *dateCells) isDateStyle(styleID int) bool {
	if isDate, seen := d.styles[styleID]; seen {
		return isDate
	}
	isDate := false
	if style, err := d.f.GetStyle(styleID); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		} else {
			isDate = isBuiltInDateFormat(style.NumFmt)
		}
	}
	d.styles[styleID] = isDate
	return isDate
}

// isBuiltInDateFormat reports the built-in number format ids that render
// dates or times, including the CJK ranges.
func isBuiltInDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode inspects a custom format code, ignoring quoted literals,
// escapes and bracketed sections such as colours and locales.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case inQuote:
			inQuote = ch != '"'
		case inBracket:
			inBracket = ch != ']'
		case ch == '"':
			inQuote = true
		case ch == '[':
			inBracket = true
		case ch == '\\' || ch == '_' || ch == '*':
			i++
		default:
			b.WriteByte(ch)
		}
	}
	plain := strings.ToLower(b.String())
	if strings.EqualFold(strings.TrimSpace(plain), "general") {
		return false
	}
	return strings.ContainsAny(plain, "ydh")
}

func readXLS(data []byte) (*table, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open xls workbook: %w", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrEmptyFile
	}

	t := &table{}
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			t.rows = append(t.rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, cleanCell(row.Col(j)))
		}
		t.rows = append(t.rows, cells)
	}
	return t, nil
}
