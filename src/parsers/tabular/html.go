package tabular

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxColspan = 64

// readHTML reads the first <table> of the document. Rows of tables nested
// inside it are ignored.
func readHTML(data []byte) (*table, error) {
	text, err := decodeText(data, "text/html")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML document: %w", err)
	}

	first := doc.Find("table").First()
	if first.Length() == 0 {
		return nil, ErrNoTableFound
	}

	t := &table{}
	first.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if !tr.Closest("table").IsSelection(first) {
			return
		}
		cells := tr.ChildrenFiltered("th, td")
		t.rows = append(t.rows, expandCells(cells))
		t.headerCells = append(t.headerCells, expandCells(cells.Filter("th")))
	})
	return t, nil
}

// expandCells returns cell texts with colspan cells padded by empty values so
// later columns keep their header position.
func expandCells(cells *goquery.Selection) []string {
	var out []string
	cells.Each(func(_ int, cell *goquery.Selection) {
		out = append(out, cleanCell(cell.Text()))
		span := 1
		if raw, ok := cell.Attr("colspan"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 1 {
				span = min(n, maxColspan)
			}
		}
		for i := 1; i < span; i++ {
			out = append(out, "")
		}
	})
	return out
}
