package tabular

import (
	"encoding/csv"
	"fmt"
	"strings"
)

func readCSV(data []byte) (*table, error) {
	text, err := decodeText(data, "text/csv")
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sniffDelimiter(text)
	reader.FieldsPerRecord = -1 // Allow variable number of fields per record
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV records: %w", err)
	}

	t := &table{rows: make([][]string, 0, len(records))}
	for _, record := range records {
		cells := make([]string, len(record))
		for i, c := range record {
			cells[i] = cleanCell(c)
		}
		t.rows = append(t.rows, cells)
	}
	return t, nil
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab on the
// first non-empty line, ignoring quoted sections.
func sniffDelimiter(text string) rune {
	var line string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}

	counts := map[rune]int{}
	inQuotes := false
	for _, r := range line {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ',', ';', '\t':
			if !inQuotes {
				counts[r]++
			}
		}
	}

	best := ','
	for _, candidate := range []rune{';', '\t'} {
		if counts[candidate] > counts[best] {
			best = candidate
		}
	}
	return best
}
