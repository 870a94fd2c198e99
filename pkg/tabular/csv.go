package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Dir opens CSV sources relative to a root directory. A reference without
// an extension resolves to "<ref>.csv".
type Dir struct {
	Root string
}

// Open reads the referenced CSV file fully into memory.
func (d Dir) Open(ref string) (Source, error) {
	name := ref
	if filepath.Ext(name) == "" {
		name += ".csv"
	}
	f, err := os.Open(filepath.Join(d.Root, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses CSV input with a header row into typed records.
//
// Cell typing mirrors the dataframe behavior the graph core expects:
// empty cells become nil (missing), numeric cells become float64 (so an
// int column with any missing value surfaces whole floats), everything
// else stays a string.
func ReadCSV(r io.Reader) (Source, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	for i, col := range header {
		header[i] = strings.TrimSpace(col)
	}

	var rows []Record
	for {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read row %d: %w", len(rows)+2, err)
		}
		rec := make(Record, len(header))
		for i, col := range header {
			if i >= len(cells) {
				rec[col] = nil
				continue
			}
			rec[col] = parseCell(cells[i])
		}
		rows = append(rows, rec)
	}
	return &memSource{cols: header, rows: rows}, nil
}

func parseCell(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
