package params

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

type row struct {
	id   string
	vals []float64
}

// readTable opens path and decodes it with decodeTable.
func readTable(table, path string, columns []string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, loadErr(table, path, 0, err)
	}
	defer func() { _ = f.Close() }()
	rows, err := decodeTable(table, f, columns)
	if err != nil {
		if dle, ok := err.(*DataLoadError); ok {
			dle.Path = path
		}
		return nil, err
	}
	return rows, nil
}

// decodeTable parses a CSV whose first column holds the row identifier and
// whose header names the numeric columns. The returned values follow the
// order of columns regardless of the order in the file.
func decodeTable(table string, r io.Reader, columns []string) ([]row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	header, err := cr.Read()
	if err == io.EOF {
		return nil, loadErr(table, "", 0, fmt.Errorf("%w: empty file", ErrMalformed))
	}
	if err != nil {
		return nil, loadErr(table, "", 0, err)
	}
	idx := make([]int, len(columns))
	for i, col := range columns {
		idx[i] = -1
		for j := 1; j < len(header); j++ {
			if strings.EqualFold(strings.TrimSpace(header[j]), col) {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, loadErr(table, "", 0, fmt.Errorf("%w %q", ErrMissingColumn, col))
		}
	}

	var rows []row
	seen := make(map[string]struct{})
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, loadErr(table, "", n, err)
		}
		id := strings.TrimSpace(rec[0])
		if id == "" {
			return nil, loadErr(table, "", n, fmt.Errorf("%w: empty identifier", ErrMalformed))
		}
		if _, dup := seen[id]; dup {
			return nil, loadErr(table, "", n, fmt.Errorf("%w %q", ErrDuplicateID, id))
		}
		seen[id] = struct{}{}
		vals := make([]float64, len(columns))
		for i, j := range idx {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j]), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, loadErr(table, "", n, fmt.Errorf("%w: %s=%q", ErrMalformed, columns[i], rec[j]))
			}
			vals[i] = v
		}
		rows = append(rows, row{id: id, vals: vals})
	}
	if len(rows) == 0 {
		return nil, loadErr(table, "", 0, fmt.Errorf("%w: no rows", ErrMalformed))
	}
	return rows, nil
}
