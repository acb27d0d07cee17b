package dvs

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/dvsim/internal/fsutil"
)

// LoadThresholds reads a per-pixel threshold matrix from a CSV file with one
// line per frame row. Blank lines and lines starting with '#' are ignored.
func LoadThresholds(fsys fsutil.FileSystem, path string) (*mat.Dense, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open thresholds %s: %w", path, err)
	}
	defer f.Close()

	m, err := ReadThresholds(f)
	if err != nil {
		return nil, fmt.Errorf("thresholds %s: %w", path, err)
	}
	return m, nil
}

// ReadThresholds parses a CSV threshold matrix from r.
func ReadThresholds(r io.Reader) (*mat.Dense, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrInvalidThreshold)
	}

	rows, cols := len(records), len(records[0])
	data := make([]float64, 0, rows*cols)
	for y, rec := range records {
		for x, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", y+1, x+1, err)
			}
			if err := checkThreshold(v); err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", y+1, x+1, err)
			}
			data = append(data, v)
		}
	}
	return mat.NewDense(rows, cols, data), nil
}

// ConstantThresholds returns a height x width matrix filled with c.
func ConstantThresholds(width, height int, c float64) *mat.Dense {
	data := make([]float64, width*height)
	for i := range data {
		data[i] = c
	}
	return mat.NewDense(height, width, data)
}
