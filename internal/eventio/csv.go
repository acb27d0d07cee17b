package eventio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/dvsim/internal/dvs"
)

var csvHeader = []string{"pol", "timestamps", "x_pos", "y_pos"}

// WriteCSV writes one row per event under a pol,timestamps,x_pos,y_pos
// header, with pol as 0 or 1.
func WriteCSV(w io.Writer, ev *dvs.Events) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	row := make([]string, 4)
	for i := 0; i < ev.Len(); i++ {
		row[0] = "0"
		if ev.Polarities[i] {
			row[0] = "1"
		}
		row[1] = strconv.FormatUint(ev.Timestamps[i], 10)
		row[2] = strconv.FormatUint(uint64(ev.XPositions[i]), 10)
		row[3] = strconv.FormatUint(uint64(ev.YPositions[i]), 10)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the output of WriteCSV. Columns are matched by header name,
// so their order may differ.
func ReadCSV(r io.Reader) (*dvs.Events, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, corrupt(errors.New("missing header"))
	}
	if err != nil {
		return nil, corrupt(err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range csvHeader {
		if _, ok := col[name]; !ok {
			return nil, corrupt(fmt.Errorf("missing column %q", name))
		}
	}

	ev := dvs.NewEvents(0)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, corrupt(err)
		}
		if len(rec) != len(header) {
			return nil, corrupt(fmt.Errorf("line %d: expected %d fields, got %d", line, len(header), len(rec)))
		}

		var e dvs.Event
		switch rec[col["pol"]] {
		case "1", "true":
			e.Polarity = true
		case "0", "false":
		default:
			return nil, corrupt(fmt.Errorf("line %d: invalid pol %q", line, rec[col["pol"]]))
		}
		if e.Timestamp, err = strconv.ParseUint(rec[col["timestamps"]], 10, 64); err != nil {
			return nil, corrupt(fmt.Errorf("line %d: %w", line, err))
		}
		x, err := strconv.ParseUint(rec[col["x_pos"]], 10, 32)
		if err != nil {
			return nil, corrupt(fmt.Errorf("line %d: %w", line, err))
		}
		y, err := strconv.ParseUint(rec[col["y_pos"]], 10, 32)
		if err != nil {
			return nil, corrupt(fmt.Errorf("line %d: %w", line, err))
		}
		e.X, e.Y = uint32(x), uint32(y)
		ev.Append(e)
	}
	return ev, nil
}
