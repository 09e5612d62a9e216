package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/atlanticdynamic/simkernel/internal/sim/datalog"
)

const (
	timeColumn = "time"
	sheetName  = "series"
)

// Table is the logged data of one run: a time column and one column per log.
type Table struct {
	Names   []string
	Time    []float64
	Columns [][]float64
}

// Column returns the samples of the log called name.
func (t *Table) Column(name string) ([]float64, bool) {
	i := slices.Index(t.Names, name)
	if i < 0 {
		return nil, false
	}
	return t.Columns[i], true
}

// tableFromSnapshot keeps the samples the run recorded: the sample forced at
// t=0 and one per step, bounded by the ring size.
func tableFromSnapshot(snap datalog.Snapshot, steps uint64) *Table {
	table := &Table{Names: slices.Clone(snap.Names)}
	if snap.Time == nil {
		table.Names = nil
		return table
	}

	n := snap.Time.Size()
	if steps < uint64(n) {
		n = int(steps) + 1
	}
	table.Time = snap.Time.Tail(n)
	for _, name := range table.Names {
		table.Columns = append(table.Columns, snap.Series[name].Tail(n))
	}
	return table
}

func writeCSV(path string, table *Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{timeColumn}, table.Names...)); err != nil {
		return err
	}
	row := make([]string, len(table.Names)+1)
	for i, t := range table.Time {
		row[0] = formatFloat(t)
		for j, col := range table.Columns {
			row[j+1] = formatFloat(col[i])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s has no header", ErrCorruptRun, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrCorruptRun, err)
	}
	if len(header) == 0 || header[0] != timeColumn {
		return nil, fmt.Errorf("%w: %s does not start with a %s column", ErrCorruptRun, path, timeColumn)
	}

	table := &Table{
		Names:   header[1:],
		Columns: make([][]float64, len(header)-1),
	}
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptRun, err)
		}
		values := make([]float64, len(record))
		for i, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrCorruptRun, line, err)
			}
			values[i] = v
		}
		table.Time = append(table.Time, values[0])
		for i := range table.Columns {
			table.Columns[i] = append(table.Columns[i], values[i+1])
		}
	}
	return table, nil
}

func writeXLSX(path string, table *Table) (err error) {
	f := excelize.NewFile()
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	header := make([]any, 0, len(table.Names)+1)
	header = append(header, timeColumn)
	for _, name := range table.Names {
		header = append(header, name)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}

	row := make([]any, len(table.Names)+1)
	for i, t := range table.Time {
		row[0] = t
		for j, col := range table.Columns {
			row[j+1] = col[i]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
