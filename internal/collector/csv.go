package collector

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// csvExport buffers the rows of one collector run and writes them out as a
// single audit file when the run finishes. Exports are per account and per
// window so re-runs overwrite their own file and nothing else.
type csvExport struct {
	dir     string
	email   string
	name    string
	start   time.Time
	end     time.Time
	columns []string
	rows    [][]string
}

func newCSVExport(dir, email, name string, start, end time.Time, columns []string) *csvExport {
	return &csvExport{
		dir:     dir,
		email:   email,
		name:    name,
		start:   start,
		end:     end,
		columns: columns,
	}
}

func (e *csvExport) add(row []string) {
	e.rows = append(e.rows, row)
}

// flush writes the buffered rows. An empty run still produces a file with
// just the header so an auditor can tell "ran, found nothing" from "never
// ran". Export failures are reported, not fatal: the database write already
// happened.
func (e *csvExport) flush() (string, error) {
	if e.dir == "" {
		return "", nil
	}
	accountDir := filepath.Join(e.dir, e.email)
	if err := os.MkdirAll(accountDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s.csv",
		e.name,
		e.start.UTC().Format("20060102"),
		e.end.UTC().Format("20060102"),
	)
	path := filepath.Join(accountDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(e.columns); err != nil {
		return "", fmt.Errorf("write export header: %w", err)
	}
	for _, row := range e.rows {
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush export: %w", err)
	}
	return path, nil
}
