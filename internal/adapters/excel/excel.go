// Package excel reads sponsor rows from downloaded register exports:
// xlsx workbooks and csv files. Exports carry a title block above the
// real header row, so parsing scans for the organisation column instead
// of assuming a fixed layout.
package excel

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kakiii/kmatch/internal/ports"
)

// headerScanLimit bounds the search for the header row.
const headerScanLimit = 10

// exportNameRe matches dated export filenames like
// "KMatch - 12_05_2025.xlsx".
var exportNameRe = regexp.MustCompile(`(?i)^KMatch - (\d{2})_(\d{2})_(\d{4})\.(xlsx|csv)$`)

// Reader loads one export file. It implements ports.RowSource.
type Reader struct {
	path string
	log  *slog.Logger
}

// NewReader builds a reader for the export at path.
func NewReader(path string, log *slog.Logger) *Reader {
	if log == nil {
		log = slog.Default()
	}
	return &Reader{path: path, log: log}
}

// Name identifies the export in snapshots and run entries.
func (r *Reader) Name() string {
	return "export:" + filepath.Base(r.path)
}

// Rows reads and parses the export, returning its sponsor rows along
// with the raw file bytes for change hashing.
func (r *Reader) Rows(ctx context.Context) ([]ports.Row, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, nil, fmt.Errorf("read export: %w", err)
	}

	var rows []ports.Row
	switch strings.ToLower(filepath.Ext(r.path)) {
	case ".xlsx":
		rows, err = parseWorkbook(raw)
	case ".csv":
		rows, err = parseCSV(raw)
	default:
		return nil, nil, fmt.Errorf("unsupported export format %q", filepath.Ext(r.path))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", filepath.Base(r.path), err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("export %s has no sponsor rows", filepath.Base(r.path))
	}

	r.log.Info("export read", "file", filepath.Base(r.path), "rows", len(rows))
	return rows, raw, nil
}

func parseWorkbook(raw []byte) ([]ports.Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rowsFromCells(cells)
}

func parseCSV(raw []byte) ([]ports.Row, error) {
	rd := csv.NewReader(bytes.NewReader(raw))
	rd.FieldsPerRecord = -1
	if delim := sniffDelimiter(raw); delim != 0 {
		rd.Comma = delim
	}

	cells, err := rd.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rowsFromCells(cells)
}

// sniffDelimiter picks semicolons over commas when the first line leans
// that way; Dutch locales export semicolon-separated csv.
func sniffDelimiter(raw []byte) rune {
	line := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return 0
}

// rowsFromCells locates the header row, then maps every later row onto
// it. Rows without an organisation are skipped, never fatal.
func rowsFromCells(cells [][]string) ([]ports.Row, error) {
	headerIdx, orgCol := findHeader(cells)
	if headerIdx < 0 {
		return nil, fmt.Errorf("no organisation column found")
	}

	headers := make([]string, len(cells[headerIdx]))
	for i, h := range cells[headerIdx] {
		headers[i] = strings.TrimSpace(h)
	}

	var rows []ports.Row
	for _, line := range cells[headerIdx+1:] {
		org := ""
		if orgCol < len(line) {
			org = strings.TrimSpace(line[orgCol])
		}
		if org == "" {
			continue
		}

		row := ports.Row{Organisation: org}
		for i, cell := range line {
			if i == orgCol || i >= len(headers) || headers[i] == "" {
				continue
			}
			v := strings.TrimSpace(cell)
			if v == "" {
				continue
			}
			if row.Fields == nil {
				row.Fields = make(map[string]string)
			}
			row.Fields[headers[i]] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// findHeader scans the leading rows for a cell naming the organisation
// column.
func findHeader(cells [][]string) (rowIdx, colIdx int) {
	limit := len(cells)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}
	for i := 0; i < limit; i++ {
		for j, cell := range cells[i] {
			switch strings.ToLower(strings.TrimSpace(cell)) {
			case "organisation", "organization":
				return i, j
			}
		}
	}
	return -1, 0
}

// LatestExport picks the newest export file in dir: by the date in its
// filename when present, by modification time otherwise. Temp and
// partial download files are ignored.
func LatestExport(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan export dir: %w", err)
	}

	var best string
	var bestTime time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if IgnoreFile(name) {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".xlsx", ".csv":
		default:
			continue
		}

		ts, ok := nameDate(name)
		if !ok {
			info, err := e.Info()
			if err != nil {
				continue
			}
			ts = info.ModTime()
		}
		if best == "" || ts.After(bestTime) {
			best, bestTime = name, ts
		}
	}

	if best == "" {
		return "", fmt.Errorf("no export files in %s", dir)
	}
	return filepath.Join(dir, best), nil
}

// nameDate parses the DD_MM_YYYY stamp out of a dated export filename.
func nameDate(name string) (time.Time, bool) {
	m := exportNameRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.Parse("02_01_2006", m[1]+"_"+m[2]+"_"+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// IgnoreFile reports whether name is a temp or partial download
// artifact rather than a settled export.
func IgnoreFile(name string) bool {
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tmp", ".crdownload", ".part":
		return true
	}
	return false
}
