// Package queries reads the search query list.
package queries

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Load reads queries from path. CSV files use the "query" column when the
// header names one and the first column otherwise; any other file holds one
// query per line with blank lines and '#' comments skipped. Duplicates are
// dropped, keeping the first occurrence.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open queries file: %w", err)
	}
	defer f.Close()

	var raw []string
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		raw, err = readCSV(f)
	} else {
		raw, err = readLines(f)
	}
	if err != nil {
		return nil, fmt.Errorf("read queries file %s: %w", path, err)
	}

	return dedupe(raw), nil
}

func readCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []string
	col := 0
	first := true
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if first {
			first = false
			if idx := headerIndex(row); idx >= 0 {
				col = idx
				continue
			}
		}

		if col >= len(row) {
			continue
		}
		if q := strings.TrimSpace(row[col]); q != "" {
			out = append(out, q)
		}
	}
	return out, nil
}

func headerIndex(row []string) int {
	for i, cell := range row {
		if strings.EqualFold(strings.TrimSpace(cell), "query") {
			return i
		}
	}
	return -1
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, q := range in {
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

// File is a query source that re-reads its file on every call, so edits take
// effect on the next pass.
type File struct {
	Path string
}

// Queries loads the current list.
func (f File) Queries(context.Context) ([]string, error) {
	return Load(f.Path)
}
