// Package pairlist reads verification pair lists and writes result lists as CSV.
package pairlist

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/renameio"
)

// Pair is one comparison request. Label is opaque and round-tripped verbatim.
type Pair struct {
	Left  string
	Right string
	Label string
}

// ResultRow is one output line.
type ResultRow struct {
	Status string
	Left   string
	Right  string
	Label  string
	Score  float64
}

// ResultHeader is the fixed output column order.
var ResultHeader = []string{"status", "iris1", "iris2", "label", "score"}

// Read loads the pair list at path. The first row is a header and is skipped;
// every following row must have exactly three columns.
func Read(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pair list: %w", err)
	}
	defer f.Close()

	pairs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse pair list %s: %w", path, err)
	}
	return pairs, nil
}

// Parse reads pairs from r; see Read.
func Parse(r io.Reader) ([]Pair, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var pairs []Pair
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(record) != 3 {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected 3 columns, got %d", line, len(record))
		}
		pairs = append(pairs, Pair{Left: record[0], Right: record[1], Label: record[2]})
	}
	return pairs, nil
}

// Format renders rows with the result header.
func Format(w io.Writer, rows []ResultRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ResultHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Status,
			row.Left,
			row.Right,
			row.Label,
			strconv.FormatFloat(row.Score, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteResults atomically replaces path with the formatted rows.
func WriteResults(path string, rows []ResultRow) error {
	var buf bytes.Buffer
	if err := Format(&buf, rows); err != nil {
		return err
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write results %s: %w", path, err)
	}
	return nil
}
