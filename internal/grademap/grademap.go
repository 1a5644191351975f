package grademap

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultTolerance absorbs float noise from summing per-item means.
// It must stay well below the smallest meaningful score step.
const DefaultTolerance = 1e-9

// headerLines is the size of the first table in the side file (header plus grades)
const headerLines = 12

// Bracket is one letter grade range
type Bracket struct {
	Letter string  `json:"letter"`
	From   float64 `json:"from"`
	To     float64 `json:"to"`
}

// Table maps totals onto letter grades
type Table struct {
	brackets  []Bracket
	tolerance float64
}

var fallback = []Bracket{
	{Letter: "A+", From: 30, To: 33},
	{Letter: "A", From: 27, To: 29},
	{Letter: "A-", From: 24, To: 26},
	{Letter: "B+", From: 21, To: 23},
	{Letter: "B", From: 18, To: 20},
	{Letter: "B-", From: 15, To: 17},
	{Letter: "C", From: 12, To: 14},
	{Letter: "C-", From: 6, To: 11},
	{Letter: "D", From: 3, To: 5},
	{Letter: "F", From: 0, To: 2},
}

// New sorts brackets by descending lower bound
func New(brackets []Bracket, tolerance float64) *Table {
	b := append([]Bracket(nil), brackets...)
	sort.SliceStable(b, func(i, j int) bool { return b[i].From > b[j].From })
	return &Table{brackets: b, tolerance: tolerance}
}

// Default returns the built-in table
func Default(tolerance float64) *Table {
	return New(fallback, tolerance)
}

// Load reads the side file at path, falling back to the built-in table when
// the file is missing or holds no usable rows.
func Load(path string, tolerance float64, logger *zap.Logger) *Table {
	if path == "" {
		return Default(tolerance)
	}

	f, err := os.Open(path)
	if err != nil {
		logger.Warn("Grade map not readable, using defaults", zap.String("path", path), zap.Error(err))
		return Default(tolerance)
	}
	defer f.Close()

	brackets, err := Parse(f)
	if err != nil || len(brackets) == 0 {
		logger.Warn("Grade map not usable, using defaults", zap.String("path", path), zap.Error(err))
		return Default(tolerance)
	}

	logger.Info("Grade map loaded", zap.String("path", path), zap.Int("brackets", len(brackets)))
	return New(brackets, tolerance)
}

// Parse reads the first table of a "Grade,To,From" CSV. Later tables in the
// same file and malformed rows are ignored.
func Parse(r io.Reader) ([]Bracket, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() && len(lines) < headerLines {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read grade map: %w", err)
	}

	var out []Bracket
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if i == 0 || line == "" {
			continue
		}

		rec, err := csv.NewReader(strings.NewReader(line)).Read()
		if err != nil || len(rec) < 3 {
			continue
		}

		letter := strings.TrimSpace(rec[0])
		to, errTo := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		from, errFrom := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if letter == "" || errTo != nil || errFrom != nil || math.IsInf(to, 0) || math.IsInf(from, 0) || math.IsNaN(to) || math.IsNaN(from) {
			continue
		}

		out = append(out, Bracket{Letter: letter, From: from, To: to})
	}

	return out, nil
}

// Lookup returns the highest bracket whose lower bound the total reaches
func (t *Table) Lookup(total float64) (Bracket, bool) {
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return Bracket{}, false
	}
	for _, b := range t.brackets {
		if total+t.tolerance >= b.From {
			return b, true
		}
	}
	return Bracket{}, false
}

// Letter returns the letter grade or "" when no bracket matches
func (t *Table) Letter(total float64) string {
	b, _ := t.Lookup(total)
	return b.Letter
}

// Brackets returns the table in lookup order
func (t *Table) Brackets() []Bracket {
	return append([]Bracket(nil), t.brackets...)
}
