package training

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"grading-service/internal/models"
	"grading-service/internal/rubric"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ParseSheetRows reads human line scores from loosely structured rows.
// Per row the first cell naming a scoring rubric item is the id, the first
// other numeric cell is the score and the longest remaining text cell is the
// justification. Rows without an id or a score are skipped.
func ParseSheetRows(rows [][]string, catalog *rubric.Catalog) []models.TrainingLineScore {
	var out []models.TrainingLineScore

	for _, row := range rows {
		idCol, scoreCol := -1, -1
		var (
			id    string
			score float64
		)

		for i, cell := range row {
			if idCol < 0 {
				if norm, ok := catalog.NormalizeID(cell); ok {
					id, idCol = norm, i
					continue
				}
			}
			if scoreCol < 0 {
				if v, ok := parseNumber(cell); ok {
					score, scoreCol = v, i
				}
			}
		}
		if idCol < 0 || scoreCol < 0 {
			continue
		}

		var justification string
		for i, cell := range row {
			if i == idCol || i == scoreCol {
				continue
			}
			cell = strings.TrimSpace(cell)
			if _, numeric := parseNumber(cell); numeric {
				continue
			}
			if len(cell) > len(justification) {
				justification = cell
			}
		}

		out = append(out, models.TrainingLineScore{
			RubricID:       id,
			PointsPossible: catalog.PointsPossible(id),
			Score:          score,
			Justification:  justification,
		})
	}

	return out
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseCSV reads line scores from a CSV sheet
func ParseCSV(data []byte, catalog *rubric.Catalog) ([]models.TrainingLineScore, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return ParseSheetRows(rows, catalog), nil
}

// ParseXLSX reads line scores from the first worksheet of a workbook
func ParseXLSX(data []byte, catalog *rubric.Catalog) ([]models.TrainingLineScore, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return ParseSheetRows(rows, catalog), nil
}

type jsonLineScore struct {
	RubricID       string          `json:"rubric_id"`
	ID             string          `json:"id"`
	Score          json.RawMessage `json:"score"`
	PointsPossible *float64        `json:"points_possible"`
	Justification  string          `json:"justification"`
}

// ParseJSON accepts an array of scores, an object with a "scores" array or a single score object.
// Entries with an unknown id or a non-numeric score are skipped.
func ParseJSON(data []byte, catalog *rubric.Catalog) ([]models.TrainingLineScore, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var entries []jsonLineScore
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode line scores: %w", err)
		}
	case '{':
		var wrapper struct {
			Scores []jsonLineScore `json:"scores"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to decode line scores: %w", err)
		}
		if wrapper.Scores != nil {
			entries = wrapper.Scores
			break
		}
		var single jsonLineScore
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("failed to decode line score: %w", err)
		}
		entries = []jsonLineScore{single}
	default:
		return nil, fmt.Errorf("line scores must be a JSON array or object")
	}

	out := make([]models.TrainingLineScore, 0, len(entries))
	for _, e := range entries {
		raw := e.RubricID
		if raw == "" {
			raw = e.ID
		}
		id, ok := catalog.NormalizeID(raw)
		if !ok {
			continue
		}

		score, ok := rawNumber(e.Score)
		if !ok {
			continue
		}

		points := e.PointsPossible
		if points == nil {
			points = catalog.PointsPossible(id)
		}

		out = append(out, models.TrainingLineScore{
			RubricID:       id,
			PointsPossible: points,
			Score:          score,
			Justification:  strings.TrimSpace(e.Justification),
		})
	}
	return out, nil
}

// rawNumber accepts a JSON number or a numeric string
func rawNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseNumber(s)
	}
	return 0, false
}

// ParseLineScoreFile picks a parser from the sniffed type and extension
func ParseLineScoreFile(fileName string, data []byte, catalog *rubric.Catalog) ([]models.TrainingLineScore, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	switch {
	case mimetype.Detect(data).Is(mimeXLSX), ext == ".xlsx", ext == ".xlsm":
		return ParseXLSX(data, catalog)
	case ext == ".json":
		return ParseJSON(data, catalog)
	case ext == ".csv", ext == ".txt":
		return ParseCSV(data, catalog)
	default:
		return nil, fmt.Errorf("unsupported line score file: %s", fileName)
	}
}
