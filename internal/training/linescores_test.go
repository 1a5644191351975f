package training

import (
	"bytes"
	"testing"

	"grading-service/internal/rubric"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseSheetRows(t *testing.T) {
	rows := [][]string{
		{"Rubric", "Score", "Comment"},
		{" a1 ", "1", "Vivid examples of what sparks joy"},
		{"Notes", "B2", "0.75", "Short", "Dreams are vague and need detail"},
		{"", "", ""},
		{"A", "3", "section headers are not scored"},
		{"C1", "no score here"},
		{"12", "D1", "0.5"},
		{"A3", "NaN", "strong answer"},
		{"A4", "Inf", "x"},
		{"A5", "-infinity"},
	}

	got := ParseSheetRows(rows, rubric.Default())
	require.Len(t, got, 3)

	assert.Equal(t, "A1", got[0].RubricID)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, "Vivid examples of what sparks joy", got[0].Justification)
	require.NotNil(t, got[0].PointsPossible)
	assert.Equal(t, 1.25, *got[0].PointsPossible)

	assert.Equal(t, "B2", got[1].RubricID)
	assert.Equal(t, 0.75, got[1].Score)
	assert.Equal(t, "Dreams are vague and need detail", got[1].Justification)

	// the first numeric cell wins even when it precedes the id
	assert.Equal(t, "D1", got[2].RubricID)
	assert.Equal(t, 12.0, got[2].Score)
}

func TestParseCSV(t *testing.T) {
	data := []byte("id,score,justification\nA2,1.25,\"Clear, specific goals\"\nZ9,1,unknown\n")

	got, err := ParseCSV(data, rubric.Default())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A2", got[0].RubricID)
	assert.Equal(t, "Clear, specific goals", got[0].Justification)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Item", "Score", "Why"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"E1", 2, "Thoughtful plan"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"F2", "0.5", "Brief"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	got, err := ParseLineScoreFile("scores.xlsx", buf.Bytes(), rubric.Default())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "E1", got[0].RubricID)
	assert.Equal(t, 2.0, got[0].Score)
	assert.Equal(t, "F2", got[1].RubricID)
}

func TestParseJSONShapes(t *testing.T) {
	catalog := rubric.Default()

	cases := []struct {
		name string
		data string
		want int
	}{
		{"array", `[{"rubric_id":"A1","score":1},{"id":"b1","score":"0.5"}]`, 2},
		{"wrapped", `{"scores":[{"rubric_id":"C1","score":1.5,"points_possible":2}]}`, 1},
		{"single", `{"id":"D2","score":1,"justification":" ok "}`, 1},
		{"skips bad rows", `[{"rubric_id":"nope","score":1},{"rubric_id":"A1","score":"x"},{"rubric_id":"A1"}]`, 0},
		{"empty", ``, 0},
		{"non-finite strings", `[{"rubric_id":"A3","score":"nan"},{"rubric_id":"A4","score":"+Inf"}]`, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseJSON([]byte(tc.data), catalog)
			require.NoError(t, err)
			assert.Len(t, got, tc.want)
		})
	}

	got, err := ParseJSON([]byte(`{"scores":[{"rubric_id":"C1","score":1.5,"points_possible":2}]}`), catalog)
	require.NoError(t, err)
	assert.Equal(t, 2.0, *got[0].PointsPossible)

	_, err = ParseJSON([]byte(`"A1"`), catalog)
	assert.Error(t, err)
}

func TestParseLineScoreFileUnsupported(t *testing.T) {
	_, err := ParseLineScoreFile("scores.pdf", []byte("%PDF-1.4"), rubric.Default())
	assert.Error(t, err)
}
