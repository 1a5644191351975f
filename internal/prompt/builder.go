package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"grading-service/internal/rubric"
)

// DiscussionPointsCount is how many discussion points a model is asked for
const DiscussionPointsCount = 3

// Prompt is the rendered instruction for one rubric version
type Prompt struct {
	System           string
	Excluded         []string
	DiscussionPoints bool
}

type promptItem struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Text   string  `json:"text"`
	Points float64 `json:"points"`
}

// Build renders the system prompt for catalog with the given items left out of scoring.
// The output depends only on the catalog contents and the set of excluded ids.
func Build(catalog *rubric.Catalog, excluded ...string) Prompt {
	ex := uniqueSorted(excluded)

	items := catalog.ScoringExcluding(ex...)
	list := make([]promptItem, 0, len(items))
	for _, it := range items {
		list = append(list, promptItem{ID: it.ID, Type: string(it.Kind), Text: it.Text, Points: *it.Points})
	}
	rubricJSON, _ := json.MarshalIndent(list, "", "  ")

	discussion := false
	for _, id := range ex {
		if id == rubric.DiscussionItemID {
			discussion = true
		}
	}

	var b strings.Builder
	b.WriteString("You are an expert teaching assistant. You will be given a student's submission and a detailed grading rubric.\n\n")
	b.WriteString("Evaluate the submission against each item in the rubric. Provide a score and a brief justification for each item. ")
	b.WriteString("A score must be a number between 0 and the item's points.\n\n")
	b.WriteString("Your response MUST be a single JSON object with the following structure:\n")
	b.WriteString("{\n")
	b.WriteString("  \"scores\": [\n")
	b.WriteString("    {\"id\": \"<rubric id>\", \"score\": <number>, \"justification\": \"<brief justification>\"}\n")
	b.WriteString("  ],\n")
	b.WriteString("  \"overall_feedback\": \"<overall feedback on the submission>\",\n")
	if discussion {
		fmt.Fprintf(&b, "  \"discussion_points\": [<exactly %d short questions to discuss with the student during the presentation>],\n", DiscussionPointsCount)
	}
	b.WriteString("  \"applicant_name\": \"<the author's full name if the document states it, otherwise an empty string>\",\n")
	b.WriteString("  \"total_score\": <sum of all scores>\n")
	b.WriteString("}\n\n")
	b.WriteString("Include exactly one entry in \"scores\" for every rubric item below, using its 'id'. ")
	b.WriteString("Do not output anything except the JSON object.\n")
	if len(ex) > 0 {
		fmt.Fprintf(&b, "Do not score these items and do not count them in total_score: %s.\n", strings.Join(ex, ", "))
	}
	b.WriteString("\nHere is the rubric in JSON format:\n")
	b.Write(rubricJSON)
	b.WriteString("\n")

	return Prompt{
		System:           b.String(),
		Excluded:         ex,
		DiscussionPoints: discussion,
	}
}

// UserMessage wraps the submission text
func UserMessage(text string) string {
	return "Here is the student's submission:\n\n---\n\n" + text
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
