package rubric

import (
	"fmt"
	"strings"

	"grading-service/internal/models"
)

// DiscussionItemID is the rubric item filled from the presentation discussion, never by a model.
const DiscussionItemID = "G"

// Catalog is an immutable, ordered rubric
type Catalog struct {
	Version string

	items []models.RubricItem
	index map[string]int
	order map[string]int
}

// New validates items and builds a catalog
func New(version string, items []models.RubricItem) (*Catalog, error) {
	c := &Catalog{
		Version: version,
		items:   append([]models.RubricItem(nil), items...),
		index:   make(map[string]int, len(items)),
		order:   make(map[string]int, len(items)),
	}

	for i, it := range c.items {
		if it.ID == "" {
			return nil, fmt.Errorf("rubric item %d has empty id", i)
		}
		if _, dup := c.index[it.ID]; dup {
			return nil, fmt.Errorf("duplicate rubric id %q", it.ID)
		}
		if it.IsScoring() && it.Points == nil {
			return nil, fmt.Errorf("scoring rubric item %q has no points", it.ID)
		}
		c.index[it.ID] = i
		if it.IsScoring() {
			c.order[it.ID] = len(c.order)
		}
	}

	return c, nil
}

// Items returns every item including section headers
func (c *Catalog) Items() []models.RubricItem {
	return append([]models.RubricItem(nil), c.items...)
}

// Scoring returns the graded items in canonical order
func (c *Catalog) Scoring() []models.RubricItem {
	return c.ScoringExcluding()
}

// ScoringExcluding returns graded items minus the given ids
func (c *Catalog) ScoringExcluding(excluded ...string) []models.RubricItem {
	skip := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		skip[id] = true
	}

	out := make([]models.RubricItem, 0, len(c.order))
	for _, it := range c.items {
		if it.IsScoring() && !skip[it.ID] {
			out = append(out, it)
		}
	}
	return out
}

// Lookup finds an item by exact id
func (c *Catalog) Lookup(id string) (models.RubricItem, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.RubricItem{}, false
	}
	return c.items[i], true
}

// Label returns the item text, or the id itself for unknown items
func (c *Catalog) Label(id string) string {
	if it, ok := c.Lookup(id); ok {
		return it.Text
	}
	return id
}

// PointsPossible returns the item's maximum, nil for sections and unknown ids
func (c *Catalog) PointsPossible(id string) *float64 {
	it, ok := c.Lookup(id)
	if !ok || it.Points == nil {
		return nil
	}
	p := *it.Points
	return &p
}

// Order returns the canonical position of a scoring item. Unknown ids sort after all known ones.
func (c *Catalog) Order(id string) int {
	if o, ok := c.order[id]; ok {
		return o
	}
	return len(c.order)
}

// NormalizeID maps free text such as " a1 " onto a scoring id
func (c *Catalog) NormalizeID(s string) (string, bool) {
	id := strings.ToUpper(strings.TrimSpace(s))
	if _, ok := c.order[id]; !ok {
		return "", false
	}
	return id, true
}

// IsScoring reports whether id names a graded item
func (c *Catalog) IsScoring(id string) bool {
	_, ok := c.order[id]
	return ok
}
