package footprint

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random identifier as 32 lowercase hex digits.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AssignIDs gives every building without an identifier a fresh one, or every
// building when overwrite is set, and mirrors it into the idField attribute.
// It returns the number of identifiers written.
func (c *Collection) AssignIDs(idField string, overwrite bool, gen func() string) int {
	if idField == "" {
		idField = DefaultIDField
	}
	if gen == nil {
		gen = NewID
	}

	n := 0
	for i := range c.Buildings {
		b := &c.Buildings[i]
		if b.ID != "" && !overwrite {
			continue
		}
		b.ID = gen()
		if b.Attributes == nil {
			b.Attributes = make(map[string]any)
		}
		b.Attributes[idField] = b.ID
		n++
	}
	return n
}

// Duplicates returns identifiers that occur more than once, in first-seen order.
func (c Collection) Duplicates() []string {
	seen := make(map[string]int, len(c.Buildings))
	var dups []string
	for _, b := range c.Buildings {
		seen[b.ID]++
		if seen[b.ID] == 2 {
			dups = append(dups, b.ID)
		}
	}
	return dups
}
