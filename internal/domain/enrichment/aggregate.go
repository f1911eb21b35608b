package enrichment

import "strings"

const (
	// InnerSeparator joins values of one entity.
	InnerSeparator = ", "
	// OuterSeparator joins entities of one row.
	OuterSeparator = " | "
)

// Aggregate renders per-entity value lists as one delimited string. Empty and
// sentinel values are dropped, an entity left with nothing renders as
// SentinelNA, and an empty outer list renders as SentinelNA. Order is kept;
// nothing is sorted or deduplicated.
func Aggregate(entities [][]string) string {
	if len(entities) == 0 {
		return SentinelNA
	}
	parts := make([]string, len(entities))
	for i, values := range entities {
		parts[i] = joinEntity(values)
	}
	return strings.Join(parts, OuterSeparator)
}

func joinEntity(values []string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if IsSentinel(v) {
			continue
		}
		kept = append(kept, v)
	}
	if len(kept) == 0 {
		return SentinelNA
	}
	return strings.Join(kept, InnerSeparator)
}

// Column accumulates per-entity value lists for one output column.
type Column struct {
	entities [][]string
}

// Add appends one entity's values.
func (c *Column) Add(values ...string) {
	cp := make([]string, len(values))
	copy(cp, values)
	c.entities = append(c.entities, cp)
}

// Len returns the number of entities added.
func (c *Column) Len() int { return len(c.entities) }

// String renders the column with Aggregate.
func (c *Column) String() string { return Aggregate(c.entities) }
