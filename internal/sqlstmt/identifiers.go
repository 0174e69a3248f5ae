package sqlstmt

import "strconv"

// Alias prefixes.
const (
	TablePrefix    = "t"
	SubQueryPrefix = "q"
)

// UniqueIdentifierGenerator hands out identifiers from one counter shared
// by every prefix: t0, q1, t2, ...
//
// It is not safe for concurrent use; each compilation owns one.
type UniqueIdentifierGenerator struct {
	next int
}

// NewUniqueIdentifierGenerator returns a generator starting at 0.
func NewUniqueIdentifierGenerator() *UniqueIdentifierGenerator {
	return &UniqueIdentifierGenerator{}
}

// GetUniqueIdentifier returns prefix followed by the next counter value.
func (g *UniqueIdentifierGenerator) GetUniqueIdentifier(prefix string) string {
	id := prefix + strconv.Itoa(g.next)
	g.next++
	return id
}

// Reset restarts the counter at 0.
func (g *UniqueIdentifierGenerator) Reset() {
	g.next = 0
}
