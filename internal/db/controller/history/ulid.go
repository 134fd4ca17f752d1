package history

import (
	crand "crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// idGenerator makes strictly increasing ULIDs. Monotonic entropy is not safe
// for concurrent use, so Make is serialized.
type idGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	last    uint64
}

func newIDGenerator() *idGenerator {
	return &idGenerator{
		entropy: ulid.Monotonic(crand.Reader, 0),
	}
}

// Make returns a ULID carrying t as timestamp. A t before the previous call
// reuses the previous timestamp, so ids never go backwards.
func (g *idGenerator) Make(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := max(ulid.Timestamp(t), g.last)
	g.last = ms

	return ulid.MustNew(ms, g.entropy).String()
}

// ValidID reports whether id is a parseable ULID.
func ValidID(id string) bool {
	_, err := ulid.ParseStrict(id)

	return err == nil
}
