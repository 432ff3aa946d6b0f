package idgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULIDGenerator generates lexicographically sortable message ids. Ids from
// one generator are strictly increasing, including within a millisecond.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Generate returns a new id and the time encoded in it.
func (g *ULIDGenerator) Generate() (string, time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), g.entropy)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), ulid.Time(id.Time()).UTC(), nil
}

// Validate reports whether id is a well-formed ULID.
func Validate(id string) error {
	if len(id) != ulid.EncodedSize {
		return fmt.Errorf("expected length %d, got %d", ulid.EncodedSize, len(id))
	}
	if _, err := ulid.ParseStrict(id); err != nil {
		return fmt.Errorf("invalid ULID format: %w", err)
	}
	return nil
}
