// Package session mints the short identifiers that keep concurrent
// generation requests apart on disk.
//
// A session id is embedded in the transient configuration artifact's file
// name and, depending on configuration, in the instance's output directory
// and project name. Ids are short (6 characters by default) so that they
// stay readable inside paths.
package session

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultLength is the number of characters in a minted session id.
const DefaultLength = 6

// maxLength is the number of hex digits in a UUID.
const maxLength = 32

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Generator mints session identifiers.
type Generator interface {
	Generate() string
}

// UUIDGenerator derives ids from random (version 4) UUIDs, truncated to
// Length hex characters.
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct {
	Length int
}

// Generate returns a new truncated UUID.
func (g UUIDGenerator) Generate() string {
	n := g.Length
	if n <= 0 {
		n = DefaultLength
	}
	if n > maxLength {
		n = maxLength
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:n]
}

// FixedGenerator returns predetermined ids, for deterministic tests.
//
// Thread-safety: FixedGenerator is safe for concurrent use.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed: a test that mints more sessions
// than it planned for is broken.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic(fmt.Sprintf("session.FixedGenerator: all %d ids exhausted", len(g.ids)))
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// Validate reports whether id can be embedded in file and directory names.
func Validate(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("invalid session id %q: use letters, digits, '-' or '_'", id)
	}
	return nil
}
