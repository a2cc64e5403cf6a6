// Package ulid mints draft identities: a millisecond timestamp followed by
// monotonic random entropy, sortable and collision-free across editors that
// never talk to each other.
package ulid

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     io.Reader
	entropyOnce sync.Once

	genMu     sync.RWMutex
	generator = DefaultGenerator
)

// DefaultEntropy returns the shared, lock-protected monotonic entropy source.
func DefaultEntropy() io.Reader {
	entropyOnce.Do(func() {
		entropy = &ulid.LockedMonotonicReader{
			MonotonicReader: ulid.Monotonic(rand.Reader, 0),
		}
	})
	return entropy
}

// New returns a fresh identity.
func New() string {
	genMu.RLock()
	g := generator
	genMu.RUnlock()
	return g()
}

// Valid reports whether id is a well-formed ULID.
func Valid(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

// Time extracts the timestamp component of a valid id.
func Time(id string) (time.Time, bool) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(parsed.Time()), true
}

func DefaultGenerator() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), DefaultEntropy()).String()
}

// MockGenerator pins New to a fixed value. Tests only.
func MockGenerator(value string) {
	genMu.Lock()
	generator = func() string { return value }
	genMu.Unlock()
}

// SequenceGenerator makes New return values in order, then repeat the last.
// Tests only.
func SequenceGenerator(values ...string) {
	var mu sync.Mutex
	i := 0
	genMu.Lock()
	generator = func() string {
		mu.Lock()
		defer mu.Unlock()
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v
	}
	genMu.Unlock()
}

func ResetGenerator() {
	genMu.Lock()
	generator = DefaultGenerator
	genMu.Unlock()
}
