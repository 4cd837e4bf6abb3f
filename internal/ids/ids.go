// Package ids generates the identifiers used as storage keys. ULIDs keep
// inserts roughly append-ordered while staying unguessable in URLs.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh ULID string. The shared monotonic entropy source keeps
// ids generated within the same millisecond in issue order.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
