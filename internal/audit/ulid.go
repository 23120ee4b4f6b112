package audit

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// entropy is a thread-safe monotonic entropy source for record ids, so
// records written within the same millisecond still sort by insertion
// order.
var entropy = &lockedMonotonicReader{r: ulid.Monotonic(rand.Reader, 0)}

type lockedMonotonicReader struct {
	mu sync.Mutex
	r  io.Reader
}

func (lr *lockedMonotonicReader) Read(p []byte) (int, error) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.r.Read(p)
}

func newRecordID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
