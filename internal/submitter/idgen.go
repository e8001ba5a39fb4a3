package submitter

import (
	"fmt"
	"sync/atomic"
	"time"
)

// idGenerator produces job ids unique across the process lifetime. The
// nanosecond timestamp alone is not enough under bursts from the same
// destination, so a process-wide counter is appended.
type idGenerator struct {
	counter atomic.Uint64
}

func (g *idGenerator) next(destination string) string {
	return fmt.Sprintf("%s-%d-%d", destination, time.Now().UnixNano(), g.counter.Add(1))
}
