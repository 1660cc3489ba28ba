package broker

import (
	"maps"
	"sync"
	"sync/atomic"

	"github.com/casualjim/waggle/messages"
)

// counters aggregates delivery statistics. The hot total is atomic;
// the grouped maps share one mutex since they are touched once per
// publish and copied only when the dashboard polls.
type counters struct {
	total    atomic.Uint64
	failures atomic.Uint64

	mu       sync.Mutex
	bySender map[string]uint64
	byKind   map[messages.Kind]uint64
}

func newCounters() *counters {
	return &counters{
		bySender: make(map[string]uint64),
		byKind:   make(map[messages.Kind]uint64),
	}
}

func (c *counters) record(env *messages.Envelope) {
	c.total.Add(1)
	c.mu.Lock()
	c.bySender[env.Sender]++
	c.byKind[env.Kind]++
	c.mu.Unlock()
}

func (c *counters) failed() {
	c.failures.Add(1)
}

// snapshot returns copies; the caller owns the maps.
func (c *counters) snapshot(identities int) Metrics {
	c.mu.Lock()
	bySender := maps.Clone(c.bySender)
	byKind := maps.Clone(c.byKind)
	c.mu.Unlock()

	return Metrics{
		TotalPublished:  c.total.Load(),
		BySender:        bySender,
		ByKind:          byKind,
		Identities:      identities,
		HandlerFailures: c.failures.Load(),
	}
}
