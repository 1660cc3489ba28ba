package broker

import (
	"slices"
	"sync"

	"github.com/casualjim/waggle/messages"
)

// historyLog is the append-only record of every published envelope.
// Entries are never mutated or reordered after insertion; readers get
// fresh slices over the shared immutable envelopes.
type historyLog struct {
	mu      sync.RWMutex
	entries []*messages.Envelope
}

func newHistoryLog() *historyLog {
	return &historyLog{}
}

func (l *historyLog) append(env *messages.Envelope) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, env)
}

func (l *historyLog) size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// query filters in publish order, then windows to the most recent
// Limit matches. A zero Limit means no window.
func (l *historyLog) query(q HistoryQuery) []*messages.Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matches := make([]*messages.Envelope, 0, len(l.entries))
	for _, env := range l.entries {
		if q.Sender != "" && env.Sender != q.Sender {
			continue
		}
		if q.Kind != "" && env.Kind != q.Kind {
			continue
		}
		matches = append(matches, env)
	}

	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[len(matches)-q.Limit:]
	}
	return slices.Clip(matches)
}
