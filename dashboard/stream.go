package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/casualjim/waggle/pkg/slogx"
)

// event is one frame on the stream. Type tells the consumer how to
// read Data: "message" carries an envelope, "metrics" a snapshot.
type event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// feed fans encoded events out to the connected stream clients.
type feed struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	closed  bool
}

func newFeed() *feed {
	return &feed{clients: make(map[chan []byte]struct{})}
}

func (f *feed) subscribe() chan []byte {
	ch := make(chan []byte, 16)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	f.clients[ch] = struct{}{}
	return ch
}

// unsubscribe only closes channels still registered, so a client that
// raced with close does not get closed twice.
func (f *feed) unsubscribe(ch chan []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[ch]; ok {
		delete(f.clients, ch)
		close(ch)
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.clients {
		delete(f.clients, ch)
		close(ch)
	}
}

// publish encodes once and offers the frame to every client. Clients
// that cannot keep up lose frames rather than stall the poller.
func (f *feed) publish(e event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("encoding stream event",
			slogx.LoggerName("dashboard"),
			slogx.Error(err))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.clients {
		select {
		case ch <- data:
		default:
			slog.Debug("dropping stream event for slow client",
				slogx.LoggerName("dashboard"),
				slog.String("type", e.Type))
		}
	}
}

// pollLoop drives the feed off the bus: each tick it publishes the
// envelopes recorded since the previous tick, then a metrics
// snapshot. Closing the feed on exit releases every stream handler.
func (s *Server) pollLoop(ctx context.Context) {
	defer s.feed.close()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	var seen int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			history := s.bus.History()
			for _, env := range history[seen:] {
				s.feed.publish(event{Type: "message", Data: env})
			}
			seen = len(history)
			s.feed.publish(event{Type: "metrics", Data: s.snapshot()})
		}
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.feed.subscribe()
	defer s.feed.unsubscribe(ch)

	// Greet with the current state so the client renders something
	// before the first tick lands.
	if greeting, err := json.Marshal(event{Type: "metrics", Data: s.snapshot()}); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", greeting)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
