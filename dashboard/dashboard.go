// Package dashboard exposes the read side of a run over HTTP: stock
// positions, message history, system metrics and a server-sent event
// feed, in the shape the web UI consumes.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	json "github.com/goccy/go-json"

	"github.com/casualjim/waggle/broker"
	"github.com/casualjim/waggle/inventory"
	"github.com/casualjim/waggle/messages"
	"github.com/casualjim/waggle/pkg/slogx"
	"github.com/casualjim/waggle/pkg/stdx"
	"github.com/casualjim/waggle/scenario"
)

const (
	defaultAddr         = ":8000"
	defaultHistoryLimit = 100
	shutdownTimeout     = 5 * time.Second
)

// Server serves the HTTP API for one hive. It only reads: every write
// to the store and the bus happens in the planners.
type Server struct {
	addr   string
	tick   time.Duration
	agents []string

	bus   broker.Broker
	store *inventory.Store
	world *scenario.Scenario

	feed *feed

	ready chan struct{}
	bound net.Addr
}

var (
	// WithAddr sets the TCP listen address, ":8000" by default.
	WithAddr = opts.ForName[Server, string]("addr")

	// WithTick overrides the event feed's polling cadence. Without it
	// the feed follows the scenario's simulation time step.
	WithTick = opts.ForName[Server, time.Duration]("tick")
)

// Agents names the planner identities the agents endpoint reports on.
// Without it the endpoint falls back to whoever has published.
func Agents(identity string, more ...string) opts.Option[Server] {
	return opts.Type[Server](func(s *Server) error {
		s.agents = append(s.agents, identity)
		s.agents = append(s.agents, more...)
		return nil
	})
}

// New builds a dashboard over the given bus, store and scenario.
func New(bus broker.Broker, store *inventory.Store, world *scenario.Scenario, options ...opts.Option[Server]) *Server {
	s := &Server{
		addr:  defaultAddr,
		bus:   bus,
		store: store,
		world: world,
		feed:  newFeed(),
		ready: make(chan struct{}),
	}
	if err := opts.Apply(s, options); err != nil {
		panic(err)
	}
	if s.tick <= 0 {
		if s.world != nil {
			s.tick = s.world.Sim.TimeStep()
		} else {
			s.tick = 2 * time.Second
		}
	}
	return s
}

// Ready is closed once the listener is bound and accepting
// connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the resolved listen address, valid after Ready is closed.
// With a ":0" listen address this is where the OS actually put us.
func (s *Server) Addr() net.Addr {
	return s.bound
}

// Serve binds the listener and blocks until ctx is cancelled, then
// drains in-flight requests. The event feed poller runs for the same
// lifetime.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("dashboard: listening on %s: %w", s.addr, err)
	}
	s.bound = listener.Addr()
	close(s.ready)

	// No WriteTimeout: it would cut long-lived event streams.
	server := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go s.pollLoop(ctx)

	slog.Info("dashboard listening",
		slogx.LoggerName("dashboard"),
		slog.String("addr", s.bound.String()))

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard: shutdown: %w", err)
	}

	slog.Info("dashboard stopped", slogx.LoggerName("dashboard"))
	return nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/inventory", s.handleInventory)
	mux.HandleFunc("GET /api/warehouses", s.handleWarehouses)
	mux.HandleFunc("GET /api/agents", s.handleAgents)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/scenario/schema", s.handleSchema)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": strfmt.DateTime(time.Now()),
	})
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"inventory": s.store.Levels(),
	})
}

func (s *Server) handleWarehouses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"warehouses": s.store.Warehouses(),
	})
}

type agentStatus struct {
	Status       string           `json:"status"`
	MessagesSent uint64           `json:"messages_sent"`
	LastActivity *strfmt.DateTime `json:"last_activity,omitempty"`
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	metrics := s.bus.Metrics()

	ids := s.agents
	if len(ids) == 0 {
		for id := range metrics.BySender {
			ids = append(ids, id)
		}
	}

	agents := make(map[string]agentStatus, len(ids))
	for _, id := range ids {
		status := agentStatus{Status: "active", MessagesSent: metrics.BySender[id]}
		if recent := s.bus.History(broker.SentBy(id), broker.Limit(1)); len(recent) > 0 {
			at := recent[len(recent)-1].CreatedAt
			status.LastActivity = &at
		}
		agents[id] = status
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

// metricsSnapshot pairs the inventory KPIs with the bus counters. It
// is both the metrics endpoint's body and the recurring feed event.
type metricsSnapshot struct {
	KPIs      inventory.KPI   `json:"kpis"`
	Messaging broker.Metrics  `json:"messaging"`
	At        strfmt.DateTime `json:"timestamp"`
}

func (s *Server) snapshot() metricsSnapshot {
	return metricsSnapshot{
		KPIs:      s.store.KPIs(),
		Messaging: s.bus.Metrics(),
		At:        strfmt.DateTime(time.Now()),
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filters := make([]opts.Option[broker.HistoryQuery], 0, 3)
	if sender := query.Get("sender"); sender != "" {
		filters = append(filters, broker.SentBy(sender))
	}
	if kind := query.Get("kind"); kind != "" {
		filters = append(filters, broker.OfKind(messages.Kind(kind)))
	}

	limit := int64(defaultHistoryLimit)
	if raw := query.Get("limit"); raw != "" {
		parsed, err := swag.ConvertInt64(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	filters = append(filters, broker.Limit(int(limit)))

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": s.bus.History(filters...),
	})
}

// schemaJSON is rendered once; the schema is reflected from static
// types, so a marshal failure here is a programming mistake.
var schemaJSON = stdx.Must1(json.Marshal(scenario.Schema()))

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(schemaJSON)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding response",
			slogx.LoggerName("dashboard"),
			slogx.Error(err))
		http.Error(w, "encoding response failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
