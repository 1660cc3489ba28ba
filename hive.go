package waggle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fogfish/opts"

	"github.com/casualjim/waggle/broker"
	"github.com/casualjim/waggle/inventory"
	"github.com/casualjim/waggle/pkg/slogx"
	"github.com/casualjim/waggle/scenario"
)

// Planner is one autonomous participant in a hive. Setup registers its
// message handlers on the endpoint; Plan runs one periodic cycle of
// proactive work every Interval.
type Planner interface {
	Identity() string
	Setup(ep *Agent) error
	Interval() time.Duration
	Plan(ctx context.Context, ep *Agent) error
}

// Hive wires planners, a broker and an inventory store into one
// running system. Zero-value dependencies are built on demand: a hive
// constructed with nothing but planners gets a fresh broker and a
// store seeded from the default scenario.
type Hive struct {
	name     string
	bus      broker.Broker
	store    *inventory.Store
	scenario *scenario.Scenario
	planners []Planner
	seed     int64
	ownsBus  bool
}

var (
	// Name labels the hive in logs and reports.
	Name = opts.ForName[Hive, string]("name")

	// WithBroker runs the hive on an existing broker instead of a fresh
	// one. The hive will not close a broker it did not create.
	WithBroker = opts.ForName[Hive, broker.Broker]("bus")

	// WithStore runs the hive against an existing store. The hive seeds
	// only stores it created itself.
	WithStore = opts.ForName[Hive, *inventory.Store]("store")

	// WithScenario selects the world description; scenario.Default when
	// omitted.
	WithScenario = opts.ForName[Hive, *scenario.Scenario]("scenario")

	// WithSeed fixes the random source of the disruption loop, for
	// reproducible runs.
	WithSeed = opts.ForName[Hive, int64]("seed")
)

// Planners adds planners to the hive in the order given.
func Planners(planner Planner, extraPlanners ...Planner) opts.Option[Hive] {
	return opts.Type[Hive](func(h *Hive) error {
		h.planners = append(h.planners, planner)
		h.planners = append(h.planners, extraPlanners...)
		return nil
	})
}

// New builds a hive. Invalid options panic; missing dependencies get
// defaults as described on Hive.
func New(options ...opts.Option[Hive]) *Hive {
	h := &Hive{
		name: "waggle",
		seed: time.Now().UnixNano(),
	}
	if err := opts.Apply(h, options); err != nil {
		panic(err)
	}
	if h.scenario == nil {
		h.scenario = scenario.Default()
	}
	if h.bus == nil {
		var busOptions []opts.Option[broker.Local]
		if d := h.scenario.Comms.MessageTimeout(); d > 0 {
			busOptions = append(busOptions, broker.WithDefaultTimeout(d))
		}
		h.bus = broker.New(busOptions...)
		h.ownsBus = true
	}
	if h.store == nil {
		h.store = inventory.NewStore()
		h.scenario.Seed(h.store)
	}
	return h
}

// Bus exposes the hive's broker, e.g. for a dashboard on the side.
func (h *Hive) Bus() broker.Broker { return h.bus }

// Store exposes the hive's inventory store.
func (h *Hive) Store() *inventory.Store { return h.store }

// Scenario exposes the world description the hive runs on.
func (h *Hive) Scenario() *scenario.Scenario { return h.scenario }

// Run starts every planner and blocks until ctx is cancelled. Each
// planner gets its own endpoint and a goroutine driving its planning
// cycle; a separate goroutine injects the scenario's random demand
// spikes and supplier delays. Cancellation is the normal way to stop a
// run and yields a nil error.
func (h *Hive) Run(ctx context.Context) error {
	if len(h.planners) == 0 {
		return errors.New("hive has no planners")
	}

	endpoints := make([]*Agent, 0, len(h.planners))
	for _, p := range h.planners {
		ep := NewAgent(p.Identity(), h.bus)
		if err := p.Setup(ep); err != nil {
			return fmt.Errorf("setting up planner %s: %w", p.Identity(), err)
		}
		ep.Start()
		endpoints = append(endpoints, ep)
	}

	slog.Info("hive running",
		slogx.LoggerName("hive"),
		slog.String("name", h.name),
		slog.Int("planners", len(h.planners)))

	var wg sync.WaitGroup
	for i, p := range h.planners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.planLoop(ctx, p, endpoints[i])
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.disruptLoop(ctx)
	}()

	<-ctx.Done()
	wg.Wait()

	if h.ownsBus {
		_ = h.bus.Close()
	}
	slog.Info("hive stopped", slogx.LoggerName("hive"), slog.String("name", h.name))
	return nil
}

func (h *Hive) planLoop(ctx context.Context, p Planner, ep *Agent) {
	interval := p.Interval()
	if interval <= 0 {
		interval = h.scenario.Comms.CoordinationWindow()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.planOnce(ctx, p, ep)
		}
	}
}

// planOnce contains one planning cycle. A panicking planner loses its
// cycle, not its goroutine.
func (h *Hive) planOnce(ctx context.Context, p Planner, ep *Agent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("planning cycle panicked",
				slogx.LoggerName("hive"),
				slog.String("planner", p.Identity()),
				slog.Any("panic", r))
		}
	}()

	if err := p.Plan(ctx, ep); err != nil {
		slog.Error("planning cycle failed",
			slogx.LoggerName("hive"),
			slog.String("planner", p.Identity()),
			slogx.Error(err))
	}
}

func (h *Hive) disruptLoop(ctx context.Context) {
	sim := h.scenario.Sim
	if sim.TimeStep() <= 0 {
		return
	}

	rng := rand.New(rand.NewSource(h.seed))
	ticker := time.NewTicker(sim.TimeStep())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.disrupt(rng)
		}
	}
}

// disrupt rolls the scenario's event dice once: maybe a demand spike on
// a random SKU, maybe a delay at a random supplier.
func (h *Hive) disrupt(rng *rand.Rand) {
	sim := h.scenario.Sim

	if rng.Float64() < sim.DemandSpikeProbability && len(h.scenario.SKUs) > 0 {
		sku := h.scenario.SKUs[rng.Intn(len(h.scenario.SKUs))]
		multiplier := 1.5 + rng.Float64()*1.5
		h.store.SetDemandMultiplier(sku.ID, multiplier)
		slog.Info("demand spike",
			slogx.LoggerName("hive"),
			slog.String("sku", sku.ID),
			slog.Float64("multiplier", multiplier))
	}

	if rng.Float64() < sim.DelayProbability && len(h.scenario.Suppliers) > 0 && sim.MaxDelayDays > 0 {
		sup := h.scenario.Suppliers[rng.Intn(len(h.scenario.Suppliers))]
		days := 1 + rng.Intn(sim.MaxDelayDays)
		h.store.SetSupplierDelay(sup.ID, days)
		slog.Warn("supplier disruption",
			slogx.LoggerName("hive"),
			slog.String("supplier", sup.ID),
			slog.Int("delay_days", days))
	}
}

// Report renders a markdown summary of the run so far: inventory KPIs,
// messaging volume and the open order book.
func (h *Hive) Report() string {
	kpi := h.store.KPIs()
	metrics := h.bus.Metrics()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s run report\n\n", h.name)

	b.WriteString("## Inventory\n\n")
	b.WriteString("| KPI | Value |\n|-----|-------|\n")
	fmt.Fprintf(&b, "| Total inventory value | $%.2f |\n", kpi.TotalValue)
	fmt.Fprintf(&b, "| Service level | %.1f%% |\n", kpi.ServiceLevel*100)
	fmt.Fprintf(&b, "| Stockout incidents | %d |\n", kpi.Stockouts)
	fmt.Fprintf(&b, "| Overstock incidents | %d |\n", kpi.Overstocks)
	fmt.Fprintf(&b, "| Open orders | %d |\n", kpi.OpenOrders)
	fmt.Fprintf(&b, "| Active shipments | %d |\n\n", kpi.ActiveShipments)

	b.WriteString("## Messaging\n\n")
	fmt.Fprintf(&b, "%d envelopes across %d identities, %d handler failures.\n\n",
		metrics.TotalPublished, metrics.Identities, metrics.HandlerFailures)

	if len(metrics.ByKind) > 0 {
		b.WriteString("| Kind | Envelopes |\n|------|-----------|\n")
		for _, kind := range slices.Sorted(maps.Keys(metrics.ByKind)) {
			fmt.Fprintf(&b, "| %s | %d |\n", kind, metrics.ByKind[kind])
		}
		b.WriteString("\n")
	}

	if orders := h.store.OpenOrders(); len(orders) > 0 {
		b.WriteString("## Open orders\n\n")
		b.WriteString("| SKU | Warehouse | Supplier | Qty | Total | Status |\n")
		b.WriteString("|-----|-----------|----------|-----|-------|--------|\n")
		for _, o := range orders {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | $%.2f | %s |\n",
				o.SKU, o.Warehouse, o.Supplier, o.Quantity, o.TotalCost(), o.Status)
		}
		b.WriteString("\n")
	}

	return b.String()
}
