package agents

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/fogfish/opts"

	"github.com/casualjim/waggle"
	"github.com/casualjim/waggle/internal/timeseries"
	"github.com/casualjim/waggle/inventory"
	"github.com/casualjim/waggle/messages"
	"github.com/casualjim/waggle/pkg/slogx"
	"github.com/casualjim/waggle/pkg/uuidx"
)

const (
	// basePrice anchors the simulated supplier price series.
	basePrice = 10.0

	// negotiationChance is the per-cycle probability of opening a
	// speculative negotiation.
	negotiationChance = 0.2

	// responseChance is the per-cycle probability of a supplier
	// answering an open negotiation.
	responseChance = 0.3

	// maxDiscount caps what any negotiation can ask for.
	maxDiscount = 0.25

	// priceWindow is how many samples back a price swing is measured.
	priceWindow = 7

	// priceSwing is the relative move that triggers a price alert.
	priceSwing = 0.10

	// bulkDemandThreshold is the forecast volume that justifies bulk
	// negotiations.
	bulkDemandThreshold = 50.0

	// largeOrderThreshold is the order quantity that justifies
	// negotiating before committing.
	largeOrderThreshold = 100

	// negotiationTTL is how long a supplier gets to answer before the
	// negotiation times out.
	negotiationTTL = 24 * time.Hour
)

// negotiationStrategies maps each strategy to its base discount ask.
var negotiationStrategies = map[string]float64{
	"volume_discount":   0.15,
	"loyalty_bonus":     0.05,
	"carbon_incentive":  0.08,
	"reliability_bonus": 0.10,
}

// strategySuccessFactors skews the odds per strategy. Loyalty asks are
// easy to land, carbon incentives less so.
var strategySuccessFactors = map[string]float64{
	"volume_discount":   0.8,
	"loyalty_bonus":     0.9,
	"carbon_incentive":  0.7,
	"reliability_bonus": 0.75,
}

// strategyNames is the stable order used for random selection.
var strategyNames = []string{
	"volume_discount",
	"loyalty_bonus",
	"carbon_incentive",
	"reliability_bonus",
}

type negotiation struct {
	id          string
	supplier    string
	strategy    string
	discount    float64
	successProb float64
	deadline    time.Time
}

// resolution is a negotiation outcome decided under the lock and
// announced after it.
type resolution struct {
	neg      negotiation
	outcome  string
	discount float64
}

type scoredSupplier struct {
	sup   inventory.Supplier
	score float64
}

// NegotiationPlanner works the supplier side of cost: it watches
// simulated price series, opens discount negotiations when demand,
// orders or alerts warrant them, and settles open negotiations as
// suppliers respond.
type NegotiationPlanner struct {
	store    *inventory.Store
	interval time.Duration
	seed     int64
	ep       *waggle.Agent

	mu        sync.Mutex
	rng       *rand.Rand
	prices    map[string]*timeseries.Series
	active    map[string]*negotiation
	completed int
	accepted  int
}

var (
	// NegotiationInterval overrides the negotiation cadence, three
	// minutes by default.
	NegotiationInterval = opts.ForName[NegotiationPlanner, time.Duration]("interval")

	// NegotiationSeed fixes the negotiation dice for reproducible runs.
	NegotiationSeed = opts.ForName[NegotiationPlanner, int64]("seed")
)

func NewNegotiationPlanner(store *inventory.Store, options ...opts.Option[NegotiationPlanner]) *NegotiationPlanner {
	p := &NegotiationPlanner{
		store:    store,
		interval: 3 * time.Minute,
		seed:     time.Now().UnixNano(),
		prices:   make(map[string]*timeseries.Series),
		active:   make(map[string]*negotiation),
	}
	if err := opts.Apply(p, options); err != nil {
		panic(err)
	}
	p.rng = rand.New(rand.NewSource(p.seed))
	return p
}

func (p *NegotiationPlanner) Identity() string { return NegotiationIdentity }

func (p *NegotiationPlanner) Interval() time.Duration { return p.interval }

func (p *NegotiationPlanner) Setup(ep *waggle.Agent) error {
	p.ep = ep
	ep.RegisterHandler(messages.KindSupplyAlert, p.onSupplyAlert)
	ep.RegisterHandler(messages.KindDemandForecast, p.onDemandForecast)
	ep.RegisterHandler(messages.KindOptimizationResult, p.onOptimizationResult)
	return nil
}

// Plan runs one negotiation cycle: refresh price series, maybe open a
// speculative negotiation, then settle whatever suppliers answered.
func (p *NegotiationPlanner) Plan(ctx context.Context, ep *waggle.Agent) error {
	if err := p.monitorPrices(ctx, ep); err != nil {
		return err
	}
	if err := p.evaluateOpportunities(ctx, ep); err != nil {
		return err
	}
	return p.processActive(ctx, ep)
}

// monitorPrices samples a noisy price per supplier and raises an alert
// when the series moved more than priceSwing across the window.
func (p *NegotiationPlanner) monitorPrices(ctx context.Context, ep *waggle.Agent) error {
	var alerts []inventory.SupplyAlert

	p.mu.Lock()
	for _, sup := range p.store.Suppliers() {
		price := basePrice * sup.PriceMultiplier * (1 + p.rng.NormFloat64()*0.05)

		series := p.prices[sup.ID]
		if series == nil {
			series = timeseries.New(historyWindow)
			p.prices[sup.ID] = series
		}
		series.Append(price)

		window := series.Last(priceWindow)
		if len(window) < 2 {
			continue
		}
		change := (window[len(window)-1] - window[0]) / window[0]
		if change < priceSwing && change > -priceSwing {
			continue
		}
		alerts = append(alerts, inventory.SupplyAlert{
			AlertType:          "price_change",
			Supplier:           sup.ID,
			PriceChangePercent: change * 100,
			CurrentPrice:       price,
			Message:            fmt.Sprintf("price of %s moved %.1f%% across the last %d samples", sup.ID, change*100, len(window)),
		})
	}
	p.mu.Unlock()

	for _, alert := range alerts {
		slog.Info("significant price change",
			slogx.LoggerName("agents.negotiation"),
			slog.String("supplier", alert.Supplier),
			slog.Float64("change_percent", alert.PriceChangePercent))
		if err := ep.Broadcast(ctx, alert.Kind(), alert.Payload(),
			messages.WithPriority(messages.PriorityMedium)); err != nil {
			return err
		}
	}
	return nil
}

// evaluateOpportunities occasionally opens a negotiation with a random
// supplier and strategy.
func (p *NegotiationPlanner) evaluateOpportunities(ctx context.Context, ep *waggle.Agent) error {
	suppliers := p.store.Suppliers()
	if len(suppliers) == 0 {
		return nil
	}

	p.mu.Lock()
	roll := p.rng.Float64()
	supIdx := p.rng.Intn(len(suppliers))
	stratIdx := p.rng.Intn(len(strategyNames))
	p.mu.Unlock()

	if roll >= negotiationChance {
		return nil
	}
	return p.initiate(ctx, ep, suppliers[supIdx], strategyNames[stratIdx])
}

// initiate opens a negotiation with a supplier unless one is already
// running. The ask grows with supplier reliability and carbon
// efficiency, capped at maxDiscount.
func (p *NegotiationPlanner) initiate(ctx context.Context, ep *waggle.Agent, sup inventory.Supplier, strategy string) error {
	discount := min(negotiationStrategies[strategy]+sup.Reliability*0.1+(1-sup.CarbonFactor)*0.05, maxDiscount)
	successProb := min(max(0.6+sup.Reliability*0.3+(strategySuccessFactors[strategy]-0.6), 0.1), 0.95)

	p.mu.Lock()
	if _, busy := p.active[sup.ID]; busy {
		p.mu.Unlock()
		return nil
	}
	id := "neg_" + sup.ID + "_" + uuidx.NewString()[:8]
	p.active[sup.ID] = &negotiation{
		id:          id,
		supplier:    sup.ID,
		strategy:    strategy,
		discount:    discount,
		successProb: successProb,
		deadline:    time.Now().Add(negotiationTTL),
	}
	p.mu.Unlock()

	slog.Info("negotiation opened",
		slogx.LoggerName("agents.negotiation"),
		slog.String("supplier", sup.ID),
		slog.String("strategy", strategy),
		slog.Float64("proposed_discount", discount))

	offer := inventory.NegotiationOffer{
		NegotiationID:      id,
		Supplier:           sup.ID,
		Strategy:           strategy,
		ProposedDiscount:   discount,
		SuccessProbability: successProb,
		Status:             "active",
		Message:            fmt.Sprintf("initiating %s negotiation with %s", strategy, sup.ID),
	}
	return ep.Broadcast(ctx, offer.Kind(), offer.Payload())
}

/// processActive settles open negotiations: past-deadline ones time
// out, the rest get a simulated supplier response. Accepted discounts
// land in the store as a lower price multiplier.
func (p *NegotiationPlanner) processActive(ctx context.Context, ep *waggle.Agent) error {
	now := time.Now()
	var resolved []resolution

	p.mu.Lock()
	for supplier, n := range p.active {
		var r resolution
		switch {
		case now.After(n.deadline):
			r = resolution{neg: *n, outcome: "timeout"}
		case p.rng.Float64() < responseChance:
			if p.rng.Float64() < n.successProb {
				r = resolution{neg: *n, outcome: "accepted", discount: n.discount * (0.8 + p.rng.Float64()*0.2)}
			} else {
				r = resolution{neg: *n, outcome: "rejected"}
			}
		default:
			continue
		}
		delete(p.active, supplier)
		p.completed++
		if r.outcome == "accepted" {
			p.accepted++
		}
		resolved = append(resolved, r)
	}
	p.mu.Unlock()

	for _, r := range resolved {
		offer := inventory.NegotiationOffer{
			NegotiationID: r.neg.id,
			Supplier:      r.neg.supplier,
			Strategy:      r.neg.strategy,
			Status:        r.outcome,
		}
		if r.outcome == "accepted" {
			multiplier, _ := p.store.ApplyDiscount(r.neg.supplier, r.discount)
			offer.Discount = r.discount
			offer.NewPriceMultiplier = multiplier
			offer.Message = fmt.Sprintf("negotiation with %s succeeded at %.1f%% discount", r.neg.supplier, r.discount*100)
			slog.Info("negotiation accepted",
				slogx.LoggerName("agents.negotiation"),
				slog.String("supplier", r.neg.supplier),
				slog.Float64("discount", r.discount),
				slog.Float64("price_multiplier", multiplier))
		} else {
			offer.Message = fmt.Sprintf("negotiation with %s resolved: %s", r.neg.supplier, r.outcome)
			slog.Info("negotiation resolved",
				slogx.LoggerName("agents.negotiation"),
				slog.String("supplier", r.neg.supplier),
				slog.String("outcome", r.outcome))
		}
		if err := ep.Broadcast(ctx, offer.Kind(), offer.Payload()); err != nil {
			return err
		}
	}
	return nil
}

// onSupplyAlert opens emergency negotiations on low stock and shops
// for cheaper alternatives when a supplier's price jumps.
func (p *NegotiationPlanner) onSupplyAlert(ctx context.Context, env *messages.Envelope) (*messages.Payload, error) {
	alert := inventory.SupplyAlertFromPayload(env.Payload)
	switch alert.AlertType {
	case "low_stock":
		for _, sup := range p.emergencySuppliers(2) {
			if err := p.initiate(ctx, p.ep, sup, "volume_discount"); err != nil {
				return nil, err
			}
		}
	case "price_change":
		if alert.Supplier == "" || alert.PriceChangePercent <= 10 {
			return nil, nil
		}
		for _, sup := range p.cheaperAlternatives(alert.Supplier, 2) {
			if err := p.initiate(ctx, p.ep, sup, "volume_discount"); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

// emergencySuppliers ranks suppliers for emergency sourcing, favoring
// reliability and speed over cost.
func (p *NegotiationPlanner) emergencySuppliers(limit int) []inventory.Supplier {
	var scored []scoredSupplier
	for _, sup := range p.store.Suppliers() {
		score := 0.5*sup.Reliability +
			0.3/float64(sup.EffectiveLeadTime()+1) +
			0.2/sup.CarbonFactor
		scored = append(scored, scoredSupplier{sup: sup, score: score})
	}
	slices.SortFunc(scored, func(a, b scoredSupplier) int {
		return cmp.Compare(b.score, a.score)
	})

	picked := make([]inventory.Supplier, 0, limit)
	for _, s := range scored[:min(limit, len(scored))] {
		picked = append(picked, s.sup)
	}
	return picked
}

// cheaperAlternatives lists suppliers at least 5% cheaper than the one
// whose price jumped, cheapest first.
func (p *NegotiationPlanner) cheaperAlternatives(current string, limit int) []inventory.Supplier {
	cur, found := p.store.Supplier(current)
	if !found {
		return nil
	}

	var alternatives []inventory.Supplier
	for _, sup := range p.store.Suppliers() {
		if sup.ID == current {
			continue
		}
		if sup.PriceMultiplier < cur.PriceMultiplier*0.95 {
			alternatives = append(alternatives, sup)
		}
	}
	slices.SortFunc(alternatives, func(a, b inventory.Supplier) int {
		return cmp.Compare(a.PriceMultiplier, b.PriceMultiplier)
	})
	return alternatives[:min(limit, len(alternatives))]
}

// onDemandForecast negotiates bulk terms ahead of urgent high-volume
// demand.
func (p *NegotiationPlanner) onDemandForecast(ctx context.Context, env *messages.Envelope) (*messages.Payload, error) {
	forecast := inventory.DemandForecastFromPayload(env.Payload)
	if forecast.Urgency != "high" || forecast.ForecastedDemand <= bulkDemandThreshold {
		return nil, nil
	}
	for _, sup := range p.bulkSuppliers(2) {
		if err := p.initiate(ctx, p.ep, sup, "volume_discount"); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// bulkSuppliers lists highly reliable suppliers ordered by reliability
// then carbon efficiency.
func (p *NegotiationPlanner) bulkSuppliers(limit int) []inventory.Supplier {
	var bulk []inventory.Supplier
	for _, sup := range p.store.Suppliers() {
		if sup.Reliability > 0.8 {
			bulk = append(bulk, sup)
		}
	}
	slices.SortFunc(bulk, func(a, b inventory.Supplier) int {
		if c := cmp.Compare(b.Reliability, a.Reliability); c != 0 {
			return c
		}
		return cmp.Compare(a.CarbonFactor, b.CarbonFactor)
	})
	return bulk[:min(limit, len(bulk))]
}

// onOptimizationResult negotiates before large replenishment orders
// get committed.
func (p *NegotiationPlanner) onOptimizationResult(ctx context.Context, env *messages.Envelope) (*messages.Payload, error) {
	result := inventory.OptimizationResultFromPayload(env.Payload)
	if result.Action != "order" || result.Quantity <= largeOrderThreshold {
		return nil, nil
	}
	if best := p.orderSuppliers(result.Quantity, 1); len(best) > 0 {
		return nil, p.initiate(ctx, p.ep, best[0], "volume_discount")
	}
	return nil, nil
}

// orderSuppliers ranks suppliers for a specific order, weighing
// reliability, price, speed, carbon and order size.
func (p *NegotiationPlanner) orderSuppliers(quantity, limit int) []inventory.Supplier {
	var scored []scoredSupplier
	for _, sup := range p.store.Suppliers() {
		score := 0.3*sup.Reliability +
			0.2/sup.PriceMultiplier +
			0.2/float64(sup.EffectiveLeadTime()+1) +
			0.1/sup.CarbonFactor +
			0.2*float64(quantity)/1000
		scored = append(scored, scoredSupplier{sup: sup, score: score})
	}
	slices.SortFunc(scored, func(a, b scoredSupplier) int {
		return cmp.Compare(b.score, a.score)
	})

	picked := make([]inventory.Supplier, 0, limit)
	for _, s := range scored[:min(limit, len(scored))] {
		picked = append(picked, s.sup)
	}
	return picked
}
