package agents

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/fogfish/opts"

	"github.com/casualjim/waggle"
	"github.com/casualjim/waggle/internal/timeseries"
	"github.com/casualjim/waggle/inventory"
	"github.com/casualjim/waggle/messages"
	"github.com/casualjim/waggle/pkg/slogx"
)

// DemandPlanner forecasts per-SKU demand from observed consumption and
// broadcasts the projections. Each planning cycle it also simulates
// one demand observation per SKU, draws the stock down at a random
// warehouse and shares the observation as an inventory update.
type DemandPlanner struct {
	store    *inventory.Store
	interval time.Duration
	seed     int64

	mu      sync.Mutex
	rng     *rand.Rand
	history map[string]*timeseries.Series
}

var (
	// DemandInterval overrides the planning cadence, one minute by
	// default.
	DemandInterval = opts.ForName[DemandPlanner, time.Duration]("interval")

	// DemandSeed fixes the observation noise for reproducible runs.
	DemandSeed = opts.ForName[DemandPlanner, int64]("seed")
)

func NewDemandPlanner(store *inventory.Store, options ...opts.Option[DemandPlanner]) *DemandPlanner {
	p := &DemandPlanner{
		store:    store,
		interval: time.Minute,
		seed:     time.Now().UnixNano(),
		history:  make(map[string]*timeseries.Series),
	}
	if err := opts.Apply(p, options); err != nil {
		panic(err)
	}
	p.rng = rand.New(rand.NewSource(p.seed))
	return p
}

func (p *DemandPlanner) Identity() string { return DemandIdentity }

func (p *DemandPlanner) Interval() time.Duration { return p.interval }

func (p *DemandPlanner) Setup(ep *waggle.Agent) error {
	ep.RegisterHandler(messages.KindInventoryUpdate, p.onInventoryUpdate)
	ep.RegisterHandler(messages.KindSupplyAlert, p.onSupplyAlert)
	return nil
}

// Plan runs one forecasting cycle per SKU: project from the history
// gathered so far, broadcast the forecast, then simulate this cycle's
// consumption and report it for the other planners.
func (p *DemandPlanner) Plan(ctx context.Context, ep *waggle.Agent) error {
	now := time.Now()
	for _, sku := range p.store.SKUs() {
		forecast := p.forecast(sku, now)
		err := ep.Broadcast(ctx, forecast.Kind(), forecast.Payload(),
			messages.WithPriority(priorityForUrgency(forecast.Urgency)))
		if err != nil {
			return err
		}

		observed, warehouse := p.observeDemand(sku)
		update := inventory.InventoryUpdate{
			SKU:          sku.ID,
			Warehouse:    warehouse,
			ActualDemand: observed,
		}
		if err := ep.Broadcast(ctx, update.Kind(), update.Payload()); err != nil {
			return err
		}
	}
	return nil
}

// observeDemand simulates one consumption event: the base rate scaled
// by the active multiplier with 25% noise, drawn down at a random
// warehouse. Returns the observation and where it landed.
func (p *DemandPlanner) observeDemand(sku inventory.SKU) (float64, string) {
	warehouses := p.store.Warehouses()

	p.mu.Lock()
	observed := sku.BaseDemandRate * sku.DemandMultiplier * (0.75 + p.rng.Float64()*0.5)
	p.record(sku.ID, observed)
	var warehouse string
	if len(warehouses) > 0 {
		warehouse = warehouses[p.rng.Intn(len(warehouses))].ID
	}
	p.mu.Unlock()

	if units := int(math.Round(observed)); units > 0 && warehouse != "" {
		if _, err := p.store.AdjustStock(sku.ID, warehouse, -units); err != nil {
			slog.Warn("could not apply demand drawdown",
				slogx.LoggerName("agents.demand"),
				slog.String("sku", sku.ID),
				slog.String("warehouse", warehouse),
				slogx.Error(err))
		}
	}
	return observed, warehouse
}

func (p *DemandPlanner) record(sku string, demand float64) {
	series, found := p.history[sku]
	if !found {
		series = timeseries.New(historyWindow)
		p.history[sku] = series
	}
	series.Append(demand)
}

// forecast projects demand for one SKU. With enough history it is a
// seven-sample moving average with a damped trend term and a weekday
// seasonality factor; with little or none it falls back to the base
// rate at low confidence. The active demand multiplier scales the
// result last.
func (p *DemandPlanner) forecast(sku inventory.SKU, now time.Time) inventory.DemandForecast {
	p.mu.Lock()
	series := p.history[sku.ID]

	var n int
	if series != nil {
		n = series.Len()
	}

	var projected, confidence float64
	switch {
	case n == 0:
		projected = sku.BaseDemandRate
		confidence = 0.3
	case n < 7:
		projected = sku.BaseDemandRate
		confidence = 0.4
	default:
		projected = series.Mean(7)
		if n >= 14 {
			projected += trendOf(series) * 0.5
		}
		projected *= seasonalityFactor(now)
		confidence = math.Min(0.95, 0.5+float64(n)*0.02)
	}

	trend := trendOf(series)
	volatility := volatilityOf(series)
	p.mu.Unlock()

	projected *= sku.DemandMultiplier

	return inventory.DemandForecast{
		SKU:              sku.ID,
		ForecastedDemand: projected,
		Confidence:       confidence,
		HorizonDays:      7,
		Urgency:          urgencyFor(volatility, confidence),
		Trend:            trend,
		Seasonality:      seasonalityFactor(now),
		Volatility:       volatility,
	}
}

// trendOf is the difference between the means of the two most recent
// seven-sample windows. Zero without fourteen samples.
func trendOf(s *timeseries.Series) float64 {
	if s == nil || s.Len() < 14 {
		return 0
	}
	window := s.Last(14)
	var older, recent float64
	for _, v := range window[:7] {
		older += v
	}
	for _, v := range window[7:] {
		recent += v
	}
	return (recent - older) / 7
}

// volatilityOf is the coefficient of variation over the last seven
// samples, defaulting to 0.5 when the history is too thin to judge.
func volatilityOf(s *timeseries.Series) float64 {
	if s == nil || s.Len() < 7 {
		return 0.5
	}
	mean := s.Mean(7)
	if mean <= 0 {
		return 0.5
	}
	return s.Std(7) / mean
}

func seasonalityFactor(now time.Time) float64 {
	return 1.0 + 0.1*math.Sin(2*math.Pi*float64(now.Weekday())/7)
}

func urgencyFor(volatility, confidence float64) string {
	switch {
	case volatility > 0.8 || confidence < 0.4:
		return "high"
	case volatility > 0.5 || confidence < 0.7:
		return "medium"
	default:
		return "low"
	}
}

// onInventoryUpdate folds demand observations reported by other
// planners into the history.
func (p *DemandPlanner) onInventoryUpdate(ctx context.Context, env *messages.Envelope) (*messages.Payload, error) {
	update := inventory.InventoryUpdateFromPayload(env.Payload)
	if update.SKU == "" || update.ActualDemand <= 0 {
		return nil, nil
	}

	p.mu.Lock()
	p.record(update.SKU, update.ActualDemand)
	p.mu.Unlock()

	slog.Debug("recorded reported demand",
		slogx.LoggerName("agents.demand"),
		slog.String("sku", update.SKU),
		slog.Float64("demand", update.ActualDemand))
	return nil, nil
}

// onSupplyAlert raises the demand multiplier when a stockout looms:
// scarcity tends to concentrate orders before the shelf goes empty.
func (p *DemandPlanner) onSupplyAlert(ctx context.Context, env *messages.Envelope) (*messages.Payload, error) {
	alert := inventory.SupplyAlertFromPayload(env.Payload)
	if alert.AlertType != "low_stock" || alert.SKU == "" {
		return nil, nil
	}

	sku, found := p.store.SKU(alert.SKU)
	if !found {
		return nil, nil
	}

	boosted := sku.DemandMultiplier * 1.2
	p.store.SetDemandMultiplier(alert.SKU, boosted)
	slog.Info("raised demand multiplier on stockout risk",
		slogx.LoggerName("agents.demand"),
		slog.String("sku", alert.SKU),
		slog.Float64("multiplier", boosted))
	return nil, nil
}
