// Package scenario describes the world a run operates on: the
// warehouse fleet, the SKU catalog, the supplier pool and the knobs
// for agent communication, optimization and simulation. Scenarios are
// built in code or loaded from JSONC files.
package scenario

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/casualjim/waggle/inventory"
)

// Comms holds the messaging knobs shared by every planner.
type Comms struct {
	MessageTimeoutSeconds     int `json:"message_timeout_seconds"`
	RetryAttempts             int `json:"retry_attempts"`
	CoordinationWindowSeconds int `json:"coordination_window_seconds"`
}

// MessageTimeout is the request/response deadline planners use.
func (c Comms) MessageTimeout() time.Duration {
	return time.Duration(c.MessageTimeoutSeconds) * time.Second
}

// CoordinationWindow is the cadence of coordination cycles.
func (c Comms) CoordinationWindow() time.Duration {
	return time.Duration(c.CoordinationWindowSeconds) * time.Second
}

// Weights balances the objectives of optimization decisions. The three
// weights must sum to one.
type Weights struct {
	Cost         float64 `json:"cost_weight"`
	Carbon       float64 `json:"carbon_weight"`
	ServiceLevel float64 `json:"service_level_weight"`
}

// Sim holds the random-event parameters of the simulation loop.
type Sim struct {
	TimeStepMinutes        int     `json:"time_step_minutes"`
	DemandSpikeProbability float64 `json:"demand_spike_probability"`
	DelayProbability       float64 `json:"delay_probability"`
	MaxDelayDays           int     `json:"max_delay_days"`
}

// TimeStep is the interval between simulation ticks.
func (s Sim) TimeStep() time.Duration {
	return time.Duration(s.TimeStepMinutes) * time.Minute
}

// Scenario is the complete description of one run.
type Scenario struct {
	Name       string                `json:"name"`
	Warehouses []inventory.Warehouse `json:"warehouses"`
	SKUs       []inventory.SKU       `json:"skus"`
	Suppliers  []inventory.Supplier  `json:"suppliers"`
	Comms      Comms                 `json:"agent_communication"`
	Weights    Weights               `json:"optimization_weights"`
	Sim        Sim                   `json:"simulation_params"`
}

// normalize fills in derivable fields: warehouse ids default to the
// lowercased name, demand multipliers to 1.0.
func (s *Scenario) normalize() {
	for i := range s.Warehouses {
		if s.Warehouses[i].ID == "" {
			s.Warehouses[i].ID = strings.ToLower(s.Warehouses[i].Name)
		}
	}
	for i := range s.SKUs {
		if s.SKUs[i].DemandMultiplier == 0 {
			s.SKUs[i].DemandMultiplier = 1.0
		}
	}
}

// Validate reports every problem with the scenario at once.
func (s *Scenario) Validate() error {
	var errs []error

	if len(s.Warehouses) == 0 {
		errs = append(errs, errors.New("scenario needs at least one warehouse"))
	}
	if len(s.SKUs) == 0 {
		errs = append(errs, errors.New("scenario needs at least one sku"))
	}
	if len(s.Suppliers) == 0 {
		errs = append(errs, errors.New("scenario needs at least one supplier"))
	}

	seenWarehouses := make(map[string]bool, len(s.Warehouses))
	for _, w := range s.Warehouses {
		switch {
		case w.ID == "":
			errs = append(errs, fmt.Errorf("warehouse %q has no id", w.Name))
		case seenWarehouses[w.ID]:
			errs = append(errs, fmt.Errorf("duplicate warehouse id %q", w.ID))
		}
		seenWarehouses[w.ID] = true
		if w.Capacity <= 0 {
			errs = append(errs, fmt.Errorf("warehouse %q needs positive capacity", w.ID))
		}
	}

	seenSKUs := make(map[string]bool, len(s.SKUs))
	for _, sku := range s.SKUs {
		switch {
		case sku.ID == "":
			errs = append(errs, fmt.Errorf("sku %q has no id", sku.Name))
		case seenSKUs[sku.ID]:
			errs = append(errs, fmt.Errorf("duplicate sku id %q", sku.ID))
		}
		seenSKUs[sku.ID] = true
		if sku.BaseDemandRate <= 0 {
			errs = append(errs, fmt.Errorf("sku %q needs a positive base demand rate", sku.ID))
		}
		if sku.UnitCost <= 0 {
			errs = append(errs, fmt.Errorf("sku %q needs a positive unit cost", sku.ID))
		}
		if sku.MinStock < 0 || sku.MaxStock <= sku.MinStock {
			errs = append(errs, fmt.Errorf("sku %q needs 0 <= min stock < max stock", sku.ID))
		}
	}

	seenSuppliers := make(map[string]bool, len(s.Suppliers))
	for _, sup := range s.Suppliers {
		switch {
		case sup.ID == "":
			errs = append(errs, fmt.Errorf("supplier %q has no id", sup.Name))
		case seenSuppliers[sup.ID]:
			errs = append(errs, fmt.Errorf("duplicate supplier id %q", sup.ID))
		}
		seenSuppliers[sup.ID] = true
		if sup.Reliability <= 0 || sup.Reliability > 1 {
			errs = append(errs, fmt.Errorf("supplier %q needs reliability in (0, 1]", sup.ID))
		}
		if sup.PriceMultiplier <= 0 {
			errs = append(errs, fmt.Errorf("supplier %q needs a positive price multiplier", sup.ID))
		}
		if sup.LeadTimeDays < 0 {
			errs = append(errs, fmt.Errorf("supplier %q has a negative lead time", sup.ID))
		}
	}

	for _, w := range []struct {
		name  string
		value float64
	}{
		{"cost_weight", s.Weights.Cost},
		{"carbon_weight", s.Weights.Carbon},
		{"service_level_weight", s.Weights.ServiceLevel},
	} {
		if w.value < 0 || w.value > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1]", w.name))
		}
	}
	if sum := s.Weights.Cost + s.Weights.Carbon + s.Weights.ServiceLevel; math.Abs(sum-1) > 1e-6 {
		errs = append(errs, fmt.Errorf("optimization weights must sum to 1, got %v", sum))
	}

	if s.Comms.MessageTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("message_timeout_seconds must be positive"))
	}
	if s.Comms.RetryAttempts < 0 {
		errs = append(errs, errors.New("retry_attempts cannot be negative"))
	}
	if s.Comms.CoordinationWindowSeconds <= 0 {
		errs = append(errs, errors.New("coordination_window_seconds must be positive"))
	}

	if s.Sim.TimeStepMinutes <= 0 {
		errs = append(errs, errors.New("time_step_minutes must be positive"))
	}
	if s.Sim.DemandSpikeProbability < 0 || s.Sim.DemandSpikeProbability > 1 {
		errs = append(errs, errors.New("demand_spike_probability must be in [0, 1]"))
	}
	if s.Sim.DelayProbability < 0 || s.Sim.DelayProbability > 1 {
		errs = append(errs, errors.New("delay_probability must be in [0, 1]"))
	}
	if s.Sim.MaxDelayDays < 0 {
		errs = append(errs, errors.New("max_delay_days cannot be negative"))
	}

	return errors.Join(errs...)
}

// Seed loads the scenario's fleet into a store and installs the
// initial stock position for every sku/warehouse pair. Initial stock
// sits between 60% and 100% of the SKU maximum, varied per pair but
// deterministic across runs, and never below the SKU minimum.
func (s *Scenario) Seed(store *inventory.Store) {
	for _, w := range s.Warehouses {
		store.AddWarehouse(w)
	}
	for _, sup := range s.Suppliers {
		store.AddSupplier(sup)
	}
	for _, sku := range s.SKUs {
		store.AddSKU(sku)
		for _, w := range s.Warehouses {
			store.SetLevel(inventory.Level{
				SKU:       sku.ID,
				Warehouse: w.ID,
				Current:   initialStock(sku, w.ID),
			})
		}
	}
}

func initialStock(sku inventory.SKU, warehouseID string) int {
	h := fnv.New32a()
	h.Write([]byte(sku.ID + warehouseID))
	pct := float64(h.Sum32()%100) / 100

	stock := int(float64(sku.MaxStock)*0.6 + float64(sku.MaxStock)*0.4*pct)
	return max(sku.MinStock, stock)
}
