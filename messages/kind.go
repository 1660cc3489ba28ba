package messages

import "fmt"

// Kind categorizes the intent of an envelope. The set is open ended:
// the broker routes by recipient, not by kind, so collaborating agents
// are free to introduce new kinds without touching the core.
type Kind string

// Canonical kinds exchanged by the built-in planners.
const (
	KindDemandForecast     Kind = "demand_forecast"
	KindSupplyAlert        Kind = "supply_alert"
	KindLogisticsRequest   Kind = "logistics_request"
	KindNegotiationOffer   Kind = "negotiation_offer"
	KindInventoryUpdate    Kind = "inventory_update"
	KindOptimizationResult Kind = "optimization_result"
)

func (k Kind) String() string {
	return string(k)
}

// Priority is an informational urgency tag carried on envelopes. The
// broker never reorders deliveries by it; consumers and the dashboard
// use it for display and triage.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}
