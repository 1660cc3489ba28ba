// Package agents contains the built-in planners: demand forecasting,
// supply monitoring, logistics optimization and supplier negotiation.
// Each one implements waggle.Planner and collaborates with the others
// purely through broker envelopes.
package agents

import "github.com/casualjim/waggle/messages"

// The identities the built-in planners subscribe under.
const (
	DemandIdentity      = "demand"
	SupplyIdentity      = "supply"
	LogisticsIdentity   = "logistics"
	NegotiationIdentity = "negotiation"
)

// historyWindow bounds the rolling sample windows the planners keep;
// none of the math looks further back than 30 samples.
const historyWindow = 30

func priorityForUrgency(urgency string) messages.Priority {
	switch urgency {
	case "high":
		return messages.PriorityHigh
	case "medium":
		return messages.PriorityMedium
	default:
		return messages.PriorityLow
	}
}
