/*
Package waggle provides an in-process message broker for collaborating
agents, plus the orchestration layer that runs a fleet of inventory
planners on top of it.

The package is built around a few core pieces:

  - Envelopes: immutable messages with ordered payloads (messages package)
  - Broker: asynchronous publish/subscribe with request/response (broker package)
  - Agents: endpoints that route incoming envelopes to per-kind handlers
  - Hive: the process-level assembly of broker, store, scenario and planners

# Basic Usage

A typical setup wires planners into a hive and runs it until the context
is cancelled:

	hive := waggle.New(
		waggle.Name("fleet"),
		waggle.WithScenario(scenario.Default()),
		waggle.Planners(
			agents.NewDemandPlanner(store),
			agents.NewSupplyPlanner(store),
		),
	)

	if err := hive.Run(ctx); err != nil {
		// Handle error
	}

For direct conversations without the hive, build an endpoint on a broker:

	bus := broker.New()
	ep := waggle.NewAgent("demand", bus)
	ep.RegisterHandler(messages.KindInventoryUpdate, onUpdate)
	ep.Start()

	reply, err := ep.Send(ctx, "supply", messages.KindLogisticsRequest, payload,
		waggle.AwaitResponse(30*time.Second))

# Delivery Model

Publishing is fire-and-forget: the broker records the envelope, then
invokes every matching handler synchronously and in registration order.
Handler return values are never delivered back to the publisher; a
response is a separate envelope resolved through the broker's pending
table. A request that nobody answers yields a nil payload after the
timeout, never an error.

Handler failures are contained. An error return or a panic inside a
handler is logged and counted, and the remaining fan-out proceeds. An
endpoint whose handler fails while a response is expected answers with a
structured error payload instead of staying silent.

# Thread Safety

Brokers, endpoints and the store are safe for concurrent use. Delivery
for a single publish is sequential; concurrency comes from publishing
goroutines, not from the broker spawning its own.
*/
package waggle
