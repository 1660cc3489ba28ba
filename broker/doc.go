// Package broker implements the in-process message broker that carries
// every envelope exchanged between agent identities. It routes
// point-to-point and broadcast deliveries, correlates request/response
// exchanges under a deadline, and keeps the append-only history and
// counters the dashboard polls.
//
// Design decisions:
//   - Identity-based routing: envelopes address logical identities, not
//     channels; a broadcast reaches every identity except the sender
//   - Ordered fan-out: handlers fire in registration order for a given
//     identity, and broadcast walks identities in first-subscription order
//   - Synchronous delivery: Publish invokes handlers inline so per-identity
//     ordering holds; concurrency comes from callers publishing from their
//     own goroutines
//   - Failure isolation: a handler error or panic is logged and counted,
//     never propagated to the publisher or to the remaining handlers
//   - One-shot correlation: a pending request resolves at most once; the
//     first Respond wins and the slot is gone by the time RequestResponse
//     returns, on every exit path
//
// Key concepts:
//   - Subscribe installs a handler under an identity; registration never
//     fails and duplicates are allowed
//   - Publish is fire-and-forget: handler results never travel back to
//     the publisher
//   - RequestResponse suspends the caller until a matching Respond or the
//     deadline, whichever comes first; a timeout is reported as a nil
//     payload, not an error
//   - History and Metrics are memory-resident snapshots for the process
//     lifetime
//
// Example usage:
//
//	b := broker.New(broker.WithDefaultTimeout(30 * time.Second))
//	b.Subscribe("supply", broker.HandlerFunc(handleSupply))
//
//	env := messages.New("logistics", messages.KindLogisticsRequest, payload,
//		messages.To("supply"), messages.AwaitingResponse())
//	reply, err := b.RequestResponse(ctx, env, time.Second)
//	if err != nil {
//		return err
//	}
//	if reply == nil {
//		// request timed out
//	}
package broker
