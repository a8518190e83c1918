// Package dispatch runs long-lived event consumers.
//
// A Listener owns one bus subscription for its whole life: it subscribes when
// it starts, drains the subscription with ReceiveBatch, hands each event to a
// Handler, and unsubscribes when it stops. Stopping is simply ceasing to poll.
//
// # Panic Recovery
//
// Handlers run through an Executor that recovers panics, so a misbehaving
// handler never takes down the listener. Panics are reported via a
// configurable PanicHandler and counted in the listener's stats.
//
// # Usage
//
//	l := dispatch.NewListener(bus, "cost.threshold.*", dispatch.HandlerFunc(
//	    func(ctx context.Context, ev event.Event) error {
//	        return breaker.Open(ev.Data.Get("component").String())
//	    }),
//	    dispatch.WithBatchSize(32),
//	)
//	g.Go(func() error { return l.Run(ctx) })
package dispatch
