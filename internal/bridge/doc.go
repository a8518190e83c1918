// Package bridge composes the hook pipeline and the event bus.
//
// Neither primitive depends on this package. It only offers conveniences
// built from their public operations:
//
//   - Notifier publishes pipeline diagnostics as "hook.error" events.
//   - PublishHook is a callback that publishes its execution data.
//   - Breaker holds per-component open flags owned outside the core.
//   - TripOnEvent and ResetOnEvent are listeners that flip a Breaker when
//     matching events arrive; GuardHook cancels calls while it is open.
//
// A typical wiring:
//
//	breaker := bridge.NewBreaker()
//	trip := bridge.TripOnEvent(bus, breaker, "cost.threshold.exceeded")
//	trip.Start()
//	defer trip.Stop(ctx)
//	reg.Register(hook.BeforeAgentExecution, hook.Highest, bridge.GuardHook(breaker))
package bridge
