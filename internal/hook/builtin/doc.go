// Package builtin provides ready-made hook callbacks.
//
// Each builtin implements Hook: a hook.Callback with a name and a default
// priority. Register installs one at any number of points:
//
//	reg := hook.NewRegistry()
//	builtin.Register(reg, builtin.NewSecurityHook("", "process_executor"), hook.BeforeToolExecution)
//	builtin.Register(reg, builtin.NewLoggingHook(logger), hook.KnownPoints()...)
//
// # Built-in Hooks
//
//   - SecurityHook: cancels tool executions whose tool is on a deny list
//   - LoggingHook: logs every invocation through zerolog
//   - MetricsHook: counts invocations per point
//   - RateLimitHook: per-component token bucket that answers Retry when exhausted
//   - CostHook: accumulates cost per component and publishes an event when
//     a threshold is crossed
//
// All builtins are safe for concurrent use.
package builtin
