// Package hook provides the priority-ordered hook pipeline.
//
// Collaborators invoke a named lifecycle Point (BeforeToolExecution,
// AgentError, ...) with an ExecutionContext. The Pipeline runs every callback
// registered for that point, in order, and folds their results into one
// Decision the caller must honor.
//
// # Ordering
//
// Registrations at one point run by Priority (Highest first) and, within a
// priority, in registration order. The Registry assigns a global sequence
// number under its write lock, so ordering depends only on (priority,
// sequence) and never on timing.
//
// # Results
//
// A callback returns one of five results:
//
//   - Continue: no effect.
//   - Modified: merges a patch into the data seen by later callbacks.
//   - Cancel: stops the run and aborts the operation.
//   - Retry: stops the run and asks the caller to retry the operation.
//   - Redirect: stops the run and asks the caller to use another target.
//
// Result is a closed sum type; switch on it exhaustively.
//
// # Failures
//
// A callback that returns an error or panics is handled by the pipeline's
// FailurePolicy. FailOpen (the default) treats it as Continue; FailClosed
// turns it into Cancel. Either way the failure is reported to the configured
// Notifier and never propagates out of Run.
//
// # Usage
//
//	reg := hook.NewRegistry()
//	reg.Register(hook.BeforeToolExecution, hook.Highest, security, hook.WithTag("security"))
//	reg.Register(hook.BeforeToolExecution, hook.Lowest, metrics)
//
//	p := hook.NewPipeline(reg, hook.WithFailurePolicy(hook.FailOpen{}))
//	d, err := p.Run(ctx, hook.BeforeToolExecution, hook.ExecutionContext{
//	    ComponentID: "tool:process_executor",
//	    Data:        payload.Object(map[string]any{"tool_name": "process_executor"}),
//	})
//	if c, ok := d.Result.(hook.Cancel); ok {
//	    return fmt.Errorf("tool blocked: %s", c.Reason)
//	}
package hook
