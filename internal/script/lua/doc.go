// Package lua lets Lua scripts take part in hook runs and publish events.
//
// An Engine owns one sandboxed gopher-lua state. Scripts loaded into it see
// three modules:
//
//	hooks.register(point, priority, fn [, tag]) -> id
//	hooks.unregister(id) -> bool
//	hooks.list() -> { {id=, point=, priority=, tag=}, ... }
//
//	events.publish(type, data) -> delivered
//	events.subscribe(pattern) -> id
//	events.receive(id, timeout_ms) -> event | nil
//	events.unsubscribe(id)
//
//	log.debug(msg), log.info(msg), log.warn(msg), log.error(msg)
//
// A hook callback receives a table
//
//	{component_id=, hook_point=, data=, metadata=, language=, correlation_id=}
//
// and returns nil, "continue", "cancel", or a result table such as
// {action="cancel", reason="blocked"} or {type="modified", data={...}}.
//
// # Sandbox
//
// Only the base, table, string and math libraries are opened, and dofile,
// loadfile, load and loadstring are removed. Every call into the state runs
// under a context with the engine's execution timeout.
//
// # Thread Safety
//
// gopher-lua states are single-threaded. Calls into the state are
// serialized with a mutex, so callbacks from concurrent hook runs queue
// behind one another. Go functions exposed to scripts must not call back
// into the same engine.
package lua
