// Package config loads hookbus configuration.
//
// Configuration is resolved in three steps, later steps overriding earlier:
//
//  1. Built-in defaults (Default)
//  2. A YAML or TOML file, chosen by extension, after ${VAR} and
//     ${VAR:-default} expansion
//  3. HOOKBUS_* environment variables (see ApplyEnv)
//
// Validate runs last and reports every problem at once.
//
// # Example
//
//	bus:
//	  queue_capacity: 10000
//	  overflow: block
//	  block_timeout: 250ms
//	hooks:
//	  failure_policy: fail_closed
//	builtins:
//	  security:
//	    enabled: true
//	    denied_tools: [process_executor]
//	scripts:
//	  - ${HOOKBUS_SCRIPTS:-./hooks}/security.lua
package config
