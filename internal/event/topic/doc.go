// Package topic provides hierarchical event types and the pattern matching used
// by the event bus to route published events to subscriptions.
//
// # Type Format
//
// Event types use dot-notation to create hierarchical namespaces:
//
//	agent.error
//	tool.execution.started
//	cost.threshold.exceeded
//
// # Wildcards
//
// Patterns may contain two wildcard segments:
//
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments, in any position
//
// Examples:
//
//	user.*            matches user.login, user.logout (not user.session.start)
//	*.error           matches agent.error, tool.error (not error)
//	cost.**           matches cost, cost.threshold.exceeded
//	**                matches every event type, including the empty type
//
// Matching is anchored: a pattern must account for every segment of the type.
//
// # Indexing
//
// The Trie type stores many patterns and returns the subset that matches a
// concrete event type without scanning every pattern.
//
//	t := topic.NewTrie()
//	t.Insert(topic.Topic("user.*"))
//	t.Insert(topic.Topic("**"))
//
//	matches := t.Match(topic.Topic("user.login"))
//	// matches contains both patterns
package topic
