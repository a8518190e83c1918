package topic

import (
	"strings"
)

// Topic represents a hierarchical event type or subscription pattern using dot
// notation. Examples: "agent.error", "cost.threshold.exceeded", "user.*".
type Topic string

// Wildcard constants for pattern matching.
const (
	// WildcardSingle matches exactly one segment.
	WildcardSingle = "*"

	// WildcardMulti matches zero or more segments.
	WildcardMulti = "**"

	// Separator is the character used to separate topic segments.
	Separator = "."
)

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the topic split by the separator.
// The empty topic has zero segments.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// SegmentCount returns the number of segments in the topic.
func (t Topic) SegmentCount() int {
	if t == "" {
		return 0
	}
	return strings.Count(string(t), Separator) + 1
}

// Matches returns true if this concrete topic matches the given pattern.
// The pattern may contain wildcards:
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments
func (t Topic) Matches(pattern Topic) bool {
	return matchSegments(t.Segments(), pattern.Segments())
}

// Match reports whether eventType matches pattern. It performs no validation;
// malformed patterns simply fail to match.
func Match(pattern, eventType string) bool {
	return Topic(eventType).Matches(Topic(pattern))
}

// matchSegments performs recursive pattern matching on topic segments.
// A "**" tries every split of the remaining segments, so it may appear in a
// leading, middle or trailing position.
func matchSegments(topic, pattern []string) bool {
	ti, pi := 0, 0

	for pi < len(pattern) {
		if pattern[pi] == WildcardMulti {
			// Collapse runs of ** which are equivalent to a single **.
			for pi+1 < len(pattern) && pattern[pi+1] == WildcardMulti {
				pi++
			}
			for ti <= len(topic) {
				if matchSegments(topic[ti:], pattern[pi+1:]) {
					return true
				}
				ti++
			}
			return false
		}

		if ti >= len(topic) {
			return false
		}

		if pattern[pi] == WildcardSingle || pattern[pi] == topic[ti] {
			ti++
			pi++
			continue
		}
		return false
	}

	return ti == len(topic)
}

// Join joins multiple segments into a topic.
func Join(segments ...string) Topic {
	return Topic(strings.Join(segments, Separator))
}
