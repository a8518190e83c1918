package event

import (
	"strings"

	"github.com/dshills/hookbus/internal/event/topic"
)

// FilterFunc decides whether a matched event is queued for a subscription.
type FilterFunc func(ev Event) bool

// FilterBySource allows events published by source.
func FilterBySource(source string) FilterFunc {
	return func(ev Event) bool {
		return ev.Metadata.Source == source
	}
}

// FilterBySourcePrefix allows events whose source starts with prefix.
func FilterBySourcePrefix(prefix string) FilterFunc {
	return func(ev Event) bool {
		return ev.Metadata.Source != "" && strings.HasPrefix(ev.Metadata.Source, prefix)
	}
}

// FilterExcludeSource rejects events published by source.
func FilterExcludeSource(source string) FilterFunc {
	return func(ev Event) bool {
		return ev.Metadata.Source != source
	}
}

// FilterByLanguage allows events tagged with one of langs.
func FilterByLanguage(langs ...string) FilterFunc {
	set := make(map[string]struct{}, len(langs))
	for _, l := range langs {
		set[l] = struct{}{}
	}
	return func(ev Event) bool {
		_, ok := set[ev.Metadata.Language]
		return ok
	}
}

// FilterByCorrelation allows events carrying correlationID.
func FilterByCorrelation(correlationID string) FilterFunc {
	return func(ev Event) bool {
		return ev.Metadata.CorrelationID == correlationID
	}
}

// FilterByType narrows a broad subscription to types matching pattern.
func FilterByType(pattern string) FilterFunc {
	return func(ev Event) bool {
		return topic.Match(pattern, ev.Type)
	}
}

// FilterExcludeType rejects types matching pattern.
func FilterExcludeType(pattern string) FilterFunc {
	return func(ev Event) bool {
		return !topic.Match(pattern, ev.Type)
	}
}

// FilterHasField allows events whose data has a value at path.
func FilterHasField(path string) FilterFunc {
	return func(ev Event) bool {
		return ev.Data.Has(path)
	}
}

// FilterFieldEquals allows events whose data at path renders as want.
func FilterFieldEquals(path, want string) FilterFunc {
	return func(ev Event) bool {
		r := ev.Data.Get(path)
		return r.Exists() && r.String() == want
	}
}

// FilterFieldAbove allows events whose numeric data at path exceeds limit.
func FilterFieldAbove(path string, limit float64) FilterFunc {
	return func(ev Event) bool {
		r := ev.Data.Get(path)
		return r.Exists() && r.Float() > limit
	}
}

// FilterAnd allows events accepted by every filter.
func FilterAnd(filters ...FilterFunc) FilterFunc {
	return func(ev Event) bool {
		for _, f := range filters {
			if f != nil && !f(ev) {
				return false
			}
		}
		return true
	}
}

// FilterOr allows events accepted by any filter.
func FilterOr(filters ...FilterFunc) FilterFunc {
	return func(ev Event) bool {
		for _, f := range filters {
			if f != nil && f(ev) {
				return true
			}
		}
		return false
	}
}

// FilterNot inverts filter.
func FilterNot(filter FilterFunc) FilterFunc {
	return func(ev Event) bool {
		return !filter(ev)
	}
}
