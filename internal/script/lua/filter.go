package lua

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/dshills/hookbus/internal/event"
)

// ErrInvalidFilter is raised for a malformed events.subscribe filter table.
var ErrInvalidFilter = errors.New("invalid filter")

// buildFilter turns a decoded filter table into an event filter. Every key
// present must accept the event:
//
//	source, source_prefix, exclude_source   publisher name
//	language                                 tag or list of tags
//	correlation_id                           exact correlation id
//	type, exclude_type                       event type pattern
//	has                                      data path that must exist
//	equals = {path = value}                  data fields rendered as strings
//	above  = {path = number}                 numeric data fields
//	any    = {filter, ...}                   at least one nested filter
//	["not"] = filter                         nested filter must reject
func buildFilter(table map[string]any) (event.FilterFunc, error) {
	keys := slices.Sorted(maps.Keys(table))
	filters := make([]event.FilterFunc, 0, len(keys))
	for _, key := range keys {
		f, err := filterFor(key, table[key])
		if err != nil {
			return nil, err
		}
		filters = append(filters, f...)
	}
	if len(filters) == 1 {
		return filters[0], nil
	}
	return event.FilterAnd(filters...), nil
}

func filterFor(key string, v any) ([]event.FilterFunc, error) {
	switch key {
	case "source", "source_prefix", "exclude_source", "correlation_id", "type", "exclude_type", "has":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidFilter, key)
		}
		return []event.FilterFunc{stringFilter(key, s)}, nil

	case "language":
		switch x := v.(type) {
		case string:
			return []event.FilterFunc{event.FilterByLanguage(x)}, nil
		case []any:
			langs := make([]string, 0, len(x))
			for _, item := range x {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: language entries must be strings", ErrInvalidFilter)
				}
				langs = append(langs, s)
			}
			return []event.FilterFunc{event.FilterByLanguage(langs...)}, nil
		}
		return nil, fmt.Errorf("%w: language must be a string or a list", ErrInvalidFilter)

	case "equals":
		fields, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: equals must be a table of fields", ErrInvalidFilter)
		}
		var out []event.FilterFunc
		for path, want := range fields {
			out = append(out, event.FilterFieldEquals(path, fmt.Sprint(want)))
		}
		return out, nil

	case "above":
		fields, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: above must be a table of fields", ErrInvalidFilter)
		}
		var out []event.FilterFunc
		for path, limit := range fields {
			n, ok := number(limit)
			if !ok {
				return nil, fmt.Errorf("%w: above.%s must be a number", ErrInvalidFilter, path)
			}
			out = append(out, event.FilterFieldAbove(path, n))
		}
		return out, nil

	case "any":
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: any must be a list of filters", ErrInvalidFilter)
		}
		alts := make([]event.FilterFunc, 0, len(items))
		for _, item := range items {
			nested, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: any entries must be filter tables", ErrInvalidFilter)
			}
			f, err := buildFilter(nested)
			if err != nil {
				return nil, err
			}
			alts = append(alts, f)
		}
		return []event.FilterFunc{event.FilterOr(alts...)}, nil

	case "not":
		nested, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: not must be a filter table", ErrInvalidFilter)
		}
		f, err := buildFilter(nested)
		if err != nil {
			return nil, err
		}
		return []event.FilterFunc{event.FilterNot(f)}, nil
	}
	return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidFilter, key)
}

func stringFilter(key, s string) event.FilterFunc {
	switch key {
	case "source":
		return event.FilterBySource(s)
	case "source_prefix":
		return event.FilterBySourcePrefix(s)
	case "exclude_source":
		return event.FilterExcludeSource(s)
	case "correlation_id":
		return event.FilterByCorrelation(s)
	case "type":
		return event.FilterByType(s)
	case "exclude_type":
		return event.FilterExcludeType(s)
	default:
		return event.FilterHasField(s)
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
