package topic

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrInvalidPattern is returned when a subscription pattern is malformed.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrInvalidType is returned when a concrete event type is malformed.
	ErrInvalidType = errors.New("invalid event type")
)

// PatternError describes why a pattern or event type was rejected.
type PatternError struct {
	// Input is the rejected pattern or type.
	Input string

	// Segment is the index of the offending segment, or -1 for the whole input.
	Segment int

	// Reason is a short human readable explanation.
	Reason string

	kind error
}

// Error implements the error interface.
func (e *PatternError) Error() string {
	if e.Segment >= 0 {
		return fmt.Sprintf("%v %q: segment %d: %s", e.kind, e.Input, e.Segment, e.Reason)
	}
	return fmt.Sprintf("%v %q: %s", e.kind, e.Input, e.Reason)
}

// Unwrap returns ErrInvalidPattern or ErrInvalidType.
func (e *PatternError) Unwrap() error {
	return e.kind
}

// ValidatePattern checks that p is a well-formed subscription pattern.
//
// A valid pattern is non-empty and every dot-separated segment is either a
// literal, "*" or "**". Empty segments, whitespace, and segments that mix a
// wildcard with literal characters (such as "user*" or "***") are rejected.
func ValidatePattern(p string) error {
	if p == "" {
		return &PatternError{Input: p, Segment: -1, Reason: "pattern is empty", kind: ErrInvalidPattern}
	}
	for i, seg := range strings.Split(p, Separator) {
		switch {
		case seg == "":
			return &PatternError{Input: p, Segment: i, Reason: "empty segment", kind: ErrInvalidPattern}
		case seg == WildcardSingle || seg == WildcardMulti:
			continue
		case strings.Contains(seg, WildcardSingle):
			return &PatternError{Input: p, Segment: i, Reason: "wildcard must be a whole segment", kind: ErrInvalidPattern}
		case strings.IndexFunc(seg, unicode.IsSpace) >= 0:
			return &PatternError{Input: p, Segment: i, Reason: "whitespace in segment", kind: ErrInvalidPattern}
		}
	}
	return nil
}

// ValidateType checks that t is a well-formed concrete event type.
//
// The empty string is the zero-segment type and is valid. Otherwise every
// segment must be a non-empty literal without wildcards or whitespace.
func ValidateType(t string) error {
	if t == "" {
		return nil
	}
	for i, seg := range strings.Split(t, Separator) {
		switch {
		case seg == "":
			return &PatternError{Input: t, Segment: i, Reason: "empty segment", kind: ErrInvalidType}
		case strings.Contains(seg, WildcardSingle):
			return &PatternError{Input: t, Segment: i, Reason: "wildcards are not allowed in event types", kind: ErrInvalidType}
		case strings.IndexFunc(seg, unicode.IsSpace) >= 0:
			return &PatternError{Input: t, Segment: i, Reason: "whitespace in segment", kind: ErrInvalidType}
		}
	}
	return nil
}
