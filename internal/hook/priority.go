package hook

import (
	"fmt"
	"strings"
)

// Priority orders callbacks within one point. Highest runs first.
type Priority int8

// Priorities from first to last.
const (
	Highest Priority = iota
	High
	Normal
	Low
	Lowest
)

var priorityNames = [...]string{"highest", "high", "normal", "low", "lowest"}

// Priorities returns every priority from Highest to Lowest.
func Priorities() []Priority {
	return []Priority{Highest, High, Normal, Low, Lowest}
}

// String returns the priority token.
func (p Priority) String() string {
	if p.Valid() {
		return priorityNames[p]
	}
	return fmt.Sprintf("priority(%d)", int8(p))
}

// Valid reports whether p is one of the five defined priorities.
func (p Priority) Valid() bool {
	return p >= Highest && p <= Lowest
}

// clamp maps out-of-range values onto the nearest defined priority.
func (p Priority) clamp() Priority {
	return max(Highest, min(p, Lowest))
}

// ParsePriority parses highest, high, normal, low or lowest.
func ParsePriority(s string) (Priority, error) {
	token := strings.ToLower(strings.TrimSpace(s))
	for i, name := range priorityNames {
		if name == token {
			return Priority(i), nil
		}
	}
	return Normal, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, int8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(b []byte) error {
	parsed, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
