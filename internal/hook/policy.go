package hook

import (
	"fmt"
	"strings"
)

// FailurePolicy decides how a callback failure affects a run. It is chosen
// per pipeline, not per call. The set is closed: FailOpen and FailClosed.
type FailurePolicy interface {
	String() string
	failurePolicy()
}

// FailOpen treats a failed callback as Continue.
type FailOpen struct{}

// FailClosed treats a failed callback as Cancel with the failure as reason.
type FailClosed struct{}

func (FailOpen) failurePolicy()   {}
func (FailClosed) failurePolicy() {}

func (FailOpen) String() string   { return "fail_open" }
func (FailClosed) String() string { return "fail_closed" }

// ParseFailurePolicy parses "fail_open" or "fail_closed". Hyphens and a
// missing "fail_" prefix are accepted.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	token := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch strings.TrimPrefix(token, "fail_") {
	case "", "open":
		return FailOpen{}, nil
	case "closed":
		return FailClosed{}, nil
	default:
		return nil, fmt.Errorf("unknown failure policy %q", s)
	}
}
