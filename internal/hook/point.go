package hook

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// Point names a lifecycle juncture. Points are compared by equality only; any
// non-empty name is a valid point.
type Point string

// Core hook points.
const (
	BeforeAgentInit      Point = "BeforeAgentInit"
	BeforeAgentExecution Point = "BeforeAgentExecution"
	AfterAgentExecution  Point = "AfterAgentExecution"
	AgentError           Point = "AgentError"
	BeforeToolExecution  Point = "BeforeToolExecution"
	AfterToolExecution   Point = "AfterToolExecution"
	ToolError            Point = "ToolError"
	BeforeWorkflowStage  Point = "BeforeWorkflowStage"
	AfterWorkflowStage   Point = "AfterWorkflowStage"
	WorkflowError        Point = "WorkflowError"
)

// Additional lifecycle points used by runtimes that expose them.
const (
	SystemStartup       Point = "SystemStartup"
	SystemShutdown      Point = "SystemShutdown"
	AfterAgentInit      Point = "AfterAgentInit"
	BeforeAgentShutdown Point = "BeforeAgentShutdown"
	AfterAgentShutdown  Point = "AfterAgentShutdown"
	BeforeToolDiscovery Point = "BeforeToolDiscovery"
	AfterToolDiscovery  Point = "AfterToolDiscovery"
	ToolValidation      Point = "ToolValidation"
	BeforeWorkflowStart Point = "BeforeWorkflowStart"
	AfterWorkflowEnd    Point = "AfterWorkflowComplete"
	WorkflowCheckpoint  Point = "WorkflowCheckpoint"
	WorkflowRollback    Point = "WorkflowRollback"
)

var knownPoints = []Point{
	BeforeAgentInit, AfterAgentInit,
	BeforeAgentExecution, AfterAgentExecution, AgentError,
	BeforeAgentShutdown, AfterAgentShutdown,
	BeforeToolDiscovery, AfterToolDiscovery, ToolValidation,
	BeforeToolExecution, AfterToolExecution, ToolError,
	BeforeWorkflowStart, BeforeWorkflowStage, AfterWorkflowStage,
	WorkflowCheckpoint, WorkflowRollback, AfterWorkflowEnd, WorkflowError,
	SystemStartup, SystemShutdown,
}

// KnownPoints returns the predefined points in lifecycle order.
func KnownPoints() []Point {
	return slices.Clone(knownPoints)
}

// String returns the point name.
func (p Point) String() string {
	return string(p)
}

// IsKnown reports whether p is one of the predefined points.
func (p Point) IsKnown() bool {
	return slices.Contains(knownPoints, p)
}

// ParsePoint resolves s to a Point. Predefined names match case-insensitively
// and are returned in canonical form. Other names are accepted as custom
// points if they consist of letters, digits, '_', '-' or '.'.
func ParsePoint(s string) (Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPoint)
	}
	for _, p := range knownPoints {
		if strings.EqualFold(string(p), s) {
			return p, nil
		}
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			return "", fmt.Errorf("%w: %q", ErrInvalidPoint, s)
		}
	}
	return Point(s), nil
}
