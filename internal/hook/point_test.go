package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoint(t *testing.T) {
	tests := []struct {
		in      string
		want    Point
		wantErr bool
	}{
		{"BeforeToolExecution", BeforeToolExecution, false},
		{"beforetoolexecution", BeforeToolExecution, false},
		{"  AgentError ", AgentError, false},
		{"AfterWorkflowComplete", AfterWorkflowEnd, false},
		{"custom.point-1", Point("custom.point-1"), false},
		{"", "", true},
		{"bad point", "", true},
		{"semi;colon", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePoint(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPoint)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKnownPoints(t *testing.T) {
	points := KnownPoints()
	core := []Point{
		BeforeAgentInit, BeforeAgentExecution, AfterAgentExecution, AgentError,
		BeforeToolExecution, AfterToolExecution, ToolError,
		BeforeWorkflowStage, AfterWorkflowStage, WorkflowError,
	}
	for _, p := range core {
		assert.True(t, p.IsKnown(), p)
	}
	assert.False(t, Point("custom").IsKnown())
	points[0] = "mutated"
	assert.NotEqual(t, Point("mutated"), KnownPoints()[0], "KnownPoints must return a copy")
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"highest", Highest, false},
		{"HIGH", High, false},
		{" normal ", Normal, false},
		{"low", Low, false},
		{"lowest", Lowest, false},
		{"urgent", Normal, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePriority(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPriorityText(t *testing.T) {
	for _, p := range Priorities() {
		b, err := p.MarshalText()
		require.NoError(t, err)
		var back Priority
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, p, back)
	}
	_, err := Priority(9).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidPriority)
	assert.Equal(t, "priority(9)", Priority(9).String())
}

func TestParseFailurePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want FailurePolicy
	}{
		{"", FailOpen{}},
		{"fail_open", FailOpen{}},
		{"open", FailOpen{}},
		{"fail-closed", FailClosed{}},
		{"CLOSED", FailClosed{}},
	}
	for _, tt := range tests {
		got, err := ParseFailurePolicy(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseFailurePolicy("sometimes")
	assert.Error(t, err)
}
