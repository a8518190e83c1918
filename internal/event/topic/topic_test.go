package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_Segments(t *testing.T) {
	tests := []struct {
		topic    Topic
		expected []string
	}{
		{Topic("cost.threshold.exceeded"), []string{"cost", "threshold", "exceeded"}},
		{Topic("agent.error"), []string{"agent", "error"}},
		{Topic("ping"), []string{"ping"}},
		{Topic(""), nil},
	}

	for _, tt := range tests {
		t.Run(tt.topic.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.topic.Segments())
			assert.Equal(t, len(tt.expected), tt.topic.SegmentCount())
		})
	}
}

func TestTopic_Matches(t *testing.T) {
	tests := []struct {
		pattern  string
		topic    string
		expected bool
	}{
		// Literal
		{"user.login", "user.login", true},
		{"user.login", "user.logout", false},
		{"user.login", "user.login.extra", false},

		// Single wildcard
		{"user.*", "user.login", true},
		{"user.*", "user.logout", true},
		{"user.*", "user.session.start", false},
		{"user.*", "user", false},
		{"*.error", "agent.error", true},
		{"*.error", "tool.error", true},
		{"*.error", "error", false},
		{"*", "ping", true},
		{"*", "", false},

		// Multi wildcard
		{"**", "ping", true},
		{"**", "a.b.c.d", true},
		{"**", "", true},
		{"cost.**", "cost", true},
		{"cost.**", "cost.threshold.exceeded", true},
		{"cost.**", "costs.threshold", false},
		{"**.exceeded", "exceeded", true},
		{"**.exceeded", "cost.threshold.exceeded", true},
		{"**.exceeded", "cost.exceeded.not", false},
		{"agent.**.error", "agent.error", true},
		{"agent.**.error", "agent.step.tool.error", true},
		{"agent.**.error", "agent.step.tool.warn", false},
		{"**.*", "", false},
		{"**.*", "a", true},
		{"**.**", "", true},
		{"a.**.**.b", "a.b", true},
		{"*.**.*", "a", false},
		{"*.**.*", "a.b", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.expected, Match(tt.pattern, tt.topic))
		})
	}
}

func TestValidatePattern(t *testing.T) {
	valid := []string{"user.*", "*.error", "**", "cost.threshold.exceeded", "a.**.b", "*", "script.cost-alert.on"}
	for _, p := range valid {
		assert.NoError(t, ValidatePattern(p), p)
	}

	invalid := []string{"", ".", "user.", ".user", "user..login", "user*", "***", "us*er.login", "user. login"}
	for _, p := range invalid {
		err := ValidatePattern(p)
		require.ErrorIs(t, err, ErrInvalidPattern, p)
		var pe *PatternError
		require.ErrorAs(t, err, &pe, p)
		assert.Equal(t, p, pe.Input)
	}
}

func TestValidateType(t *testing.T) {
	valid := []string{"", "ping", "agent.error", "hook.error"}
	for _, s := range valid {
		assert.NoError(t, ValidateType(s), s)
	}

	invalid := []string{"user.*", "**", "a..b", "a.", "a b"}
	for _, s := range invalid {
		assert.ErrorIs(t, ValidateType(s), ErrInvalidType, s)
	}
}
