package builtin

import (
	"context"
	"slices"
	"sync"

	"github.com/dshills/hookbus/internal/hook"
)

// DefaultToolField is the data field holding the tool name.
const DefaultToolField = "tool_name"

// UnauthorizedReason is the Cancel reason for a denied tool.
const UnauthorizedReason = "unauthorized"

// SecurityHook cancels calls whose tool is on a deny list.
type SecurityHook struct {
	field string

	mu     sync.RWMutex
	denied map[string]struct{}
}

// NewSecurityHook creates a security hook reading the tool name from field
// (DefaultToolField if empty).
func NewSecurityHook(field string, denied ...string) *SecurityHook {
	if field == "" {
		field = DefaultToolField
	}
	h := &SecurityHook{field: field, denied: make(map[string]struct{}, len(denied))}
	for _, tool := range denied {
		h.denied[tool] = struct{}{}
	}
	return h
}

// Name implements Hook.
func (h *SecurityHook) Name() string { return "security" }

// Priority implements Hook.
func (h *SecurityHook) Priority() hook.Priority { return hook.Highest }

// Deny adds tools to the deny list.
func (h *SecurityHook) Deny(tools ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, tool := range tools {
		h.denied[tool] = struct{}{}
	}
}

// Allow removes tools from the deny list.
func (h *SecurityHook) Allow(tools ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, tool := range tools {
		delete(h.denied, tool)
	}
}

// Denied returns the deny list, sorted.
func (h *SecurityHook) Denied() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.denied))
	for tool := range h.denied {
		out = append(out, tool)
	}
	slices.Sort(out)
	return out
}

// Call implements hook.Callback.
func (h *SecurityHook) Call(_ context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
	tool := ec.Data.Get(h.field)
	if !tool.Exists() {
		return hook.Continue{}, nil
	}

	h.mu.RLock()
	_, denied := h.denied[tool.String()]
	h.mu.RUnlock()

	if denied {
		return hook.Cancel{Reason: UnauthorizedReason}, nil
	}
	return hook.Continue{}, nil
}
