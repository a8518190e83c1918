package builtin

import (
	"github.com/dshills/hookbus/internal/hook"
)

// Hook is a callback with a stable name and a default priority.
type Hook interface {
	hook.Callback
	Name() string
	Priority() hook.Priority
}

// Register installs h at each point with its default priority, tagged with
// its name. It returns the registration ids in point order.
func Register(reg *hook.Registry, h Hook, points ...hook.Point) []string {
	ids := make([]string, 0, len(points))
	for _, p := range points {
		ids = append(ids, reg.Register(p, h.Priority(), h,
			hook.WithName(h.Name()),
			hook.WithTag(h.Name()),
			hook.WithLanguage("go"),
		))
	}
	return ids
}

// componentOf returns the component a call is about: the context's component
// id, or the "component" field of its data when the id is empty.
func componentOf(ec *hook.ExecutionContext) string {
	if ec.ComponentID != "" {
		return ec.ComponentID
	}
	return ec.Data.Get("component").String()
}
