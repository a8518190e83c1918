package hook

import (
	"context"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Callbacks run in ascending priority, and within a priority in the order
// their registrations were accepted, no matter how registrations interleave.
func TestPipelineOrderProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	properties.Property("run order follows priority then sequence", prop.ForAll(
		func(prios []int8) bool {
			reg := NewRegistry()
			var mu sync.Mutex
			var order []string

			var wg sync.WaitGroup
			for _, raw := range prios {
				wg.Go(func() {
					var id string
					id = reg.Register(AgentError, Priority(raw), CallbackFunc(func(context.Context, *ExecutionContext) (Result, error) {
						mu.Lock()
						order = append(order, id)
						mu.Unlock()
						return Continue{}, nil
					}))
				})
			}
			wg.Wait()

			d, err := NewPipeline(reg).Run(context.Background(), AgentError, ExecutionContext{})
			if err != nil || d.Executed != len(prios) {
				return false
			}

			var prev Summary
			for i, id := range order {
				s, err := reg.Get(id)
				if err != nil {
					return false
				}
				if i > 0 && (s.Priority < prev.Priority || (s.Priority == prev.Priority && s.Sequence <= prev.Sequence)) {
					return false
				}
				prev = s
			}
			return true
		},
		gen.SliceOf(gen.Int8Range(0, 4)),
	))

	properties.TestingRun(t)
}
