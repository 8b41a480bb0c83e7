package alloc_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/source"
	"github.com/joshuapare/heapkit/heap/verify"
)

// The in-package assertInvariants cannot import heap/verify (verify imports
// alloc), so these workloads run the exported checker from outside.
func TestAllInvariants_RandomWorkloads(t *testing.T) {
	sources := map[string]func(t *testing.T) source.Source{
		"brk": func(t *testing.T) source.Source {
			brk, err := source.NewBrk(1 << 20)
			require.NoError(t, err)
			return brk
		},
		"scattered": func(*testing.T) source.Source { return source.NewScattered(0) },
	}

	for name, newSource := range sources {
		for _, s := range alloc.Strategies {
			t.Run(name+"/"+s.String(), func(t *testing.T) {
				la, err := alloc.New(&alloc.Config{
					Strategy:  s,
					Increment: 2048,
					Limit:     64 << 10,
					Source:    newSource(t),
				})
				require.NoError(t, err)
				t.Cleanup(func() { _ = la.Close() })

				rng := rand.New(rand.NewSource(7))
				var live []alloc.Ref
				for i := range 1500 {
					if rng.Intn(3) < 2 || len(live) == 0 {
						ref, err := la.Alloc(1 + rng.Intn(600))
						if err != nil {
							require.ErrorIs(t, err, alloc.ErrNoSpace, "step %d", i)
						} else {
							live = append(live, ref)
						}
					} else {
						k := rng.Intn(len(live))
						require.NoError(t, la.Free(live[k]), "step %d", i)
						live[k] = live[len(live)-1]
						live = live[:len(live)-1]
					}
					if i%25 == 0 {
						require.NoError(t, verify.AllInvariants(la), "step %d", i)
					}
				}

				for _, ref := range live {
					require.NoError(t, la.Free(ref))
				}
				require.NoError(t, verify.AllInvariants(la))
			})
		}
	}
}
