package workload

import (
	"fmt"
	"math/rand"
)

// RandomConfig controls Random.
type RandomConfig struct {
	Seed    int64
	Ops     int     // number of alloc/free commands
	MaxSize int     // allocation sizes are uniform in [1, MaxSize]
	FreeP   float64 // probability an op frees a live block instead of allocating
	Verify  int     // insert a verify command every Verify ops; 0 disables
}

// DefaultRandomConfig is a mixed workload that keeps roughly a third of its
// allocations live.
var DefaultRandomConfig = RandomConfig{
	Seed:    1,
	Ops:     1000,
	MaxSize: 512,
	FreeP:   0.4,
}

// Random generates a reproducible alloc/free workload. Every free names a
// block allocated earlier in the script and still live, and the script ends
// by releasing everything that is left.
func Random(cfg RandomConfig) Script {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRandomConfig.MaxSize
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	var (
		script Script
		live   []string
		next   int
	)
	for i := range cfg.Ops {
		if len(live) > 0 && rng.Float64() < cfg.FreeP {
			k := rng.Intn(len(live))
			script = append(script, Command{Op: OpFree, Name: live[k]})
			live[k] = live[len(live)-1]
			live = live[:len(live)-1]
		} else {
			name := fmt.Sprintf("b%d", next)
			next++
			script = append(script, Command{Op: OpAlloc, Name: name, Size: 1 + rng.Intn(cfg.MaxSize)})
			live = append(live, name)
		}
		if cfg.Verify > 0 && (i+1)%cfg.Verify == 0 {
			script = append(script, Command{Op: OpVerify})
		}
	}
	for _, name := range live {
		script = append(script, Command{Op: OpFree, Name: name})
	}
	return script
}
