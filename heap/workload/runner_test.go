package workload

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/source"
	"github.com/joshuapare/heapkit/heap/verify"
)

func newTestAllocator(t *testing.T, cfg alloc.Config) *alloc.ListAllocator {
	t.Helper()
	brk, err := source.NewBrk(4 << 20)
	require.NoError(t, err)
	cfg.Source = brk
	if cfg.Increment == 0 {
		cfg.Increment = 4096
	}
	la, err := alloc.New(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = la.Close() })
	return la
}

func TestRunner_Script(t *testing.T) {
	la := newTestAllocator(t, alloc.Config{})
	var out bytes.Buffer
	r := &Runner{A: la, Verify: func() error { return verify.AllInvariants(la) }, Out: &out}

	script, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	res, err := r.Run(context.Background(), script)
	require.NoError(t, err)

	assert.Equal(t, 6, res.Ops)
	assert.Equal(t, 2, res.Allocs)
	assert.Equal(t, 1, res.Frees)
	assert.Equal(t, uint64(16), res.LiveBytes)
	assert.Equal(t, uint64(116), res.PeakLiveBytes)
	assert.Equal(t, uint64(4096), res.ArenaSize)
	assert.Equal(t, alloc.BestFit, la.Strategy())
	assert.Equal(t, uint64(64<<10), la.Limit())
	assert.Contains(t, out.String(), "[line 7] arena=4,096")
}

func TestRunner_AllocFailureContinues(t *testing.T) {
	la := newTestAllocator(t, alloc.Config{Increment: 1024, Limit: 1024})
	r := &Runner{A: la}

	script, err := Parse(strings.NewReader("alloc a 0\nalloc b 4000\nalloc c 8\nfree c\nfree b\n"))
	require.NoError(t, err)

	res, err := r.Run(context.Background(), script)
	require.NoError(t, err, "freeing a name whose allocation failed is a no-op")
	assert.Equal(t, 3, res.Allocs)
	assert.Equal(t, 2, res.AllocFailures)
	assert.Equal(t, 1, res.Frees)
	assert.Zero(t, res.LiveBytes)
}

func TestRunner_FreeUnknownName(t *testing.T) {
	la := newTestAllocator(t, alloc.Config{})
	r := &Runner{A: la}

	script, err := Parse(strings.NewReader("alloc a 8\nfree a\nfree a\n"))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), script)
	require.ErrorIs(t, err, ErrUnknownName)
	assert.Contains(t, err.Error(), "line 3")
}

func TestRunner_RebindReleasesPrevious(t *testing.T) {
	la := newTestAllocator(t, alloc.Config{})
	r := &Runner{A: la}

	script, err := Parse(strings.NewReader("alloc a 64\nalloc a 32\n"))
	require.NoError(t, err)

	res, err := r.Run(context.Background(), script)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Frees)
	assert.Equal(t, uint64(32), res.LiveBytes)
	assert.Equal(t, 1, la.Stats().LiveBlocks)
}

func TestRunner_VerifyFailureStops(t *testing.T) {
	la := newTestAllocator(t, alloc.Config{})
	boom := errors.New("boom")
	r := &Runner{A: la, Verify: func() error { return boom }}

	script, err := Parse(strings.NewReader("alloc a 8\nverify\nalloc b 8\n"))
	require.NoError(t, err)

	res, err := r.Run(context.Background(), script)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, res.Ops)
}

func TestRunner_Cancelled(t *testing.T) {
	la := newTestAllocator(t, alloc.Config{})
	r := &Runner{A: la}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, Random(DefaultRandomConfig))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunner_Bump(t *testing.T) {
	brk, err := source.NewBrk(4 << 20)
	require.NoError(t, err)
	ba, err := alloc.NewBump(&alloc.Config{Increment: 4096, Source: brk})
	require.NoError(t, err)
	defer ba.Close()

	res, err := (&Runner{A: ba}).Run(context.Background(), Random(DefaultRandomConfig))
	require.NoError(t, err)
	assert.Zero(t, res.LiveBytes)
	assert.Zero(t, ba.Stats().LiveBlocks)
}

func TestRandom(t *testing.T) {
	cfg := RandomConfig{Seed: 9, Ops: 300, MaxSize: 128, FreeP: 0.5, Verify: 50}
	a := Random(cfg)
	b := Random(cfg)
	require.Equal(t, a, b, "same seed must give the same script")

	live := map[string]bool{}
	verifies := 0
	for _, c := range a {
		switch c.Op {
		case OpAlloc:
			require.False(t, live[c.Name], "name %s reused while live", c.Name)
			require.GreaterOrEqual(t, c.Size, 1)
			require.LessOrEqual(t, c.Size, 128)
			live[c.Name] = true
		case OpFree:
			require.True(t, live[c.Name], "free of %s before alloc", c.Name)
			delete(live, c.Name)
		case OpVerify:
			verifies++
		}
	}
	assert.Empty(t, live, "script must release everything")
	assert.Equal(t, 6, verifies)
}

func TestRandom_RunsCleanOnEveryStrategy(t *testing.T) {
	script := Random(RandomConfig{Seed: 5, Ops: 2000, MaxSize: 700, FreeP: 0.45, Verify: 100})

	for _, s := range alloc.Strategies {
		t.Run(s.String(), func(t *testing.T) {
			la := newTestAllocator(t, alloc.Config{Strategy: s})
			r := &Runner{A: la, Verify: func() error { return verify.AllInvariants(la) }}

			res, err := r.Run(context.Background(), script)
			require.NoError(t, err)
			assert.Zero(t, res.AllocFailures)
			assert.Equal(t, 1, res.Final.FreeChunks, "everything released must merge back")
			assert.Greater(t, res.Utilization(), 0.0)
		})
	}
}
