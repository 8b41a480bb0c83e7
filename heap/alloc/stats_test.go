package alloc

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintStats(t *testing.T) {
	la := newTestAllocator(t, Config{Strategy: BestFit, Increment: 64 << 10})

	ref, err := la.Alloc(1000)
	require.NoError(t, err)
	require.NoError(t, la.Free(ref))

	var out bytes.Buffer
	la.PrintStats(&out)
	s := out.String()

	assert.Contains(t, s, "=== ALLOCATOR STATISTICS (list/best-fit) ===")
	assert.Contains(t, s, "65,536 bytes in 1 segment(s)")
	assert.Contains(t, s, "Free calls:         1 (rejected: 0)")
	assert.Contains(t, s, "Fragmentation:    0.0%")
}

// reportField extracts the first number following label in a PrintStats report.
func reportField(t *testing.T, report, label string) uint64 {
	t.Helper()
	m := regexp.MustCompile(regexp.QuoteMeta(label) + `\s+([\d,]+)`).FindStringSubmatch(report)
	require.NotNil(t, m, "no %q in report:\n%s", label, report)
	n, err := strconv.ParseUint(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	require.NoError(t, err)
	return n
}

func TestPrintStats_ConsistentUnderConcurrentUse(t *testing.T) {
	la := newTestAllocator(t, Config{Increment: 1024})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				ref, err := la.Alloc(8 + (i*7+w*13)%200)
				if err == nil {
					_ = la.Free(ref)
				}
			}
		}()
	}

	for range 200 {
		var out bytes.Buffer
		la.PrintStats(&out)
		r := out.String()

		arena := reportField(t, r, "Arena size:")
		liveBytes := reportField(t, r, "Bytes allocated:") - reportField(t, r, "Bytes freed:")
		freeBytes := reportField(t, r, "Free bytes:")
		chunks := reportField(t, r, "Free chunks:")
		require.Equal(t, arena, freeBytes+chunks*headerSize+liveBytes,
			"free and live figures must come from the same moment:\n%s", r)

		calls := reportField(t, r, "Alloc calls:")
		failed := reportField(t, r, "(failed:")
		freed := reportField(t, r, "Free calls:")
		require.Equal(t, calls-failed-freed, reportField(t, r, "Live blocks:"))
	}
	close(stop)
	wg.Wait()
}

func TestStats_Counters(t *testing.T) {
	la := newTestAllocator(t, Config{})

	a, err := la.Alloc(100)
	require.NoError(t, err)
	_, err = la.Alloc(0)
	require.Error(t, err)
	require.NoError(t, la.Free(a))

	st := la.Stats()
	assert.Equal(t, 2, st.AllocCalls)
	assert.Equal(t, 1, st.AllocFailures)
	assert.Equal(t, 1, st.FreeCalls)
	assert.Equal(t, uint64(120), st.BytesAllocated)
	assert.Equal(t, uint64(120), st.BytesFreed)
	assert.Equal(t, uint64(testIncrement), st.GrowBytes)
	assert.Zero(t, st.LiveBlocks)
}

func TestInfo_Fragmentation(t *testing.T) {
	assert.Zero(t, Info{}.Fragmentation())
	assert.Zero(t, Info{FreeSize: 100, FreeChunks: 1, LargestFreeChunk: 100}.Fragmentation())
	assert.InDelta(t, 0.75, Info{FreeSize: 400, FreeChunks: 4, LargestFreeChunk: 100}.Fragmentation(), 1e-9)
}

func TestInfo_EmptyFreeList(t *testing.T) {
	la, _ := newFull(t, 32, 32)

	in := la.Info()
	assert.Zero(t, in.FreeChunks)
	assert.Zero(t, in.SmallestFreeChunk, "smallest is 0 when nothing is free")
	assert.Zero(t, in.LargestFreeChunk)
}
