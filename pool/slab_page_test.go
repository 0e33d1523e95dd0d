package pool

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/momentics/hioload-mem/api"
	"github.com/momentics/hioload-mem/internal/offheap"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSlab(t *testing.T, capacity int) *SlabPage {
	t.Helper()
	p, err := NewSlabPage(capacity, false)
	require.NoError(t, err)
	t.Cleanup(func() { p.Release() })
	return p
}

func mustAlloc(t *testing.T, p api.Page, size int) *VirtualBuffer {
	t.Helper()
	b, err := p.Allocate(size)
	require.NoError(t, err)
	vb, ok := b.(*VirtualBuffer)
	require.True(t, ok)
	return vb
}

func regionOf(vb *VirtualBuffer) Interval {
	start, end := vb.Region()
	return Interval{Start: start, End: end}
}

// checkFreeList asserts conservation and maximal coalescing against the live set.
func checkFreeList(t *testing.T, p *SlabPage, live map[*VirtualBuffer]struct{}) {
	t.Helper()
	free := p.FreeList()
	total := 0
	for i, iv := range free {
		require.Less(t, iv.Start, iv.End, "empty interval %v", iv)
		if i > 0 {
			require.Less(t, free[i-1].End, iv.Start, "intervals %v and %v adjacent or overlapping", free[i-1], iv)
		}
		total += iv.Len()
	}
	for vb := range live {
		total += vb.Len()
	}
	require.Equal(t, p.Capacity(), total, "free + live must equal capacity, free=%v", free)
}

func TestSlabPage_ScenarioCarveAfterRelease(t *testing.T) {
	p := newTestSlab(t, 100)

	a := mustAlloc(t, p, 40)
	b := mustAlloc(t, p, 30)
	c := mustAlloc(t, p, 30)
	assert.Equal(t, Interval{0, 40}, regionOf(a))
	assert.Equal(t, Interval{40, 70}, regionOf(b))
	assert.Equal(t, Interval{70, 100}, regionOf(c))
	assert.Empty(t, p.FreeList())

	b.Release()
	assert.Equal(t, []Interval{{40, 70}}, p.FreeList())

	d := mustAlloc(t, p, 20)
	assert.Equal(t, Interval{40, 60}, regionOf(d))
	assert.Equal(t, []Interval{{60, 70}}, p.FreeList())

	st := p.Stats()
	assert.Equal(t, 10, st.Free)
	assert.Equal(t, 1, st.Intervals)
	assert.Equal(t, 10, st.Largest)
}

func TestSlabPage_ScenarioFullCoalesce(t *testing.T) {
	p := newTestSlab(t, 100)

	a := mustAlloc(t, p, 50)
	b := mustAlloc(t, p, 50)
	assert.Empty(t, p.FreeList())

	a.Release()
	b.Release()
	assert.Equal(t, []Interval{{0, 100}}, p.FreeList())
}

func TestSlabPage_ScenarioFallbackWhenFull(t *testing.T) {
	p := newTestSlab(t, 100)
	mustAlloc(t, p, 100)

	fb := mustAlloc(t, p, 10)
	assert.Nil(t, fb.Page())
	assert.True(t, fb.IsFallback())
	assert.Len(t, fb.Bytes(), 10)

	fb.Release()
	assert.Empty(t, p.FreeList())
	assert.EqualValues(t, 1, p.Stats().Fallbacks)
}

func TestSlabPage_ExactFitRemovesInterval(t *testing.T) {
	p := newTestSlab(t, 64)
	a := mustAlloc(t, p, 64)
	assert.Equal(t, 64, a.Len())
	assert.Empty(t, p.FreeList())
}

func TestSlabPage_FirstFitSkipsSmallIntervals(t *testing.T) {
	p := newTestSlab(t, 100)
	a := mustAlloc(t, p, 10)
	mustAlloc(t, p, 10)
	a.Release()
	// [0,10) is too small, carve from [20,100)
	c := mustAlloc(t, p, 15)
	assert.Equal(t, Interval{20, 35}, regionOf(c))
	assert.Equal(t, []Interval{{0, 10}, {35, 100}}, p.FreeList())
}

func TestSlabPage_MergeBothNeighbours(t *testing.T) {
	p := newTestSlab(t, 90)
	a := mustAlloc(t, p, 30)
	b := mustAlloc(t, p, 30)
	c := mustAlloc(t, p, 30)

	a.Release()
	c.Release()
	assert.Equal(t, []Interval{{0, 30}, {60, 90}}, p.FreeList())

	b.Release()
	assert.Equal(t, []Interval{{0, 90}}, p.FreeList())
}

func TestSlabPage_MergeRightNeighbour(t *testing.T) {
	p := newTestSlab(t, 100)
	a := mustAlloc(t, p, 40)
	b := mustAlloc(t, p, 60)

	b.Release()
	assert.Equal(t, []Interval{{40, 100}}, p.FreeList())
	a.Release()
	assert.Equal(t, []Interval{{0, 100}}, p.FreeList())
}

func TestSlabPage_RejectsNonPositiveSize(t *testing.T) {
	p := newTestSlab(t, 100)
	for _, size := range []int{0, -1} {
		_, err := p.Allocate(size)
		require.Error(t, err)
		assert.True(t, errors.Is(err, api.ErrNotSupported), "size %d: %v", size, err)
	}
}

func TestSlabPage_DoubleReleaseIsNoop(t *testing.T) {
	p := newTestSlab(t, 100)
	a := mustAlloc(t, p, 40)
	mustAlloc(t, p, 60)

	a.Release()
	assert.NotPanics(t, a.Release)
	assert.Equal(t, []Interval{{0, 40}}, p.FreeList())
	assert.True(t, a.Released())
}

func TestSlabPage_CorruptionPanics(t *testing.T) {
	p := newTestSlab(t, 100)
	mustAlloc(t, p, 50)
	// [50,100) is free; returning an overlapping region is a logic bug
	assert.Panics(t, func() { p.merge(Interval{Start: 40, End: 60}) })
	assert.Panics(t, func() { p.merge(Interval{Start: 90, End: 120}) })
}

func TestSlabPage_ContendedReleaseIsDeferred(t *testing.T) {
	p := newTestSlab(t, 100)
	a := mustAlloc(t, p, 50)
	b := mustAlloc(t, p, 50)

	p.mu.Lock()
	a.Release()
	b.Release()
	assert.EqualValues(t, 2, p.pendingLen.Load())
	p.mu.Unlock()

	// the next lock holder merges the backlog
	c := mustAlloc(t, p, 100)
	assert.Equal(t, Interval{0, 100}, regionOf(c))
	assert.EqualValues(t, 0, p.pendingLen.Load())
}

func TestSlabPage_TryReclaimDrainsBacklog(t *testing.T) {
	p := newTestSlab(t, 100)
	a := mustAlloc(t, p, 100)

	p.mu.Lock()
	a.Release()
	p.mu.Unlock()

	p.TryReclaim()
	assert.EqualValues(t, 0, p.pendingLen.Load())
	assert.False(t, p.Stats().Idle, "allocation happened since the last tick")

	p.TryReclaim()
	assert.True(t, p.Stats().Idle)
	assert.Equal(t, []Interval{{0, 100}}, p.FreeList())
}

func TestSlabPage_BytesAreClippedToRegion(t *testing.T) {
	p := newTestSlab(t, 16)
	a := mustAlloc(t, p, 8)
	b := mustAlloc(t, p, 8)
	copy(b.Bytes(), "BBBBBBBB")

	assert.Equal(t, 8, cap(a.Bytes()))
	grown := append(a.Bytes(), 'x')
	copy(grown, "AAAAAAAA")
	assert.Equal(t, "BBBBBBBB", string(b.Bytes()))
}

func TestSlabPage_RandomOpsKeepInvariants(t *testing.T) {
	const capacity = 4096
	p := newTestSlab(t, capacity)
	rnd := rand.New(rand.NewSource(42))
	live := make(map[*VirtualBuffer]struct{})

	for i := 0; i < 5000; i++ {
		if len(live) > 0 && rnd.Intn(2) == 0 {
			for vb := range live {
				vb.Release()
				delete(live, vb)
				break
			}
		} else {
			size := 1 + rnd.Intn(256)
			vb := mustAlloc(t, p, size)
			require.Equal(t, size, vb.Len())
			if !vb.IsFallback() {
				live[vb] = struct{}{}
			}
		}
		checkFreeList(t, p, live)
	}

	for vb := range live {
		vb.Release()
	}
	assert.Equal(t, []Interval{{0, capacity}}, p.FreeList())
}

func TestSlabPage_ConcurrentAllocRelease(t *testing.T) {
	const capacity = 1 << 16
	p := newTestSlab(t, capacity)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			held := make([]api.Buffer, 0, 16)
			for i := 0; i < 2000; i++ {
				if len(held) < 16 && rnd.Intn(3) != 0 {
					b, err := p.Allocate(1 + rnd.Intn(512))
					if err != nil {
						t.Error(err)
						return
					}
					b.Bytes()[0] = byte(seed)
					held = append(held, b)
					continue
				}
				if len(held) > 0 {
					held[0].Release()
					held = held[1:]
				}
			}
			for _, b := range held {
				b.Release()
			}
		}(int64(g))
	}
	wg.Wait()

	assert.Equal(t, []Interval{{0, capacity}}, p.FreeList())
}

func TestSlabPage_DirectReleaseFreesBlock(t *testing.T) {
	before := offheap.InUse()
	p, err := NewSlabPage(1<<16, true)
	require.NoError(t, err)
	if offheap.Supported() {
		assert.Equal(t, before+1<<16, offheap.InUse())
	}

	a := mustAlloc(t, p, 128)
	copy(a.Bytes(), "direct")
	assert.Equal(t, "direct", string(a.Bytes()[:6]))

	require.NoError(t, p.Release())
	assert.Equal(t, before, offheap.InUse())
	assert.True(t, p.Stats().Closed)

	_, err = p.Allocate(16)
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrPoolClosed))

	// releasing into a torn-down page is ignored
	assert.NotPanics(t, a.Release)
	require.NoError(t, p.Release())
}

func TestNewSlabPage_RejectsBadCapacity(t *testing.T) {
	_, err := NewSlabPage(0, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
}

func TestSlabPage_BacklogDroppedAfterTeardown(t *testing.T) {
	p, err := NewSlabPage(100, false)
	require.NoError(t, err)
	a := mustAlloc(t, p, 40)
	b := mustAlloc(t, p, 40)
	require.NoError(t, p.Release())

	// releases contending with teardown land in the backlog of a closed page
	p.mu.Lock()
	a.Release()
	assert.EqualValues(t, 1, p.pendingLen.Load())
	p.mu.Unlock()

	st := p.Stats()
	assert.True(t, st.Closed)
	assert.Equal(t, 0, st.Pending)
	assert.Empty(t, p.FreeList())

	p.mu.Lock()
	b.Release()
	p.mu.Unlock()
	p.TryReclaim()
	assert.EqualValues(t, 0, p.pendingLen.Load())
	assert.Equal(t, 0, p.Stats().Pending)
}
