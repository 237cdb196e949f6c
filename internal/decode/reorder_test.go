package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/hwdec/internal/logger"
)

func pts(frames []*Frame) []int64 {
	out := make([]int64, len(frames))
	for i, f := range frames {
		out[i] = f.PTS
	}
	return out
}

func TestReordererRestoresPresentationOrder(t *testing.T) {
	r := NewReorderer(2, logger.NewNullLogger())

	// Decode order I P B B: PTS 0, 3, 1, 2
	var emitted []*Frame
	emitted = append(emitted, r.Add(&Frame{PTS: 0})...)
	emitted = append(emitted, r.Add(&Frame{PTS: 3})...)
	emitted = append(emitted, r.Add(&Frame{PTS: 1})...)
	emitted = append(emitted, r.Add(&Frame{PTS: 2})...)
	emitted = append(emitted, r.Flush()...)

	assert.Equal(t, []int64{0, 1, 2, 3}, pts(emitted))

	stats := r.Stats()
	// The leading I frame passes straight through; the other three left the
	// buffer at a different position than they arrived
	assert.Equal(t, uint64(3), stats.FramesReordered)
	assert.Equal(t, uint64(0), stats.FramesDropped)
	assert.Equal(t, 0, stats.CurrentBuffer)
}

func TestReordererInOrderStreamCountsNoReordering(t *testing.T) {
	r := NewReorderer(3, logger.NewNullLogger())

	var emitted []*Frame
	for i := int64(0); i < 8; i++ {
		emitted = append(emitted, r.Add(&Frame{PTS: i})...)
	}
	emitted = append(emitted, r.Flush()...)

	require.Len(t, emitted, 8)
	assert.Equal(t, uint64(0), r.Stats().FramesReordered)
}

func TestReordererZeroDepthPassesThrough(t *testing.T) {
	r := NewReorderer(0, logger.NewNullLogger())

	out := r.Add(&Frame{PTS: 5})
	require.Len(t, out, 1)
	assert.Equal(t, int64(5), out[0].PTS)

	out = r.Add(&Frame{PTS: 6})
	require.Len(t, out, 1)
	assert.Equal(t, int64(6), out[0].PTS)
}

func TestReordererBoundsBuffering(t *testing.T) {
	r := NewReorderer(3, logger.NewNullLogger())

	var emitted []*Frame
	for i := int64(0); i < 10; i++ {
		emitted = append(emitted, r.Add(&Frame{PTS: i})...)
	}

	// Depth 3 holds back exactly three frames until flush
	assert.Len(t, emitted, 7)
	assert.Equal(t, 3, r.Stats().CurrentBuffer)

	emitted = append(emitted, r.Flush()...)
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, pts(emitted))
}

func TestReordererDropsLateFrame(t *testing.T) {
	r := NewReorderer(0, logger.NewNullLogger())

	r.Add(&Frame{PTS: 10})
	out := r.Add(&Frame{PTS: 4}) // arrives after its slot was passed

	assert.Empty(t, out)
	assert.Equal(t, uint64(1), r.Stats().FramesDropped)
}

func TestReordererIgnoresNil(t *testing.T) {
	r := NewReorderer(1, logger.NewNullLogger())
	assert.Nil(t, r.Add(nil))
}
