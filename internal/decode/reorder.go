package decode

import (
	"container/heap"

	"github.com/zsiec/hwdec/internal/logger"
)

// Reorderer restores presentation order for codecs whose decode order
// differs (B-frame style reordering). Frames are buffered in a min-heap
// keyed by PTS and released once the buffer exceeds the stream's reorder
// depth, so emission never runs ahead of a picture still to come.
type Reorderer struct {
	depth  int
	buffer frameHeap

	lastPTS int64

	// arrivalSeq numbers frames as they are added; popSeq numbers them as
	// they leave the heap. A mismatch at emission means the frame was
	// actually reordered rather than passed straight through.
	arrivalSeq uint64
	popSeq     uint64

	framesReordered uint64
	framesDropped   uint64
	maxBuffered     int

	logger logger.Logger
}

// NewReorderer creates a reorderer with the given maximum reorder depth.
// Depth zero passes frames straight through.
func NewReorderer(depth int, log logger.Logger) *Reorderer {
	if depth < 0 {
		depth = 0
	}

	r := &Reorderer{
		depth:   depth,
		buffer:  make(frameHeap, 0, depth+1),
		lastPTS: -1,
		logger:  log,
	}
	heap.Init(&r.buffer)
	return r
}

// Add buffers one decoded frame and returns every frame now ready for
// emission, in presentation order.
func (r *Reorderer) Add(frame *Frame) []*Frame {
	if frame == nil {
		return nil
	}

	heap.Push(&r.buffer, &bufferedFrame{frame: frame, seq: r.arrivalSeq})
	r.arrivalSeq++
	if len(r.buffer) > r.maxBuffered {
		r.maxBuffered = len(r.buffer)
	}

	var out []*Frame
	for len(r.buffer) > r.depth {
		out = r.emit(out)
	}
	return out
}

// Flush releases all buffered frames in presentation order
func (r *Reorderer) Flush() []*Frame {
	var out []*Frame
	for len(r.buffer) > 0 {
		out = r.emit(out)
	}
	return out
}

func (r *Reorderer) emit(out []*Frame) []*Frame {
	entry := heap.Pop(&r.buffer).(*bufferedFrame)
	frame := entry.frame

	popIdx := r.popSeq
	r.popSeq++

	// A frame sorting behind the last emitted PTS arrived too late for its
	// slot; emitting it would reorder the sink stream
	if r.lastPTS >= 0 && frame.PTS < r.lastPTS {
		r.framesDropped++
		r.logger.WithFields(map[string]interface{}{
			"pts":      frame.PTS,
			"last_pts": r.lastPTS,
		}).Warn("Dropping frame that arrived after its presentation slot")
		return out
	}

	if entry.seq != popIdx {
		r.framesReordered++
	}

	r.lastPTS = frame.PTS
	return append(out, frame)
}

// Stats reports reordering counters
func (r *Reorderer) Stats() ReordererStats {
	return ReordererStats{
		FramesReordered: r.framesReordered,
		FramesDropped:   r.framesDropped,
		CurrentBuffer:   len(r.buffer),
		MaxBuffered:     r.maxBuffered,
	}
}

// ReordererStats contains reorderer counters. FramesReordered counts frames
// emitted at a different position than they arrived, not every frame passing
// through the buffer.
type ReordererStats struct {
	FramesReordered uint64
	FramesDropped   uint64
	CurrentBuffer   int
	MaxBuffered     int
}

// bufferedFrame pairs a frame with its arrival sequence number
type bufferedFrame struct {
	frame *Frame
	seq   uint64
}

// frameHeap orders frames by PTS, arrival order breaking ties
type frameHeap []*bufferedFrame

func (h frameHeap) Len() int { return len(h) }
func (h frameHeap) Less(i, j int) bool {
	if h[i].frame.PTS != h[j].frame.PTS {
		return h[i].frame.PTS < h[j].frame.PTS
	}
	return h[i].seq < h[j].seq
}
func (h frameHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *frameHeap) Push(x interface{}) {
	*h = append(*h, x.(*bufferedFrame))
}

func (h *frameHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[0 : n-1]
	return entry
}
