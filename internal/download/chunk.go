package download

import "sync/atomic"

// UnknownSize marks a chunk whose size cannot be known in advance,
// because the probe could not determine the resource's total length.
const UnknownSize int64 = -1

// Chunk is a contiguous byte range of the resource assigned to one
// worker. Offset is the absolute byte position in both the resource and
// the destination file. Downloaded is the number of bytes successfully
// written for this chunk so far.
type Chunk struct {
	Offset     int64 `json:"offset"`
	Size       int64 `json:"size"`
	Downloaded int64 `json:"downloaded"`
}

// Complete reports whether every byte of the chunk has been written.
// A chunk of unknown size always reports false, even after its transfer
// has finished; nothing marks it complete.
func (c *Chunk) Complete() bool {
	if c.Size < 0 {
		return false
	}
	return c.Downloaded >= c.Size
}

// Remaining returns the number of bytes left to fetch for this chunk, or
// UnknownSize if the chunk's size is unknown.
func (c *Chunk) Remaining() int64 {
	if c.Size < 0 {
		return UnknownSize
	}
	return c.Size - c.Downloaded
}

// Plan is the on-disk description of a resource's chunk partition and
// each chunk's progress. A plan's resume identity is the pair
// (TotalSize, AcceptRanges): a plan on disk is only reused when both
// match the current probe result (see Store.Load).
type Plan struct {
	TotalSize    int64   `json:"total_size"`
	AcceptRanges bool    `json:"accept_ranges"`
	Chunks       []Chunk `json:"chunks"`
}

// Complete reports whether every chunk in the plan is fully downloaded.
func (p *Plan) Complete() bool {
	for i := range p.Chunks {
		if !p.Chunks[i].Complete() {
			return false
		}
	}
	return true
}

// Downloaded sums Downloaded across every chunk in the plan. Each
// chunk's counter is mutated by exactly one goroutine (its own chunk
// transfer), so aggregation here must read it atomically rather than
// relying on the single-threaded-cooperative-scheduling assumption the
// reference design made — Go's chunk transfers run in true parallel,
// unlike a single event-loop runtime.
func (p *Plan) Downloaded() int64 {
	var total int64
	for i := range p.Chunks {
		total += atomic.LoadInt64(&p.Chunks[i].Downloaded)
	}
	return total
}

// Snapshot returns a deep copy of the plan with every chunk's
// Downloaded value read atomically, safe to hand to encoding/json while
// chunk transfers keep running concurrently.
func (p *Plan) Snapshot() *Plan {
	chunks := make([]Chunk, len(p.Chunks))
	for i := range p.Chunks {
		chunks[i] = Chunk{
			Offset:     p.Chunks[i].Offset,
			Size:       p.Chunks[i].Size,
			Downloaded: atomic.LoadInt64(&p.Chunks[i].Downloaded),
		}
	}
	return &Plan{TotalSize: p.TotalSize, AcceptRanges: p.AcceptRanges, Chunks: chunks}
}

// NewPlan partitions a resource of totalSize bytes into fixed-size
// chunks, the last of which absorbs the remainder. When totalSize is
// unknown (< 0) or ranges are not accepted, the plan has exactly one
// chunk with Size == UnknownSize covering the whole, non-parallel
// transfer (P1 only applies to the known-size, range-accepting case).
func NewPlan(totalSize int64, acceptRanges bool, chunkSize int64) *Plan {
	plan := &Plan{TotalSize: totalSize, AcceptRanges: acceptRanges}

	if totalSize < 0 || !acceptRanges {
		plan.Chunks = []Chunk{{Offset: 0, Size: UnknownSize}}
		return plan
	}

	if totalSize == 0 {
		plan.Chunks = []Chunk{{Offset: 0, Size: 0, Downloaded: 0}}
		return plan
	}

	chunks := make([]Chunk, 0, (totalSize+chunkSize-1)/chunkSize)
	for offset := int64(0); offset < totalSize; offset += chunkSize {
		size := chunkSize
		if remaining := totalSize - offset; remaining < size {
			size = remaining
		}
		chunks = append(chunks, Chunk{Offset: offset, Size: size})
	}
	plan.Chunks = chunks
	return plan
}

// MatchesProbe reports whether the plan's resume identity agrees with a
// fresh probe result — the sole condition under which a loaded plan is
// reused rather than discarded (§4.2).
func (p *Plan) MatchesProbe(totalSize int64, acceptRanges bool) bool {
	return p.TotalSize == totalSize && p.AcceptRanges == acceptRanges
}

// PendingChunks returns indices into p.Chunks whose Downloaded < Size.
// The unknown-size sentinel chunk is always included, since it never
// reports Complete. The scheduler dispatches work only for these
// indices (§4.5).
func (p *Plan) PendingChunks() []int {
	pending := make([]int, 0, len(p.Chunks))
	for i := range p.Chunks {
		if !p.Chunks[i].Complete() {
			pending = append(pending, i)
		}
	}
	return pending
}
