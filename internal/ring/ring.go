// Package ring implements the bounded, block-allocated circular byte
// store shared by the producer and consumer halves of a ringstream.Stream.
//
// A Ring exposes two logical windows over the same storage: a live
// window of unread bytes (what the consumer can read without
// blocking) and a larger cache window of recently-read-but-still-
// resident bytes kept around for short-seek lookback. Both windows
// slide forward as the producer writes and the consumer reads.
//
// All exported methods acquire the Ring's own mutex; none of them may
// be called while already holding it.
package ring

import (
	"sync"
	"time"
)

// Outcome reports why a wait on the ring returned.
type Outcome int

const (
	// Ready means the requested predicate was satisfied.
	Ready Outcome = iota
	// EOS means the producer has reached the end of the source and the
	// ring will not receive more bytes until a seek occurs.
	EOS
	// SeekPending means a seek request arrived while waiting; the live
	// window is about to be invalidated, so the wait returns early with
	// nothing to copy rather than enforcing its predicate.
	SeekPending
	// Interrupted means abort or a producer error terminated the wait.
	Interrupted
)

// SeekClass classifies a pending seek relative to the cache window.
type SeekClass int

const (
	// NoSeek means no seek is currently pending.
	NoSeek SeekClass = iota
	// ShortSeek is serviceable entirely from the cache window.
	ShortSeek
	// MiddleSeek is just ahead of the cache window, within the seek
	// threshold; the producer keeps reading forward without reseeking
	// the source until the target migrates into the cache window.
	MiddleSeek
	// LongSeek requires the caller to reseek the underlying source.
	LongSeek
)

// Config carries the sizing and timing parameters a Ring is built
// with. Callers normally obtain one from the package-level defaults
// rather than constructing it by hand.
type Config struct {
	BlockSize     int
	BlockCount    int
	RWGap         int
	SeekGap       int
	SeekThreshold int
	PollInterval  time.Duration
}

// Ring is the circular byte store shared between a producer goroutine
// (the only writer) and a consumer API (the only reader), guarded by a
// single mutex and two condition variables.
type Ring struct {
	cfg Config

	mu           sync.Mutex
	consumerCond *sync.Cond // broadcast after the producer adds bytes or completes a seek
	producerCond *sync.Cond // broadcast after the consumer frees bytes or posts a seek

	blocks    [][]byte
	blockSize int
	capacity  int

	readIndex  int
	writeIndex int
	bufferSize int

	cacheIndex  int
	cacheSize   int
	cacheOffset int64

	streamOffset int64

	seekPos     int64
	seekPending bool

	abort       bool
	err         bool
	bufferedEOS bool

	stopTicker chan struct{}
	tickerDone chan struct{}
}

// New allocates a Ring of cfg.BlockSize*cfg.BlockCount bytes, realized
// as cfg.BlockCount separately allocated blocks, and starts its
// background wakeup ticker (see tick).
func New(cfg Config) *Ring {
	blocks := make([][]byte, cfg.BlockCount)
	for i := range blocks {
		blocks[i] = make([]byte, cfg.BlockSize)
	}
	r := &Ring{
		cfg:        cfg,
		blocks:     blocks,
		blockSize:  cfg.BlockSize,
		capacity:   cfg.BlockSize * cfg.BlockCount,
		stopTicker: make(chan struct{}),
		tickerDone: make(chan struct{}),
	}
	r.consumerCond = sync.NewCond(&r.mu)
	r.producerCond = sync.NewCond(&r.mu)
	go r.tick()
	return r
}

// Capacity returns the ring's total byte capacity.
func (r *Ring) Capacity() int { return r.capacity }

// tick periodically broadcasts both condition variables so that every
// blocking wait wakes at least once every PollInterval. sync.Cond has
// no timed-wait variant, so a ticker goroutine nudges waiters instead,
// letting them re-check abort/error/predicate state each period.
func (r *Ring) tick() {
	defer close(r.tickerDone)
	t := time.NewTicker(r.cfg.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-r.stopTicker:
			return
		case <-t.C:
			r.mu.Lock()
			r.consumerCond.Broadcast()
			r.producerCond.Broadcast()
			r.mu.Unlock()
		}
	}
}

// Close stops the wakeup ticker, sets the terminal abort flag, and
// wakes every waiter so blocked calls return Interrupted. The block
// storage itself is not explicitly freed; the owning Stream drops its
// reference to the Ring on Close and the garbage collector reclaims it.
func (r *Ring) Close() {
	r.mu.Lock()
	r.abort = true
	r.consumerCond.Broadcast()
	r.producerCond.Broadcast()
	r.mu.Unlock()

	close(r.stopTicker)
	<-r.tickerDone
}

// SetError marks the ring as terminally failed and wakes every
// waiter. Called by the producer loop on an unrecoverable source
// read/seek error.
func (r *Ring) SetError() {
	r.mu.Lock()
	r.err = true
	r.consumerCond.Broadcast()
	r.producerCond.Broadcast()
	r.mu.Unlock()
}

// ResetTo initializes the ring's indices for a stream that begins (or
// restarts, after a long seek) at the given absolute offset.
func (r *Ring) ResetTo(offset int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos := int(offset % int64(r.capacity))
	r.readIndex = pos
	r.writeIndex = pos
	r.bufferSize = 0
	r.cacheIndex = pos
	r.cacheSize = 0
	r.cacheOffset = offset
	r.streamOffset = offset
	r.bufferedEOS = false
}

// copyOut copies len(dst) bytes starting at ring position start into
// dst, crossing block boundaries as needed.
func (r *Ring) copyOut(dst []byte, start int) {
	pos := start
	written := 0
	n := len(dst)
	for written < n {
		blk := pos / r.blockSize
		off := pos % r.blockSize
		chunk := r.blockSize - off
		if remaining := n - written; chunk > remaining {
			chunk = remaining
		}
		copy(dst[written:written+chunk], r.blocks[blk][off:off+chunk])
		written += chunk
		pos += chunk
		if pos >= r.capacity {
			pos -= r.capacity
		}
	}
}

// copyIn writes len(src) bytes into the ring starting at position
// start, crossing block boundaries as needed.
func (r *Ring) copyIn(src []byte, start int) {
	pos := start
	written := 0
	n := len(src)
	for written < n {
		blk := pos / r.blockSize
		off := pos % r.blockSize
		chunk := r.blockSize - off
		if remaining := n - written; chunk > remaining {
			chunk = remaining
		}
		copy(r.blocks[blk][off:off+chunk], src[written:written+chunk])
		written += chunk
		pos += chunk
		if pos >= r.capacity {
			pos -= r.capacity
		}
	}
}

// waitForReadLocked blocks until buffer_size >= n, buffered_eos, a
// seek becomes pending, or the ring is aborted/errored. The caller
// must already hold r.mu; the lock is released only for the duration
// of consumerCond.Wait, and is held again on return. It returns the
// outcome and, for Ready/EOS, the current buffer_size (which may be
// less than n on EOS). For SeekPending it returns 0, since the bytes in
// the live window predate the seek.
func (r *Ring) waitForReadLocked(n int) (int, Outcome) {
	for {
		if r.abort || r.err {
			return 0, Interrupted
		}
		if r.seekPending {
			return 0, SeekPending
		}
		if r.bufferSize >= n {
			return r.bufferSize, Ready
		}
		if r.bufferedEOS {
			return r.bufferSize, EOS
		}
		// Nudge the producer in case it is itself waiting for space;
		// the seek-resolution path already wakes it when a seek is
		// pending, so this extra broadcast only matters in the
		// ordinary (no-seek) case.
		r.producerCond.Broadcast()
		r.consumerCond.Wait()
	}
}

// PeekFromRing waits for n bytes and copies up to min(n, buffer_size)
// bytes starting at read_index into dst, without advancing
// read_index. dst must have length >= n; the returned count is the
// number of bytes actually copied.
//
// The wait, the read_index snapshot, and the copy all happen under a
// single lock acquisition (the lock is released only inside
// consumerCond.Wait itself). Splitting these into separate critical
// sections would let a concurrent seek resolve — and move read_index —
// between the wait and the copy, corrupting the result; holding the
// lock across the copy is what rules that out.
func (r *Ring) PeekFromRing(dst []byte, n int) (int, Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	avail, outcome := r.waitForReadLocked(n)
	if outcome == Interrupted {
		return 0, outcome
	}
	toCopy := n
	if avail < toCopy {
		toCopy = avail
	}
	if toCopy == 0 {
		return 0, outcome
	}
	r.copyOut(dst[:toCopy], r.readIndex)
	return toCopy, outcome
}

// ReadFromRing is PeekFromRing followed by advancing read_index,
// decrementing buffer_size, and incrementing stream_offset, all under
// the same lock acquisition as the wait and the copy; it then
// broadcasts the producer wakeup since free space may have increased.
func (r *Ring) ReadFromRing(dst []byte, n int) (int, Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	avail, outcome := r.waitForReadLocked(n)
	if outcome == Interrupted {
		return 0, outcome
	}
	toCopy := n
	if avail < toCopy {
		toCopy = avail
	}
	if toCopy == 0 {
		return 0, outcome
	}
	r.copyOut(dst[:toCopy], r.readIndex)

	r.readIndex = (r.readIndex + toCopy) % r.capacity
	r.bufferSize -= toCopy
	r.streamOffset += int64(toCopy)
	r.producerCond.Broadcast()
	return toCopy, outcome
}

// waitForWriteLocked blocks until there is room for n more bytes,
// relaxing the limit into the seek-gap while a seek is pending (the
// rule that prevents the producer-blocked/consumer-blocked-on-seek
// deadlock). The caller must already hold r.mu; the lock is released
// only for the duration of producerCond.Wait.
func (r *Ring) waitForWriteLocked(n int) Outcome {
	for {
		if r.abort || r.err {
			return Interrupted
		}
		limit := r.capacity - r.cfg.RWGap - r.cfg.SeekGap
		if r.seekPending {
			limit = r.capacity - r.cfg.RWGap
		}
		if r.bufferSize+n <= limit {
			return Ready
		}
		r.producerCond.Wait()
	}
}

// WriteToRing waits for room, copies src into the ring starting at
// write_index, advances write_index/buffer_size, slides the cache
// window forward if it has grown past capacity, and broadcasts the
// consumer wakeup unless a seek is pending.
//
// The wait, the write_index snapshot, and the copy all happen under a
// single lock acquisition (the lock is released only inside
// producerCond.Wait itself), mirroring PeekFromRing/ReadFromRing so
// write_index and the cache-window bookkeeping can never be observed
// mid-update by a concurrent seek resolution.
func (r *Ring) WriteToRing(src []byte) Outcome {
	n := len(src)

	r.mu.Lock()
	defer r.mu.Unlock()

	outcome := r.waitForWriteLocked(n)
	if outcome == Interrupted {
		return outcome
	}

	r.copyIn(src, r.writeIndex)

	r.writeIndex = (r.writeIndex + n) % r.capacity
	r.bufferSize += n

	r.cacheSize += n
	if r.cacheSize > r.capacity {
		// Deliberately over-evicts by RWGap+SeekGap beyond the strict
		// overflow so a cushion stays available for the next write;
		// cache_size can transiently drop well below capacity.
		overflow := r.cacheSize - r.capacity + r.cfg.RWGap + r.cfg.SeekGap
		r.cacheIndex = (r.cacheIndex + overflow) % r.capacity
		r.cacheOffset += int64(overflow)
		r.cacheSize -= overflow
	}

	if !r.seekPending {
		r.consumerCond.Broadcast()
	}
	return Ready
}

// PostSeek records a new seek request, overwriting any unresolved
// previous one, and wakes the producer.
func (r *Ring) PostSeek(pos int64) {
	r.mu.Lock()
	r.seekPos = pos
	r.seekPending = true
	r.mu.Unlock()
	r.producerCond.Broadcast()
}

// SeekPending reports whether a seek request is currently unresolved
// and, if so, the position it targets.
func (r *Ring) SeekPending() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seekPos, r.seekPending
}

// ClassifySeek inspects a pending seek against the cache window and
// resolves it in place for the Short and Middle cases. For the Long
// case it reports the target offset but leaves resolution to
// FinishLongSeek, since reseeking the underlying source is a blocking
// I/O call that must not happen while the ring's mutex is held.
func (r *Ring) ClassifySeek(seekThreshold int) (class SeekClass, longTarget int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.seekPending {
		return NoSeek, 0
	}
	pos := r.seekPos
	cacheEnd := r.cacheOffset + int64(r.cacheSize)

	switch {
	case pos >= r.cacheOffset && pos < cacheEnd:
		// Short: redirect read_index into the cache window.
		delta := pos - r.cacheOffset
		r.readIndex = int((int64(r.cacheIndex) + delta) % int64(r.capacity))
		r.bufferSize = ((r.writeIndex-r.readIndex)%r.capacity + r.capacity) % r.capacity
		r.streamOffset = pos
		r.seekPending = false
		r.bufferedEOS = false
		r.consumerCond.Broadcast()
		return ShortSeek, 0

	case pos < r.cacheOffset || pos >= cacheEnd+int64(seekThreshold):
		// Long: caller must reseek the source, then call FinishLongSeek.
		return LongSeek, pos

	default:
		// Middle: drop unread data and keep reading forward; the seek
		// stays pending so the next iteration re-evaluates once the
		// target has migrated into the cache window.
		r.readIndex = r.writeIndex
		r.bufferSize = 0
		return MiddleSeek, 0
	}
}

// FinishLongSeek completes a Long classification after the caller has
// successfully reseeked the underlying source to pos: it resets the
// ring empty at pos and clears the pending seek.
func (r *Ring) FinishLongSeek(pos int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := int(pos % int64(r.capacity))
	r.readIndex = start
	r.writeIndex = start
	r.bufferSize = 0
	r.cacheIndex = start
	r.cacheSize = 0
	r.cacheOffset = pos
	r.streamOffset = pos
	r.seekPending = false
	r.bufferedEOS = false
	r.consumerCond.Broadcast()
}

// SetBufferedEOS marks (or, when resuming after a seek, clears) the
// producer's end-of-source flag.
func (r *Ring) SetBufferedEOS(v bool) {
	r.mu.Lock()
	r.bufferedEOS = v
	r.mu.Unlock()
}

// BufferedEOS reports the current end-of-source flag.
func (r *Ring) BufferedEOS() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bufferedEOS
}

// WaitEOSPark blocks until a seek becomes pending or the ring is
// aborted/errored; it is the producer's idle state after reaching the
// end of the source.
func (r *Ring) WaitEOSPark() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if r.abort || r.err {
			return Interrupted
		}
		if r.seekPending {
			return Ready
		}
		if !r.bufferedEOS {
			return Ready
		}
		r.producerCond.Wait()
	}
}

// Aborted reports whether Close has been called.
func (r *Ring) Aborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abort
}

// Errored reports whether SetError has been called.
func (r *Ring) Errored() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Snapshot is a consistent, instantaneous view of the ring's indices
// and sizes, used by Stream.Control and by tests asserting invariants.
type Snapshot struct {
	ReadIndex    int
	WriteIndex   int
	BufferSize   int
	CacheIndex   int
	CacheSize    int
	CacheOffset  int64
	StreamOffset int64
	SeekPos      int64
	SeekPending  bool
	Capacity     int
}

// State returns a Snapshot of the ring's current fields.
func (r *Ring) State() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		ReadIndex:    r.readIndex,
		WriteIndex:   r.writeIndex,
		BufferSize:   r.bufferSize,
		CacheIndex:   r.cacheIndex,
		CacheSize:    r.cacheSize,
		CacheOffset:  r.cacheOffset,
		StreamOffset: r.streamOffset,
		SeekPos:      r.seekPos,
		SeekPending:  r.seekPending,
		Capacity:     r.capacity,
	}
}

// CachedSize returns stream_offset + buffer_size: the highest absolute
// offset the consumer can reach without blocking.
func (r *Ring) CachedSize() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streamOffset + int64(r.bufferSize)
}

// Position returns seek_pos if a seek is pending, else stream_offset.
func (r *Ring) Position() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seekPending {
		return r.seekPos
	}
	return r.streamOffset
}
