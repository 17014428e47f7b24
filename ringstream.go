package ringstream

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/drgolem/ringstream/internal/ring"
)

// Stream wraps a Source with a bounded in-memory ring buffer and
// exposes a read/peek/control byte-stream contract to a downstream
// consumer. The zero value is not usable; construct one with Open.
type Stream struct {
	src  Source
	size int64

	canSeek bool

	r       *ring.Ring
	cfg     Config
	metrics *Metrics

	cancel context.CancelFunc
	done   chan struct{}

	lastErr atomic.Pointer[error]

	scratchMu sync.Mutex
	scratch   []byte

	closeOnce sync.Once
}

var _ Downstream = (*Stream)(nil)

// Open validates cfg and src, allocates the ring, and spawns the
// producer goroutine. It returns a setup error without spawning
// anything if cfg.Enable is false, src's size is unusable, or the ring
// cannot be allocated.
func Open(src Source, cfg Config) (*Stream, error) {
	if !cfg.Enable {
		return nil, ErrDisabled
	}
	if wc, ok := src.(wrapChecker); ok && wc.AlreadyWrapped() {
		return nil, ErrAlreadyWrapped
	}
	size, err := src.Size()
	if err != nil {
		return nil, wrapSetupErr("get source size", err)
	}
	if size <= 0 {
		return nil, ErrNoSize
	}
	if cfg.BlockSize <= 0 || cfg.BlockCount <= 0 {
		return nil, wrapSetupErr("allocate ring", errInvalidBlockConfig)
	}

	logger := resolveLogger(cfg.Logger)

	rcfg := ring.Config{
		BlockSize:     cfg.BlockSize,
		BlockCount:    cfg.BlockCount,
		RWGap:         cfg.RWGap,
		SeekGap:       cfg.SeekGap,
		SeekThreshold: cfg.SeekThreshold,
		PollInterval:  cfg.CondPollTime,
	}
	if cfg.RWGap+cfg.SeekGap >= rcfg.BlockSize*rcfg.BlockCount {
		return nil, wrapSetupErr("allocate ring", errGapsExceedCapacity)
	}

	r := ring.New(rcfg)
	r.ResetTo(0)

	s := &Stream{
		src:     src,
		size:    size,
		canSeek: src.CanSeek(),
		r:       r,
		cfg:     cfg,
		metrics: cfg.Metrics,
		done:    make(chan struct{}),
	}

	pos, err := src.Tell()
	if err != nil {
		r.Close()
		return nil, wrapSetupErr("tell source", err)
	}
	if pos != 0 {
		if !s.canSeek {
			r.Close()
			return nil, wrapSetupErr("open", errCannotRewind)
		}
		if err := src.Seek(0); err != nil {
			r.Close()
			return nil, wrapSetupErr("seek source", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	p := &producer{
		r:       r,
		src:     src,
		size:    size,
		step:    make([]byte, cfg.StepSize),
		logger:  logger,
		metrics: cfg.Metrics,
		cfg:     cfg,
		fail:    s.recordErr,
	}

	go func() {
		defer close(s.done)
		p.run(ctx)
	}()

	return s, nil
}

func (s *Stream) recordErr(err error) {
	s.lastErr.Store(&err)
}

// Close cancels the producer goroutine, wakes every blocked waiter on
// the ring, and waits for the producer to exit, bounded by ctx. Close
// is idempotent.
func (s *Stream) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.r.Close()
	})
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Read copies up to len(p) bytes into p, blocking until len(p) bytes
// are available, end-of-source is reached (it then returns what is
// left, or 0 and io.EOF once that is drained), or the stream is
// closed/errored. While a seek is unresolved it returns 0 and a nil
// error. It satisfies io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, outcome := s.r.ReadFromRing(p, len(p))
	if outcome == ring.Interrupted {
		return 0, s.interruptedErr()
	}
	if n == 0 && outcome == ring.EOS {
		return 0, io.EOF
	}
	return n, nil
}

// Peek returns a read-only view of the next n bytes without advancing
// the read position. The view is backed by an internal scratch buffer
// and is only valid until the next call to Peek, Read, or SetPosition.
// n == 0 returns an empty view immediately with success.
func (s *Stream) Peek(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	s.scratchMu.Lock()
	defer s.scratchMu.Unlock()
	if cap(s.scratch) < n {
		s.scratch = make([]byte, n)
	}
	s.scratch = s.scratch[:n]

	copied, outcome := s.r.PeekFromRing(s.scratch, n)
	if outcome == ring.Interrupted {
		return nil, s.interruptedErr()
	}
	return s.scratch[:copied], nil
}

// Control answers a synchronous, non-blocking query about the stream.
func (s *Stream) Control(q Query) (int64, bool) {
	switch q {
	case CanFastSeek:
		return 0, true
	case CanSeek:
		if s.canSeek {
			return 1, true
		}
		return 0, true
	case GetPosition:
		return s.r.Position(), true
	case GetSize:
		return s.size, true
	case GetCachedSize:
		return s.r.CachedSize(), true
	default:
		return 0, false
	}
}

// SetPosition requests a reposition to pos. It requires CanSeek and
// does not block: it posts the request and returns immediately, to be
// classified and resolved by the producer.
func (s *Stream) SetPosition(pos int64) error {
	if !s.canSeek {
		return errSourceNotSeekable
	}
	s.r.PostSeek(pos)
	return nil
}

// interruptedErr translates the ring's Interrupted outcome into a Go
// error: io.ErrClosedPipe for an explicit Close/abort, or the wrapped
// source error the producer recorded for an unrecoverable failure.
func (s *Stream) interruptedErr() error {
	if s.r.Aborted() && !s.r.Errored() {
		return io.ErrClosedPipe
	}
	if errp := s.lastErr.Load(); errp != nil {
		return *errp
	}
	return io.ErrClosedPipe
}
