package ringstream

import "io"

// Source is the underlying seekable byte-stream provider a Stream
// wraps: a blocking, seekable reader of known, fixed size. Open fails
// if Size() is not strictly positive.
//
// Read follows io.Reader short-read semantics. Seek follows io.Seeker
// semantics (absolute offset from the start, as that is the only
// whence the producer loop ever issues). A Source that cannot seek
// must still implement Seek; it should return a non-nil error, and
// CanSeek must report false so Stream.Control rejects SetPosition
// before the producer ever calls it.
type Source interface {
	io.Reader

	// Seek repositions the source to an absolute byte offset.
	Seek(offset int64) error

	// Tell reports the source's current absolute byte offset.
	Tell() (int64, error)

	// Size reports the source's total size in bytes. A source with
	// unknown or zero size disables the filter.
	Size() (int64, error)

	// CanSeek reports the source's seekability, captured once at Open.
	CanSeek() bool
}

// Peeker is satisfied by anything offering a contiguous, zero-copy-ish
// view of the next n bytes without consuming them. Stream implements
// it via a growable scratch buffer.
type Peeker interface {
	Peek(n int) ([]byte, error)
}

// Query enumerates the synchronous Control operations a Stream
// answers without blocking.
type Query int

const (
	// CanFastSeek always reports false: this filter never advertises
	// fast-seek to its consumer.
	CanFastSeek Query = iota
	// CanSeek reports the source's seekability, captured at Open.
	CanSeek
	// GetPosition reports seek_pos if a seek is pending, else
	// stream_offset.
	GetPosition
	// GetSize reports the source size captured at Open.
	GetSize
	// GetCachedSize reports stream_offset + buffer_size: the highest
	// offset reachable without blocking.
	GetCachedSize
)

// Controller answers the synchronous Control queries above, and
// accepts position changes via SetPosition.
type Controller interface {
	Control(q Query) (int64, bool)
	SetPosition(pos int64) error
}

// Downstream is the byte-stream contract the filter exposes to its
// consumer: read, peek with a contiguous-view guarantee, and control.
type Downstream interface {
	io.Reader
	Peeker
	Controller
}
