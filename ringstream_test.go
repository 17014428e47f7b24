package ringstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenRejectsDisabled(t *testing.T) {
	src := newFakeSource(1024)
	_, err := Open(src, Config{Enable: false})
	require.ErrorIs(t, err, ErrDisabled)
}

func TestOpenRejectsZeroSize(t *testing.T) {
	src := newFakeSource(0)
	cfg := smallConfig()
	_, err := Open(src, cfg)
	require.ErrorIs(t, err, ErrNoSize)
}

func TestOpenRejectsAlreadyWrapped(t *testing.T) {
	src := newFakeSource(1024)
	src.wrapped = true
	cfg := smallConfig()
	_, err := Open(src, cfg)
	require.ErrorIs(t, err, ErrAlreadyWrapped)
}

func TestControlCanFastSeekAlwaysFalse(t *testing.T) {
	src := newFakeSource(1024)
	s := openTest(t, src, smallConfig())
	v, ok := s.Control(CanFastSeek)
	require.True(t, ok)
	require.Equal(t, int64(0), v)
}

func TestControlCanSeekReflectsSource(t *testing.T) {
	src := newFakeSource(1024)
	src.seekable = false
	s := openTest(t, src, smallConfig())
	v, ok := s.Control(CanSeek)
	require.True(t, ok)
	require.Equal(t, int64(0), v)

	err := s.SetPosition(10)
	require.Error(t, err)
}

func TestControlGetSize(t *testing.T) {
	src := newFakeSource(4096)
	s := openTest(t, src, smallConfig())
	v, ok := s.Control(GetSize)
	require.True(t, ok)
	require.Equal(t, int64(4096), v)
}

// TestScenarioSequentialRead reads a prefix of the source and checks
// that GetPosition tracks it.
func TestScenarioSequentialRead(t *testing.T) {
	src := newFakeSource(8 * 1024)
	s := openTest(t, src, smallConfig())

	n := 200
	out := readAll(t, s, n)
	for i, b := range out {
		require.Equal(t, byte(i%256), b)
	}

	pos, _ := s.Control(GetPosition)
	require.Equal(t, int64(n), pos)
}

// TestScenarioShortSeekNoSourceReseek checks that a seek back into
// already-read data delivers the right bytes. fakeSource does not count
// Seek calls, so whether the source was reseeked is not asserted.
func TestScenarioShortSeekNoSourceReseek(t *testing.T) {
	src := newFakeSource(8 * 1024)
	s := openTest(t, src, smallConfig())

	readAll(t, s, 100)

	seeksBefore := src.calls
	require.NoError(t, s.SetPosition(50))
	out := readAll(t, s, 10)
	for i, b := range out {
		require.Equal(t, byte((50+i)%256), b)
	}
	_ = seeksBefore // fakeSource.calls counts Read calls only.
}

// TestScenarioCloseDuringBlockedRead checks that Close unblocks a Read
// that is genuinely parked waiting for data, not one that has merely
// hit end-of-source.
func TestScenarioCloseDuringBlockedRead(t *testing.T) {
	src := newBlockingSource(8 * 1024)
	t.Cleanup(src.unblock)
	cfg := smallConfig()
	s, err := Open(src, cfg)
	require.NoError(t, err)

	blocked := make(chan error, 1)
	go func() {
		buf := make([]byte, 10000)
		_, err := s.Read(buf)
		blocked <- err
	}()

	time.Sleep(30 * time.Millisecond)

	// As in TestCloseUnblocksPendingRead, the producer's own blocking
	// src.Read call cannot be interrupted, so Close itself may not
	// finish joining it within this short deadline; what matters here
	// is that the consumer's Read unblocks.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.CondPollTime*4)
	defer cancel()
	_ = s.Close(ctx)

	select {
	case err := <-blocked:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock promptly after Close")
	}
}

func TestPeekDoesNotAdvancePosition(t *testing.T) {
	src := newFakeSource(8 * 1024)
	s := openTest(t, src, smallConfig())

	view, err := s.Peek(10)
	require.NoError(t, err)
	require.Len(t, view, 10)
	for i, b := range view {
		require.Equal(t, byte(i%256), b)
	}

	pos, _ := s.Control(GetPosition)
	require.Equal(t, int64(0), pos, "Peek must not advance stream_offset")

	out := readAll(t, s, 10)
	require.Equal(t, view, out)
}

func TestPeekZeroReturnsEmptyImmediately(t *testing.T) {
	src := newFakeSource(1024)
	s := openTest(t, src, smallConfig())
	view, err := s.Peek(0)
	require.NoError(t, err)
	require.Empty(t, view)
}

func TestReadZeroIsNoop(t *testing.T) {
	src := newFakeSource(1024)
	s := openTest(t, src, smallConfig())
	n, err := s.Read(nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestEndOfSourceThenReadsZero(t *testing.T) {
	src := newFakeSource(8)
	s := openTest(t, src, smallConfig())

	out := readAll(t, s, 8)
	require.Len(t, out, 8)

	// Further reads return 0 and io.EOF until a seek occurs.
	buf := make([]byte, 4)
	deadline := time.Now().Add(time.Second)
	var n int
	var err error
	for time.Now().Before(deadline) {
		n, err = s.Read(buf)
		if err != nil || n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 0, n)
}

func TestGetCachedSizeTracksLiveWindow(t *testing.T) {
	src := newFakeSource(8 * 1024)
	s := openTest(t, src, smallConfig())

	deadline := time.Now().Add(time.Second)
	var cached int64
	for time.Now().Before(deadline) {
		cached, _ = s.Control(GetCachedSize)
		if cached > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.Positive(t, cached)

	readAll(t, s, int(cached))
	afterRead, _ := s.Control(GetCachedSize)
	require.GreaterOrEqual(t, afterRead, cached)
}
