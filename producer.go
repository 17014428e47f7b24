package ringstream

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/drgolem/ringstream/internal/ring"
)

// producer is the single long-lived goroutine spawned by Open. It
// reads src ahead of the consumer, writes into r, and resolves seek
// requests.
type producer struct {
	r       *ring.Ring
	src     Source
	size    int64
	step    []byte
	logger  zerolog.Logger
	metrics *Metrics
	cfg     Config

	fail func(error)
}

// run is the producer's control cycle. It returns when ctx is
// canceled, the ring is aborted (Close), or an unrecoverable source
// error occurs. Each iteration has one cancellation test point outside
// the ring's mutex.
func (p *producer) run(ctx context.Context) {
	for {
		if ctx.Err() != nil || p.r.Aborted() || p.r.Errored() {
			return
		}

		// 1. EOF check.
		pos, err := p.src.Tell()
		if err != nil {
			p.failf(err, "tell")
			return
		}
		if pos >= p.size {
			p.r.SetBufferedEOS(true)
		}

		// 2. EOS park: the sole idle state after reaching EOF; only a
		// pending seek or shutdown exits it.
		if p.r.BufferedEOS() {
			outcome := p.r.WaitEOSPark()
			if outcome == ring.Interrupted {
				return
			}
			if _, pending := p.r.SeekPending(); pending {
				p.r.SetBufferedEOS(false)
				p.logger.Debug().Msg("producer: EOS park exit on pending seek")
			} else {
				continue
			}
		}

		// 3. Seek resolution.
		class, longTarget := p.r.ClassifySeek(p.cfg.SeekThreshold)
		switch class {
		case ring.ShortSeek:
			p.metrics.observeSeek("short")
			p.logger.Debug().Msg("producer: short seek resolved from cache")
		case ring.MiddleSeek:
			p.metrics.observeSeek("middle")
			p.logger.Debug().Msg("producer: middle seek, reading forward")
			continue
		case ring.LongSeek:
			if err := p.src.Seek(longTarget); err != nil {
				p.failf(err, "seek")
				return
			}
			p.r.FinishLongSeek(longTarget)
			p.metrics.observeSeek("long")
			p.logger.Debug().Int64("target", longTarget).Msg("producer: long seek, source reseeked")
		}

		// 4. One read step.
		n, err := p.src.Read(p.step)
		if n > 0 {
			if outcome := p.r.WriteToRing(p.step[:n]); outcome == ring.Interrupted {
				return
			}
			snap := p.r.State()
			p.metrics.observeSizes(snap.BufferSize, snap.CacheSize)
		}
		if err != nil && err != io.EOF {
			p.failf(err, "read")
			return
		}
		if err == io.EOF || n < len(p.step) {
			// A short read signals EOS for the next iteration.
			p.r.SetBufferedEOS(true)
		}
	}
}

func (p *producer) failf(err error, op string) {
	p.metrics.observeProducerError()
	p.logger.Warn().Err(err).Str("op", op).Msg("producer: unrecoverable source error")
	p.fail(errors.Wrapf(err, "ringstream: producer %s", op))
	p.r.SetError()
}
