package ringstream

import (
	"time"

	"github.com/rs/zerolog"
)

// ShortcutName is the identity under which a host application would
// advertise this filter for explicit selection.
const ShortcutName = "ringstream"

const (
	defaultBlockSize     = 1 << 20 // 1 MiB
	defaultBlockCount    = 10      // CAPACITY = 10 MiB
	defaultStepSize      = 32 << 10
	defaultRWGap         = 1 << 10 // 1 KiB
	defaultSeekGap       = 1 << 20 // 1 MiB
	defaultSeekThreshold = 1 << 20 // 1 MiB
	defaultCondPollTime  = time.Second
)

// Config carries the tunables of a Stream. The zero value is not
// usable directly; construct one with DefaultConfig and override the
// fields that matter.
type Config struct {
	// Enable gates whether Open succeeds at all. A host application
	// that wants the filter bypassed sets this false.
	Enable bool

	BlockSize     int
	BlockCount    int
	StepSize      int
	RWGap         int
	SeekGap       int
	SeekThreshold int
	CondPollTime  time.Duration

	// Logger receives structured diagnostics from the producer loop.
	// A nil Logger is replaced with zerolog.Nop() at Open.
	Logger *zerolog.Logger

	// Metrics, when non-nil, receives buffer/cache/seek
	// instrumentation. A nil Metrics disables the domain-stack
	// Prometheus wiring entirely (see metrics.go).
	Metrics *Metrics
}

// DefaultConfig returns a reasonable default sizing (1 MiB blocks * 10
// = 10 MiB capacity, 32 KiB read step, 1 KiB/1 MiB gaps, 1 MiB seek
// threshold, 1s condition poll interval) with Enable set to true.
func DefaultConfig() Config {
	return Config{
		Enable:        true,
		BlockSize:     defaultBlockSize,
		BlockCount:    defaultBlockCount,
		StepSize:      defaultStepSize,
		RWGap:         defaultRWGap,
		SeekGap:       defaultSeekGap,
		SeekThreshold: defaultSeekThreshold,
		CondPollTime:  defaultCondPollTime,
	}
}

func (c Config) capacity() int {
	return c.BlockSize * c.BlockCount
}
