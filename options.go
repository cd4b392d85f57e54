package synthflow

import "github.com/sirupsen/logrus"

// Option configures a FlowSystem.
type Option func(*FlowSystem)

// WithBufferSize sets ring buffer size of audio ports. It's rounded up to
// a power of two.
func WithBufferSize(size int) Option {
	return func(f *FlowSystem) {
		if size > 0 {
			f.bufferSize = size
		}
	}
}

// WithSampleRate sets the sample rate used to measure signal duration.
func WithSampleRate(sampleRate int) Option {
	return func(f *FlowSystem) {
		if sampleRate > 0 {
			f.sampleRate = sampleRate
		}
	}
}

// WithLogger sets logger. If this option is not provided, log.GetLogger
// is used.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *FlowSystem) {
		f.log = l
	}
}

// WithIterationLimit sets the number of retries after which requests and
// schedule passes give up.
func WithIterationLimit(limit int) Option {
	return func(f *FlowSystem) {
		if limit > 0 {
			f.iterationLimit = limit
		}
	}
}

// WithMetrics publishes counters of every added module, see metric package.
func WithMetrics() Option {
	return func(f *FlowSystem) {
		f.metrics = true
	}
}
