package sweep

import (
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultInterval  = time.Minute
	defaultBatchSize = 100
)

// Options задаёт общие параметры фоновых sweep-воркеров.
type Options struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	Clock     func() time.Time
}

// Option настраивает sweep-воркер.
type Option func(*Options)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между циклами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithBatchSize задаёт размер выборки за один цикл.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) {
		opts.BatchSize = batchSize
	}
}

// WithClock подменяет источник времени (используется в тестах).
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

func buildOptions(component string, options []Option) Options {
	opts := Options{
		Interval:  defaultInterval,
		BatchSize: defaultBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", component)
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return opts
}
