package tracking

import (
	"time"

	"dtesync/internal/config"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultMaxFailures  = 10
	defaultTimeout      = 10 * time.Minute
)

// Options configures a tracking task.
type Options struct {
	// PollInterval is the delay between authority status queries.
	PollInterval time.Duration
	// MaxFailures is the consecutive-failure count after which tracking is
	// abandoned.
	MaxFailures int
	// Timeout bounds total tracking time regardless of poll outcomes.
	Timeout time.Duration
	// InitialDelay postpones the first poll; StartBatch randomizes it.
	InitialDelay time.Duration
	// BatchJitter is the maximum random stagger StartBatch applies to each
	// document's first poll.
	BatchJitter time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.MaxFailures <= 0 {
		o.MaxFailures = defaultMaxFailures
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return o
}

// OptionsFromConfig derives tracking options from application config.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}.withDefaults()
	}
	return Options{
		PollInterval: cfg.PollInterval(),
		MaxFailures:  cfg.Tracking.MaxFailures,
		Timeout:      cfg.TrackingTimeout(),
		BatchJitter:  cfg.BatchJitter(),
	}.withDefaults()
}
