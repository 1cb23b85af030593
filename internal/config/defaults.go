package config

// DefaultAPIBind is where the daemon API listens when the config is silent.
const DefaultAPIBind = "127.0.0.1:7319"

const (
	defaultDataDir        = "~/.local/share/dtesync"
	defaultLogDir         = "~/.local/share/dtesync/logs"
	defaultAPIBind        = DefaultAPIBind
	defaultProductionURL  = "https://api.dtes.mh.gob.sv"
	defaultTestURL        = "https://apitest.dtes.mh.gob.sv"
	defaultEnvironment    = "test"
	defaultRequestTimeout = 15

	defaultPollInterval    = 30
	defaultMaxFailures     = 10
	defaultTrackingTimeout = 600
	defaultBatchJitter     = 5

	defaultAutoSubmitInterval = 60
	defaultMaxAttempts        = 5
	defaultRetryDelay         = 2
	defaultRetentionHours     = 24

	defaultLogFormat = "text"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Authority: Authority{
			Environment:    defaultEnvironment,
			ProductionURL:  defaultProductionURL,
			TestURL:        defaultTestURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Tracking: Tracking{
			PollInterval: defaultPollInterval,
			MaxFailures:  defaultMaxFailures,
			Timeout:      defaultTrackingTimeout,
			BatchJitter:  defaultBatchJitter,
		},
		Contingency: Contingency{
			AutoSubmitInterval: defaultAutoSubmitInterval,
			MaxAttempts:        defaultMaxAttempts,
			RetryDelay:         defaultRetryDelay,
			RetentionHours:     defaultRetentionHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
