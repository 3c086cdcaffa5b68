package config

const (
	defaultDataDir            = "~/.local/share/fieldsync/data"
	defaultLogDir             = "~/.local/share/fieldsync/logs"
	defaultAPIBind            = "127.0.0.1:7519"
	defaultBackendBaseURL     = "https://inspections.example.gov/api/v1"
	defaultDeviceProfile      = "default"
	defaultRequestTimeout     = 30
	defaultUploadTimeout      = 120
	defaultSyncPollInterval   = 30
	defaultSyncProbeInterval  = 15
	defaultErrorRetryInterval = 10
	defaultRetryCeiling       = 5
	defaultDraftFlushMillis   = 750
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Backend: Backend{
			BaseURL:        defaultBackendBaseURL,
			DeviceProfile:  defaultDeviceProfile,
			RequestTimeout: defaultRequestTimeout,
			UploadTimeout:  defaultUploadTimeout,
		},
		Sync: Sync{
			PollInterval:       defaultSyncPollInterval,
			ProbeInterval:      defaultSyncProbeInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			RetryCeiling:       defaultRetryCeiling,
			DraftFlushMillis:   defaultDraftFlushMillis,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
