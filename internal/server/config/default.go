package config

import "time"

// Default configuration values.
const (
	DefaultAPIURL      = "https://api.telegram.org"
	DefaultPollTimeout = 30 * time.Second
	DefaultRateLimit   = 25
	DefaultBuyText     = "💳 Send ₹99 to @Lordslayer5 and reply with your screenshot. You’ll be manually upgraded."

	DefaultTTL             = 6 * time.Hour
	DefaultRetractionDelay = 15 * time.Minute

	DefaultDataDir       = "/var/lib/tokdrop/data"
	DefaultFilesDir      = "/var/lib/tokdrop/files"
	DefaultGCInterval    = 10 * time.Minute
	DefaultGCThreshold   = 0.5
	DefaultShortEndpoint = "https://shortner.in/api"
	DefaultShortTimeout  = 10 * time.Second

	DefaultHTTPAddr    = "127.0.0.1:5080"
	DefaultLocalSocket = "/var/run/tokdrop/tokdrop.sock"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default bot configuration.
func Default() *BotConfig {
	return &BotConfig{
		Bot: BotSection{
			APIURL:      DefaultAPIURL,
			PollTimeout: DefaultPollTimeout,
			RateLimit:   DefaultRateLimit,
			BuyText:     DefaultBuyText,
		},
		Token: TokenSection{
			TTL:             DefaultTTL,
			RetractionDelay: DefaultRetractionDelay,
		},
		Storage: StorageSection{
			DataDir:  DefaultDataDir,
			FilesDir: DefaultFilesDir,
			Backend:  BackendLocal,
			Badger: BadgerConfig{
				GCInterval:  DefaultGCInterval,
				GCThreshold: DefaultGCThreshold,
				SyncWrites:  true,
			},
		},
		Shortener: ShortenerSection{
			Endpoint: DefaultShortEndpoint,
			Timeout:  DefaultShortTimeout,
		},
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
			Local: LocalConfig{
				Path: DefaultLocalSocket,
			},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
