package config

import "time"

// BotConfig is the root configuration for tokdrop-bot.
type BotConfig struct {
	Bot       BotSection       `koanf:"bot"`
	Token     TokenSection     `koanf:"token"`
	Storage   StorageSection   `koanf:"storage"`
	Shortener ShortenerSection `koanf:"shortener"`
	Server    ServerSection    `koanf:"server"`
	Log       LogSection       `koanf:"log"`
}

// BotSection configures the Telegram side.
type BotSection struct {
	// Token is the BotFather token. Required.
	Token string `koanf:"token"`

	// Username is the bot's @name used in deep links. If empty it is
	// resolved with getMe at startup.
	Username string `koanf:"username"`

	// Admins are the user ids allowed to upload, publish and grant premium.
	Admins []int64 `koanf:"admins"`

	// APIURL points at the Bot API server.
	APIURL string `koanf:"api_url"`

	// PollTimeout is the getUpdates long-poll duration.
	PollTimeout time.Duration `koanf:"poll_timeout"`

	// RateLimit is outbound Bot API calls per second.
	RateLimit float64 `koanf:"rate_limit"`

	// BuyText is the reply to /buy.
	BuyText string `koanf:"buy_text"`
}

// TokenSection configures token lifetimes.
type TokenSection struct {
	// TTL is the delivery window measured from batch creation.
	TTL time.Duration `koanf:"ttl"`

	// RetractionDelay is how long delivered files stay in the chat.
	RetractionDelay time.Duration `koanf:"retraction_delay"`
}

// Storage backends for uploaded files.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// StorageSection configures records and file storage.
type StorageSection struct {
	// DataDir holds the badger database.
	DataDir string `koanf:"data_dir"`

	// FilesDir holds uploaded files for the local backend.
	FilesDir string `koanf:"files_dir"`

	// Backend is "local" or "s3".
	Backend string `koanf:"backend"`

	S3     S3Config     `koanf:"s3"`
	Badger BadgerConfig `koanf:"badger"`
}

// S3Config configures the S3 file backend.
type S3Config struct {
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
}

// BadgerConfig tunes the record database.
type BadgerConfig struct {
	GCInterval  time.Duration `koanf:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold"`
	SyncWrites  bool          `koanf:"sync_writes"`
}

// ShortenerSection configures the link shortener.
type ShortenerSection struct {
	Endpoint string `koanf:"endpoint"`

	// APIKey enables shortening. Empty publishes long links.
	APIKey string `koanf:"api_key"`

	Timeout time.Duration `koanf:"timeout"`
}

// ServerSection configures the operational endpoints.
type ServerSection struct {
	HTTP  HTTPConfig  `koanf:"http"`
	Local LocalConfig `koanf:"local"`
}

// HTTPConfig configures the ops HTTP server (/health, /ready, /metrics).
// An empty Addr disables it.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// LocalConfig configures the local management socket.
// An empty Path disables it.
type LocalConfig struct {
	Path string `koanf:"path"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
