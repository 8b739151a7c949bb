package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var botTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Verify validates the configuration and creates missing local
// directories.
func Verify(cfg *BotConfig) error {
	if err := verifyBot(&cfg.Bot); err != nil {
		return err
	}
	if err := verifyToken(&cfg.Token); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	return nil
}

func verifyBot(cfg *BotSection) error {
	if cfg.Token == "" {
		return errors.New("bot.token is required")
	}
	if !botTokenPattern.MatchString(cfg.Token) {
		return errors.New("bot.token is malformed")
	}
	if len(cfg.Admins) == 0 {
		return errors.New("bot.admins must list at least one user id")
	}
	if strings.HasPrefix(cfg.Username, "@") {
		cfg.Username = strings.TrimPrefix(cfg.Username, "@")
	}
	if cfg.PollTimeout < 0 {
		return errors.New("bot.poll_timeout must not be negative")
	}
	if cfg.RateLimit < 0 {
		return errors.New("bot.rate_limit must not be negative")
	}
	return nil
}

func verifyToken(cfg *TokenSection) error {
	if cfg.TTL <= 0 {
		return errors.New("token.ttl must be positive")
	}
	if cfg.RetractionDelay <= 0 {
		return errors.New("token.retraction_delay must be positive")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}

	switch cfg.Backend {
	case BackendLocal:
		if cfg.FilesDir == "" {
			return errors.New("storage.files_dir is required for the local backend")
		}
		if err := os.MkdirAll(cfg.FilesDir, 0750); err != nil {
			return errors.New("cannot create files directory: " + err.Error())
		}
	case BackendS3:
		if cfg.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
		if cfg.S3.Region == "" {
			return errors.New("storage.s3.region is required for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendLocal, BackendS3, cfg.Backend)
	}

	if cfg.Badger.GCThreshold <= 0 || cfg.Badger.GCThreshold >= 1 {
		return errors.New("storage.badger.gc_threshold must be between 0 and 1")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch cfg.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}
