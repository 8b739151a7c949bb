package config

import "strings"

// Sanitize returns a copy of the config with secrets masked, for logging.
func Sanitize(cfg *BotConfig) *BotConfig {
	sanitized := *cfg
	sanitized.Bot.Admins = append([]int64(nil), cfg.Bot.Admins...)

	sanitized.Bot.Token = maskSecret(sanitized.Bot.Token)
	sanitized.Shortener.APIKey = maskSecret(sanitized.Shortener.APIKey)
	sanitized.Storage.S3.SecretKey = maskSecret(sanitized.Storage.S3.SecretKey)

	return &sanitized
}

// maskSecret keeps the first and last two characters of s.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
