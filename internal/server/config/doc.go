// Package config provides the bot configuration for TokDrop.
//
// This package defines the configuration structure and validation:
//
//   - spec.go: BotConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Business validation (required secrets, ranges, paths)
//   - sanitize.go: Log sanitization (hide sensitive values)
//
// Configuration is loaded via internal/infra/confloader from a YAML file
// and TOKDROP_ environment variables on top of Default().
package config
