// Package confloader loads layered configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Environment variables (TOKDROP_ prefix)
//  2. Configuration file (YAML)
//  3. Values already present in the target struct (defaults)
//
// Environment keys use a double underscore between sections so that
// single underscores can stay inside key names:
//
//	TOKDROP_STORAGE__DATA_DIR=/srv/tokdrop  ->  storage.data_dir
//	TOKDROP_BOT__ADMINS=111,222             ->  bot.admins (list key)
//
// Watcher notifies about writes to watched files; the bot uses it to
// apply log level changes without a restart.
package confloader
