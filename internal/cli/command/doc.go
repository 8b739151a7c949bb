// Package command defines the tokdrop-cli commands.
//
// Commands that talk to a running bot use the local management socket:
//
//	tokdrop-cli status
//	tokdrop-cli premium add 123456789
//	tokdrop-cli premium list
//	tokdrop-cli token show <id|transport>
//	tokdrop-cli token link <id|transport>
//	tokdrop-cli health
//
// backup and migrate open the data directory directly and must run while
// the bot is stopped; badger holds an exclusive lock on it otherwise.
// Backups are encrypted when --passphrase-file is given.
package command
