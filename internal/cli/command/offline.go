package command

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokdrop-go/internal/cli/output"
	"github.com/yndnr/tokdrop-go/internal/storage"
	"github.com/yndnr/tokdrop-go/internal/storage/backup"
)

const flagPassphraseFile = "passphrase-file"

// passphraseFlag selects backup encryption.
func passphraseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    flagPassphraseFile,
		Usage:   "file holding the backup passphrase (first line)",
		EnvVars: []string{"TOKDROP_BACKUP__PASSPHRASE_FILE"},
	}
}

// BackupCommand returns the backup subcommand group.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Back up or restore the record store (bot must be stopped)",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Write a compressed, optionally encrypted backup",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"f"},
						Usage:   "backup file (default tokdrop-<timestamp>.tdbk)",
					},
					passphraseFlag(),
				},
				Action: backupCreate,
			},
			{
				Name:      "restore",
				Usage:     "Merge a backup into the record store",
				ArgsUsage: "FILE",
				Flags:     []cli.Flag{passphraseFlag()},
				Action:    backupRestore,
			},
		},
	}
}

// backupResult describes a written backup.
type backupResult struct {
	File    string `json:"file" yaml:"file"`
	Version uint64 `json:"version" yaml:"version"`
	Bytes   int64  `json:"bytes" yaml:"bytes"`
	Cipher  string `json:"cipher" yaml:"cipher"`
}

func (r backupResult) Table() *output.Table {
	return output.KeyValue(
		"file", r.File,
		"version", fmt.Sprint(r.Version),
		"bytes", fmt.Sprint(r.Bytes),
		"cipher", r.Cipher,
	)
}

// readPassphrase returns the first line of the --passphrase-file, or nil
// when no file is given.
func readPassphrase(c *cli.Context) ([]byte, error) {
	path := c.String(flagPassphraseFile)
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	line, _, _ := bytes.Cut(raw, []byte("\n"))
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return nil, fmt.Errorf("read passphrase: %s is empty", path)
	}
	return line, nil
}

func backupCreate(c *cli.Context) error {
	path := c.String("out")
	if path == "" {
		path = "tokdrop-" + time.Now().UTC().Format("20060102T150405Z") + ".tdbk"
	}

	passphrase, err := readPassphrase(c)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := backup.Options{Passphrase: passphrase}
	version, err := writeBackup(c, store, path, opts)
	if err != nil {
		return err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return err
	}

	cipherName := backup.CipherNone.String()
	if len(passphrase) > 0 {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		r, used, err := backup.Open(f, passphrase)
		f.Close()
		if err != nil {
			return fmt.Errorf("verify backup: %w", err)
		}
		r.Close()
		cipherName = used.String()
	}
	return render(c, backupResult{File: path, Version: version, Bytes: fi.Size(), Cipher: cipherName})
}

// writeBackup streams a snapshot into path. The file only appears under
// its final name once complete.
func writeBackup(c *cli.Context, store *storage.RecordStore, path string, opts backup.Options) (uint64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tokdrop-backup-*")
	if err != nil {
		return 0, fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmp.Name())

	var version uint64
	err = backup.Write(tmp, func(w io.Writer) error {
		v, err := store.Snapshot(c.Context, w)
		version = v
		return err
	}, opts)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("finalize backup: %w", err)
	}
	return version, nil
}

func backupRestore(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: tokdrop-cli backup restore FILE", 2)
	}

	passphrase, err := readPassphrase(c)
	if err != nil {
		return err
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	snapshot, _, err := backup.Open(f, passphrase)
	if err != nil {
		return err
	}
	defer snapshot.Close()

	store, closeStore, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Restore(c.Context, snapshot); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	stats, err := store.Stats(c.Context)
	if err != nil {
		return err
	}
	return render(c, statsResult{
		Tokens:             stats.Tokens,
		OpenBatches:        stats.OpenBatches,
		Premium:            stats.Premium,
		PendingRetractions: stats.PendingRetractions,
	})
}

// statsResult renders record counts.
type statsResult struct {
	Tokens             int `json:"tokens" yaml:"tokens"`
	OpenBatches        int `json:"open_batches" yaml:"open_batches"`
	Premium            int `json:"premium_users" yaml:"premium_users"`
	PendingRetractions int `json:"pending_retractions" yaml:"pending_retractions"`
}

func (s statsResult) Table() *output.Table {
	return output.KeyValue(
		"tokens", fmt.Sprint(s.Tokens),
		"open_batches", fmt.Sprint(s.OpenBatches),
		"premium_users", fmt.Sprint(s.Premium),
		"pending_retractions", fmt.Sprint(s.PendingRetractions),
	)
}

// MigrateCommand returns the migrate command.
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Import tokens.json and premium.json from the earlier bot (bot must be stopped)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "tokens",
				Usage: "path to tokens.json",
			},
			&cli.StringFlag{
				Name:  "premium",
				Usage: "path to premium.json",
			},
		},
		Action: migrate,
	}
}

// importResult renders an ImportReport.
type importResult struct {
	Tokens         int `json:"tokens_imported" yaml:"tokens_imported"`
	SkippedTokens  int `json:"tokens_skipped" yaml:"tokens_skipped"`
	Premium        int `json:"premium_imported" yaml:"premium_imported"`
	SkippedPremium int `json:"premium_skipped" yaml:"premium_skipped"`
}

func (r importResult) Table() *output.Table {
	return output.KeyValue(
		"tokens_imported", fmt.Sprint(r.Tokens),
		"tokens_skipped", fmt.Sprint(r.SkippedTokens),
		"premium_imported", fmt.Sprint(r.Premium),
		"premium_skipped", fmt.Sprint(r.SkippedPremium),
	)
}

func migrate(c *cli.Context) error {
	if c.String("tokens") == "" && c.String("premium") == "" {
		return cli.Exit("migrate: at least one of --tokens or --premium is required", 2)
	}

	tokens, closeTokens, err := openOptional(c.String("tokens"))
	if err != nil {
		return err
	}
	defer closeTokens()

	premium, closePremium, err := openOptional(c.String("premium"))
	if err != nil {
		return err
	}
	defer closePremium()

	store, closeStore, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	report, err := store.ImportLegacy(c.Context, tokens, premium)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return render(c, importResult{
		Tokens:         report.Tokens,
		SkippedTokens:  report.SkippedTokens,
		Premium:        report.Premium,
		SkippedPremium: report.SkippedPremium,
	})
}

// openOptional opens path, or returns a nil reader for an empty path.
func openOptional(path string) (io.Reader, func() error, error) {
	if path == "" {
		return nil, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
