package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokdrop-go/internal/cli/connection"
	"github.com/yndnr/tokdrop-go/internal/cli/output"
	"github.com/yndnr/tokdrop-go/internal/infra/buildinfo"
	"github.com/yndnr/tokdrop-go/internal/server/config"
	"github.com/yndnr/tokdrop-go/internal/storage"
	"github.com/yndnr/tokdrop-go/internal/telemetry/logger"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "tokdrop-cli",
		Usage:   "TokDrop bot management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			StatusCommand(),
			HealthCommand(),
			PremiumCommand(),
			TokenCommand(),
			BackupCommand(),
			MigrateCommand(),
		},
		Before: func(c *cli.Context) error {
			_, err := output.ParseFormat(c.String("output"))
			return err
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "socket",
			Aliases: []string{"s"},
			Usage:   "local management socket of the running bot",
			EnvVars: []string{"TOKDROP_SERVER__LOCAL__PATH"},
			Value:   config.DefaultLocalSocket,
		},
		&cli.StringFlag{
			Name:    "http",
			Usage:   "ops HTTP address of the running bot",
			EnvVars: []string{"TOKDROP_SERVER__HTTP__ADDR"},
			Value:   config.DefaultHTTPAddr,
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "record store directory (backup, migrate)",
			EnvVars: []string{"TOKDROP_STORAGE__DATA_DIR"},
			Value:   config.DefaultDataDir,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "log storage engine activity to stderr",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Socket  string
	HTTP    string
	DataDir string
	Output  output.Format
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	format, _ := output.ParseFormat(c.String("output"))
	return &GlobalFlags{
		Socket:  c.String("socket"),
		HTTP:    c.String("http"),
		DataDir: c.String("data-dir"),
		Output:  format,
		Verbose: c.Bool("verbose"),
	}
}

func socketClient(c *cli.Context) *connection.SocketClient {
	return connection.NewSocketClient(ParseGlobalFlags(c).Socket)
}

// render renders data in the selected format to the app writer.
func render(c *cli.Context, data any) error {
	return output.NewFormatter(ParseGlobalFlags(c).Output).Format(writer(c), data)
}

func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// openStore opens the record store in the data directory for offline
// commands. The returned func closes it.
func openStore(c *cli.Context) (*storage.RecordStore, func() error, error) {
	flags := ParseGlobalFlags(c)

	var log *slog.Logger
	if flags.Verbose {
		log, _ = logger.New(logger.Config{Level: "debug", Format: "text", Output: c.App.ErrWriter})
	} else {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	engine, err := storage.NewBadgerEngine(storage.DefaultKVConfig(flags.DataDir), log)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s (is tokdrop-bot still running?): %w", flags.DataDir, err)
	}
	return storage.NewRecordStore(engine), engine.Close, nil
}
