// Command tokdrop-bot runs the token-gated file delivery bot.
//
// Admins upload files in a private chat, /finish publishes them behind a
// t.me deep link, and anyone opening the link within the token's lifetime
// receives the files, which are deleted from the chat again after a delay.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/tokdrop-go/internal/bot"
	"github.com/yndnr/tokdrop-go/internal/core/service"
	"github.com/yndnr/tokdrop-go/internal/infra/buildinfo"
	"github.com/yndnr/tokdrop-go/internal/infra/clock"
	"github.com/yndnr/tokdrop-go/internal/infra/confloader"
	"github.com/yndnr/tokdrop-go/internal/infra/shutdown"
	"github.com/yndnr/tokdrop-go/internal/platform/shortener"
	"github.com/yndnr/tokdrop-go/internal/platform/telegram"
	"github.com/yndnr/tokdrop-go/internal/server/config"
	"github.com/yndnr/tokdrop-go/internal/server/httpserver"
	"github.com/yndnr/tokdrop-go/internal/server/localserver"
	"github.com/yndnr/tokdrop-go/internal/storage"
	"github.com/yndnr/tokdrop-go/internal/storage/blob"
	"github.com/yndnr/tokdrop-go/internal/telemetry/logger"
	"github.com/yndnr/tokdrop-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("tokdrop-bot " + buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting tokdrop-bot",
		"version", buildinfo.Get().Version,
		"commit", buildinfo.Get().Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	started := time.Now()
	sh := shutdown.NewHandler(shutdownTimeout, shutdown.WithLogger(log))
	ctx := sh.Context()
	metrics := metric.Global()

	engine, err := initStorage(cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	records := storage.NewRecordStore(engine)
	sh.OnShutdown("storage", func(context.Context) error {
		return engine.Close()
	})

	files, err := initFiles(ctx, cfg)
	if err != nil {
		return errors.Join(fmt.Errorf("init file store: %w", err), engine.Close())
	}

	client, err := telegram.NewClient(telegram.ClientConfig{
		Token:     cfg.Bot.Token,
		APIURL:    cfg.Bot.APIURL,
		Logger:    log,
		RateLimit: cfg.Bot.RateLimit,
		Metrics:   metrics,
	})
	if err != nil {
		return errors.Join(err, engine.Close())
	}

	me, err := client.GetMe(ctx)
	if err != nil {
		return errors.Join(fmt.Errorf("getMe (check bot.token): %w", err), engine.Close())
	}
	if cfg.Bot.Username == "" {
		cfg.Bot.Username = me.Username
	}
	log.Info("authorized with Bot API", "bot", cfg.Bot.Username, "bot_id", me.ID)

	short, err := initShortener(cfg, log)
	if err != nil {
		return errors.Join(err, engine.Close())
	}

	clk := clock.Real()
	messenger := telegram.NewMessenger(client)
	retractor := service.NewRetractor(service.RetractorConfig{
		Messenger: messenger,
		Repo:      records,
		Clock:     clk,
		Delay:     cfg.Token.RetractionDelay,
		Metrics:   metrics,
	})
	sh.OnShutdown("retractor", func(context.Context) error {
		retractor.Stop()
		return nil
	})

	restored, err := retractor.Restore(ctx)
	if err != nil {
		log.Warn("failed to restore pending retractions", "error", err)
	} else if restored > 0 {
		log.Info("pending retractions restored", "count", restored)
	}

	batches := service.NewBatchService(records, files, clk, metrics)
	publisher := service.NewPublisher(batches, short, cfg.Bot.Username, metrics)
	gate := service.NewGate(records, clk, cfg.Token.TTL, metrics)
	deliverer := service.NewDeliverer(files, messenger, retractor, metrics)

	metrics.Registerer().MustRegister(metric.NewCollector(func(ctx context.Context) (metric.StoreCounts, error) {
		stats, err := records.Stats(ctx)
		if err != nil {
			return metric.StoreCounts{}, err
		}
		return metric.StoreCounts{
			Tokens:             stats.Tokens,
			OpenBatches:        stats.OpenBatches,
			Premium:            stats.Premium,
			PendingRetractions: retractor.Pending(),
		}, nil
	}))

	b, err := bot.New(bot.Options{
		API:         client,
		Batches:     batches,
		Publisher:   publisher,
		Gate:        gate,
		Deliverer:   deliverer,
		Premium:     records,
		Admins:      cfg.Bot.Admins,
		BuyText:     cfg.Bot.BuyText,
		PollTimeout: cfg.Bot.PollTimeout,
		Metrics:     metrics,
	})
	if err != nil {
		return errors.Join(err, engine.Close())
	}

	if addr := cfg.Server.HTTP.Addr; addr != "" {
		startHTTP(sh, addr, log, metrics, records)
	}

	if path := cfg.Server.Local.Path; path != "" {
		handler := localserver.NewHandler(localserver.HandlerConfig{
			Store:  records,
			Links:  publisher,
			Clock:  clk,
			TTL:    gate.TTL(),
			Uptime: func() time.Duration { return time.Since(started) },
		})
		local := localserver.New(path, handler, log, metrics)
		if err := local.Listen(); err != nil {
			sh.Trigger(fmt.Errorf("local socket: %w", err))
		} else {
			sh.OnShutdown("local socket", local.Shutdown)
			go func() {
				log.Info("local socket listening", "path", path)
				if err := local.ListenAndServe(); err != nil {
					sh.Trigger(fmt.Errorf("local socket: %w", err))
				}
			}()
		}
	}

	if *configFile != "" {
		if stop, err := watchLogLevel(*configFile, log); err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			sh.OnShutdown("config watcher", func(context.Context) error { return stop() })
		}
	}

	pollDone := make(chan struct{})
	sh.OnShutdown("poll loop", func(ctx context.Context) error {
		select {
		case <-pollDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	go func() {
		defer close(pollDone)
		log.Info("polling for updates", "bot", cfg.Bot.Username, "admins", len(cfg.Bot.Admins))
		sh.Trigger(b.Run(ctx))
	}()

	if err := sh.Wait(); err != nil {
		log.Error("stopped with error", "error", err)
		return err
	}

	log.Info("bot stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.BotConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithListKeys("bot.admins")}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger builds the process logger and installs it as slog's default.
func initLogger(cfg *config.BotConfig) (*slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	return log, nil
}

func initStorage(cfg *config.BotConfig, log *slog.Logger, metrics *metric.Registry) (*storage.BadgerEngine, error) {
	kv := storage.DefaultKVConfig(cfg.Storage.DataDir)
	kv.Badger.GCInterval = cfg.Storage.Badger.GCInterval.String()
	kv.Badger.GCThreshold = cfg.Storage.Badger.GCThreshold
	kv.Badger.SyncWrites = cfg.Storage.Badger.SyncWrites

	engine, err := storage.NewBadgerEngine(kv, log)
	if err != nil {
		return nil, err
	}
	return engine.RegisterMetrics(metrics.Registerer()), nil
}

func initFiles(ctx context.Context, cfg *config.BotConfig) (blob.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendS3:
		s3 := cfg.Storage.S3
		return blob.NewS3(ctx, blob.S3Config{
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			Region:    s3.Region,
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
		})
	default:
		return blob.NewLocal(cfg.Storage.FilesDir)
	}
}

// initShortener returns nil when no API key is configured, so links are
// published unshortened.
func initShortener(cfg *config.BotConfig, log *slog.Logger) (service.Shortener, error) {
	c, err := shortener.New(shortener.Config{
		Endpoint: cfg.Shortener.Endpoint,
		APIKey:   cfg.Shortener.APIKey,
		Timeout:  cfg.Shortener.Timeout,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	if !c.Enabled() {
		log.Info("link shortener disabled (no api key)")
		return nil, nil
	}
	return c, nil
}

func startHTTP(sh *shutdown.Handler, addr string, log *slog.Logger, metrics *metric.Registry, records *storage.RecordStore) {
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:  log,
		Metrics: metrics,
		Ready: func(ctx context.Context) error {
			_, err := records.Stats(ctx)
			return err
		},
	})
	srv := httpserver.New(addr, router)
	sh.OnShutdown("ops http", srv.Shutdown)

	go func() {
		log.Info("ops HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sh.Trigger(fmt.Errorf("ops http: %w", err))
		}
	}()
}

// watchLogLevel re-reads the config file on change and applies log.level.
// Other settings need a restart.
func watchLogLevel(path string, log *slog.Logger) (stop func() error, err error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}

	w.OnChange(func(string) {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("ignoring invalid config change", "error", err)
			return
		}
		if cfg.Log.Level == logger.Level() {
			return
		}
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			log.Warn("ignoring invalid log level", "level", cfg.Log.Level, "error", err)
			return
		}
		log.Info("log level changed", "level", logger.Level())
	})
	w.StartAsync()
	return w.Stop, nil
}
