// Command standings-feed keeps an NBA standings snapshot fresh on disk and
// serves it over HTTP to display clients on the local network.
//
// Usage:
//
//	standings-feed
//	standings-feed serve --config ./config.json --port 8080
//	standings-feed fetch --output ./standings.json
//	STANDINGS_PROVIDER=postgres DATABASE_URL=postgres://... standings-feed
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/albapepper/scoracle-standings/internal/api"
	"github.com/albapepper/scoracle-standings/internal/config"
	"github.com/albapepper/scoracle-standings/internal/logging"
	"github.com/albapepper/scoracle-standings/internal/provider"
	"github.com/albapepper/scoracle-standings/internal/provider/nbastats"
	"github.com/albapepper/scoracle-standings/internal/provider/pgstandings"
	"github.com/albapepper/scoracle-standings/internal/supervisor"
)

// bootLogger reports failures that happen before the configured logger
// exists.
var bootLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// flags shared by every command
type flags struct {
	configPath string
	port       int
	output     string
}

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	var f flags
	root := &cobra.Command{
		Use:           "standings-feed",
		Short:         "Fetch NBA standings on a schedule and serve them over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "", "Config file (default: config.json next to the executable)")
	root.PersistentFlags().IntVar(&f.port, "port", 0, "Serving port (overrides server_port)")
	root.PersistentFlags().StringVar(&f.output, "output", "", "Snapshot file path (overrides output_file)")

	root.AddCommand(serveCmd(&f))
	root.AddCommand(fetchCmd(&f))

	if err := root.Execute(); err != nil {
		bootLogger.Error("standings-feed failed", "error", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// serve command
// --------------------------------------------------------------------------

func serveCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Refresh the snapshot periodically and serve it (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *f)
		},
	}
}

func runServe(cmd *cobra.Command, f flags) error {
	return run(cmd, f, func(ctx context.Context, sup *supervisor.Supervisor, logger *slog.Logger) error {
		err := sup.Run(ctx)
		var berr *api.BindError
		if errors.As(err, &berr) {
			logger.Error("Could not bind serving port; is another instance running?",
				"addr", berr.Addr, "error", berr.Err)
			return err
		}
		if err != nil {
			return err
		}
		logger.Info("Shut down cleanly")
		return nil
	})
}

// --------------------------------------------------------------------------
// fetch command
// --------------------------------------------------------------------------

func fetchCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Run a single refresh cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, *f, func(ctx context.Context, sup *supervisor.Supervisor, logger *slog.Logger) error {
				c := sup.RunOnce(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), c.Summary())
				if !c.OK() {
					return c.Err
				}
				fmt.Fprintln(cmd.OutOrStdout(), c.Path)
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

func run(cmd *cobra.Command, f flags, fn func(ctx context.Context, sup *supervisor.Supervisor, logger *slog.Logger) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger, err := logging.New(os.Stdout, cfg.LogFile, level)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	fetcher, closeFetcher, err := newFetcher(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer closeFetcher()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sup, err := supervisor.New(cfg, fetcher, logger.Logger, reg)
	if err != nil {
		return err
	}
	return fn(ctx, sup, logger.Logger)
}

// loadConfig layers command-line flags over the file and environment.
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if applyFlags(cmd, f, cfg) {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, f flags, cfg *config.Config) bool {
	changed := false
	if cmd.Flags().Changed("port") {
		cfg.ServerPort = f.port
		changed = true
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputFile = f.output
		changed = true
	}
	return changed
}

// newFetcher builds the configured upstream provider. The returned func
// releases its resources.
func newFetcher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (provider.Fetcher, func(), error) {
	switch cfg.Provider {
	case config.ProviderPostgres:
		season := cfg.Season
		if season == "" {
			season = nbastats.SeasonFor(time.Now())
		}
		logger.Info("Connecting to database...")
		src, err := pgstandings.New(ctx, pgstandings.Config{DatabaseURL: cfg.DatabaseURL, Season: season})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info("Database connected", "season", season)
		return src, src.Close, nil
	default:
		client := nbastats.NewClient(nbastats.Options{
			BaseURL:           cfg.NBAStatsURL,
			Season:            cfg.Season,
			SeasonType:        cfg.SeasonType,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Timeout:           cfg.FetchTimeout,
		}, logger)
		return client, func() {}, nil
	}
}
