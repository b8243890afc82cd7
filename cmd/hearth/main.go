// Hearth daemon - the household state service
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quantumlife/hearth/internal/api"
	"github.com/quantumlife/hearth/internal/clock"
	"github.com/quantumlife/hearth/internal/config"
	"github.com/quantumlife/hearth/internal/core"
	"github.com/quantumlife/hearth/internal/kv"
	"github.com/quantumlife/hearth/internal/logging"
	"github.com/quantumlife/hearth/internal/metrics"
	"github.com/quantumlife/hearth/internal/notifications"
	"github.com/quantumlife/hearth/internal/notify"
	"github.com/quantumlife/hearth/internal/prefs"
	"github.com/quantumlife/hearth/internal/ratelimit"
	"github.com/quantumlife/hearth/internal/scheduler"
	"github.com/quantumlife/hearth/internal/state"
	"github.com/quantumlife/hearth/internal/storage"
	"github.com/quantumlife/hearth/internal/store"
)

const (
	toastCleanupInterval = time.Hour
	toastRetention       = 7 * 24 * time.Hour
)

var (
	configPath string
	dataDir    string
	port       int
	env        string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hearth",
		Short: "Hearth daemon - household state store and API",
		RunE:  runDaemon,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "config file (default <data-dir>/config.yaml)")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.hearth)")
	rootCmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	rootCmd.Flags().StringVar(&env, "env", "", "environment: production, development or test")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" && dataDir != "" {
		path = config.DefaultPath(dataDir)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	// Flags win over the file and the environment.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if env != "" {
		cfg.Environment = env
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	environment := cfg.Env()
	if environment == store.Production {
		logging.SetLevel(logging.INFO)
	} else {
		logging.SetLevel(logging.DEBUG)
	}
	log := logging.WithField("component", "daemon")
	defer logging.Default().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting hearth (%s) with %s storage in %s", environment, cfg.Storage.Backend, cfg.DataDir)

	// Preferences storage
	prefStore, err := kv.Open(ctx, cfg.KVOptions())
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer kv.Close(prefStore)

	// Toast history shares the sqlite database when there is one.
	db, closeDB, err := notificationsDB(prefStore, cfg.DataDir)
	if err != nil {
		return err
	}
	defer closeDB()

	clk := clock.Real{}
	collector := metrics.NewCollector(metrics.DefaultNamespace)
	rateLimits := ratelimit.NewStore(clk, time.Duration(cfg.RateLimits.CleanupInterval))
	monitor := store.NewMonitor(clk, cfg.Performance.MaxMeasures, time.Duration(cfg.Performance.SlowActionThreshold))
	toasts := notifications.NewService(db, clk)
	errHandler := core.NewHandler(logging.Default(), notify.Multi{
		notify.Log{Logger: log},
		toasts,
	})

	p, err := prefs.Load(ctx, prefStore)
	if err != nil {
		log.Warn("Using default preferences: %v", err)
	}
	initial := prefs.Apply(state.Initial(clk.Now()), p)
	if cfg.Features.DebugMode {
		initial = state.Reduce(initial, state.SetDebugMode{Enabled: true})
	}

	chain := store.NewChain(environment, store.Deps{
		Logger:        logging.Default(),
		Clock:         clk,
		Storage:       prefStore,
		Metrics:       collector,
		Errors:        errHandler,
		RateLimits:    rateLimits,
		Limits:        cfg.RateLimits.Limits(),
		Monitor:       monitor,
		SlowThreshold: time.Duration(cfg.Performance.SlowActionThreshold),
	})
	st := store.New(chain,
		store.WithInitialState(initial),
		store.WithMetrics(collector),
		store.WithClock(clk),
	)
	log.Info("Middleware chain: %v", chain.Names())

	tasks := scheduler.New(logging.Default())
	err = tasks.Register(scheduler.Task{
		ID:       "toast-cleanup",
		Interval: toastCleanupInterval,
		Handler: func(ctx context.Context) error {
			n, err := toasts.Cleanup(ctx, toastRetention)
			if n > 0 {
				log.Debug("Removed %d old toasts", n)
			}
			return err
		},
	})
	if err != nil {
		return err
	}

	server := api.New(api.Config{
		Addr:          cfg.Server.Addr(),
		Store:         st,
		Storage:       prefStore,
		Notifications: toasts,
		RateLimits:    rateLimits,
		Metrics:       collector,
		Monitor:       monitor,
		Scheduler:     tasks,
		Logger:        logging.Default(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rateLimits.Run(ctx)
	})
	g.Go(func() error {
		return tasks.Run(ctx)
	})
	if f := fileBackend(prefStore); f != nil {
		g.Go(func() error {
			log.Info("Watching %s for external changes", f.Path())
			return prefs.Watch(ctx, f, prefStore, st)
		})
	}
	g.Go(func() error {
		return server.Start(ctx)
	})

	err = g.Wait()
	log.Info("Shutting down")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// notificationsDB returns the database backing the toast history and a
// function that releases it.
func notificationsDB(s kv.Store, dir string) (*storage.DB, func(), error) {
	if enc, ok := s.(*kv.Encrypted); ok {
		s = enc.Unwrap()
	}
	if sq, ok := s.(*kv.SQLite); ok {
		return sq.DB(), func() {}, nil
	}

	db, err := storage.Open(storage.Config{Path: filepath.Join(dir, "hearth.db")})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, func() { db.Close() }, nil
}

func fileBackend(s kv.Store) *kv.File {
	if enc, ok := s.(*kv.Encrypted); ok {
		s = enc.Unwrap()
	}
	f, _ := s.(*kv.File)
	return f
}
