// Command possync is the operator CLI for the offline-first POS sync engine:
// it runs reconciliation cycles, inspects the operation log, and probes
// remote reachability against the same local state the embedding application
// uses.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dnugroho/possync/internal/config"
	"github.com/dnugroho/possync/internal/connectivity"
	"github.com/dnugroho/possync/internal/db"
	"github.com/dnugroho/possync/internal/logging"
	"github.com/dnugroho/possync/internal/oplog"
	"github.com/dnugroho/possync/internal/remote"
	"github.com/dnugroho/possync/internal/syncer"
)

var (
	flagConfig  string
	flagDataDir string
	flagVerbose bool
)

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "possync.toml"
	}
	return filepath.Join(home, ".possync", "config.toml")
}

// engine bundles everything a command needs.
type engine struct {
	cfg     *config.Config
	db      *db.DB
	store   *db.Store
	log     *oplog.Log
	remote  remote.Client
	monitor *connectivity.Monitor
	coord   *syncer.Coordinator
}

func buildEngine() (*engine, error) {
	path := flagConfig
	if path == "" {
		path = defaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.Local.DataDir = flagDataDir
	}

	level := cfg.Local.LogLevel
	if flagVerbose {
		level = "debug"
	}
	logger := logging.NewConsole(level)

	database, err := db.Open(cfg.Local.DataDir)
	if err != nil {
		return nil, err
	}
	if err := database.Init(); err != nil {
		database.Close()
		return nil, err
	}

	store := db.NewStore(database)
	log := oplog.New(database, logger)
	rc := remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.Remote.Token, logger)

	prober := &connectivity.DialProber{
		Addr:    cfg.Remote.ProbeAddr,
		Timeout: config.Duration(cfg.Remote.ProbeTimeout, connectivity.DefaultProbeTimeout),
	}
	monitor := connectivity.NewMonitor(prober, config.Duration(cfg.Sync.PollInterval, connectivity.DefaultPollInterval), logger)

	coord := syncer.New(store, log, rc, monitor, syncer.Config{
		CycleTimeout: config.Duration(cfg.Sync.CycleTimeout, 2*time.Minute),
		Retention:    cfg.Retention(),
		SyncInterval: config.Duration(cfg.Sync.SyncInterval, 15*time.Minute),
	}, logger)

	return &engine{
		cfg:     cfg,
		db:      database,
		store:   store,
		log:     log,
		remote:  rc,
		monitor: monitor,
		coord:   coord,
	}, nil
}

func (e *engine) close() {
	e.store.Close()
	e.db.Close()
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation cycle (pull, push, cleanup)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine()
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			e.monitor.SetConnected(probeOnce(ctx, e))

			result, err := e.coord.Sync(ctx)
			if result != nil {
				fmt.Printf("status:    %s\n", result.Status)
				fmt.Printf("pulled:    %d (%d errors)\n", result.Pulled, result.PullErrors)
				fmt.Printf("pushed:    %d synced, %d failed, %d awaiting manual sync\n",
					result.Synced, result.Failed, result.NotSyncable)
				fmt.Printf("pending:   %d\n", result.RemainingPending)
				fmt.Printf("cleaned:   %d\n", result.Cleaned)
				fmt.Printf("duration:  %s\n", result.Duration.Round(time.Millisecond))
			}
			return err
		},
	}
}

func probeOnce(ctx context.Context, e *engine) bool {
	prober := &connectivity.DialProber{
		Addr:    e.cfg.Remote.ProbeAddr,
		Timeout: config.Duration(e.cfg.Remote.ProbeTimeout, connectivity.DefaultProbeTimeout),
	}
	return prober.Probe(ctx)
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and operation log state",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine()
			if err != nil {
				return err
			}
			defer e.close()

			connected := probeOnce(cmd.Context(), e)
			stats, err := e.log.GetStats()
			if err != nil {
				return err
			}

			fmt.Printf("remote:    %s\n", e.cfg.Remote.BaseURL)
			fmt.Printf("reachable: %v\n", connected)
			fmt.Printf("pending:   %d\n", stats.Pending)
			fmt.Printf("synced:    %d\n", stats.Synced)
			fmt.Printf("total:     %d\n", stats.Total)
			return nil
		},
	}
}

func newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List operations awaiting sync, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine()
			if err != nil {
				return err
			}
			defer e.close()

			ops, err := e.log.GetPending()
			if err != nil {
				return err
			}
			if len(ops) == 0 {
				fmt.Println("no pending operations")
				return nil
			}
			now := time.Now()
			for _, op := range ops {
				fmt.Printf("%s  %-6s %-20s age=%s\n",
					op.ID, op.Kind, op.Table, op.Age(now).Round(time.Second))
			}
			return nil
		},
	}
}

func newCleanupCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete synced log entries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine()
			if err != nil {
				return err
			}
			defer e.close()

			retention := e.cfg.Retention()
			if days > 0 {
				retention = time.Duration(days) * 24 * time.Hour
			}
			deleted, err := e.log.Cleanup(retention)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d synced entries older than %s\n", deleted, retention)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention window in days (default from config)")
	return cmd
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check remote store reachability once",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine()
			if err != nil {
				return err
			}
			defer e.close()

			if !probeOnce(cmd.Context(), e) {
				fmt.Printf("unreachable: %s\n", e.cfg.Remote.ProbeAddr)
				os.Exit(1)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), connectivity.DefaultProbeTimeout)
			defer cancel()
			if err := e.remote.Ping(ctx); err != nil {
				fmt.Printf("network up, remote store not responding: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("remote store reachable")
			return nil
		},
	}
}

func main() {
	root := &cobra.Command{
		Use:           "possync",
		Short:         "Offline-first POS sync engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config.toml")
	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "override local data directory")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newSyncCmd(), newStatusCmd(), newPendingCmd(), newCleanupCmd(), newProbeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
