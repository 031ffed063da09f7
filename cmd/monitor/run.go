package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gov-monitoring/internal/collector"
	"gov-monitoring/internal/config"
	"gov-monitoring/internal/endpoint"
	"gov-monitoring/internal/logger"
	"gov-monitoring/internal/metrics"
	"gov-monitoring/internal/report"

	dbpkg "gov-monitoring/internal/db"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	pushJob     = "gov_monitor"
	pushTimeout = 10 * time.Second
)

type rootArguments struct {
	EnvFile  string
	Networks string
	Summary  bool
}

var rootArgs rootArguments

var rootCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Record governance proposals the validator has not voted on",
	Long: `Runs one ingestion pass over every configured network: lists proposals in
voting period, checks the validator's vote and stores the ones still waiting for a vote.
Scheduling is left to cron or a systemd timer.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMonitor,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootArgs.EnvFile, "env-file", ".env", "dotenv file loaded when present")
	rootCmd.PersistentFlags().StringVar(&rootArgs.Networks, "networks", "", "networks file (overrides NETWORKS_FILE)")
	rootCmd.Flags().BoolVar(&rootArgs.Summary, "summary", false, "print a per-network summary table after the run")
}

// loadConfig reads the env file if present, then the environment.
func loadConfig() config.Config {
	if _, statErr := os.Stat(rootArgs.EnvFile); statErr == nil {
		if err := godotenv.Load(rootArgs.EnvFile); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", rootArgs.EnvFile, err)
		}
	}
	cfg := config.Load()
	if rootArgs.Networks != "" {
		cfg.NetworksFile = rootArgs.Networks
	}
	return cfg
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()

	logOut, err := logger.OpenFile(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logOut.Close()
	log := logger.NewWithWriter(cfg.Debug, cfg.LogFormat, logOut)
	log.Info("governance monitor starting", "config", cfg.DebugString())

	catalog, err := config.LoadCatalog(cfg.NetworksFile)
	if err != nil {
		return err
	}
	log.Info("networks loaded", "count", catalog.Len())

	gormDB, err := dbpkg.Open(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	var (
		store  collector.Store
		memory *dbpkg.MemoryStore
	)
	if gormDB != nil {
		log.Info("DB connected")
		if sqlDB, err := gormDB.DB(); err == nil {
			defer sqlDB.Close()
		}
		store = dbpkg.NewStore(gormDB)
	} else {
		log.Info("DATABASE_URL not provided, dry run with in-memory store")
		memory = dbpkg.NewMemoryStore()
		store = memory
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	client := endpoint.NewClient(nil, cfg.UserAgent, m)
	coll := collector.NewCollector(collector.OptionsFromConfig(cfg), catalog, client, store, log, m)

	sum, runErr := coll.Run(ctx)
	if rootArgs.Summary && sum != nil {
		fmt.Fprintln(cmd.OutOrStdout(), report.Summary(sum))
	}
	if memory != nil {
		fmt.Fprintln(cmd.OutOrStdout(), report.Proposals(memory.All()))
	}

	// push even after a failed run so the gateway shows when it last ran
	pushCtx, pushCancel := context.WithTimeout(context.Background(), pushTimeout)
	defer pushCancel()
	if err := m.Push(pushCtx, cfg.PushgatewayURL, pushJob); err != nil {
		log.Error("metrics push failed", "err", err)
	}

	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	return nil
}
