package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"societyadmin"
)

var (
	configPath string
	logger     = zap.NewNop()
	interval   time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "daemon",
	Short:         "Maintenance tasks for the society admin dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := societyadmin.LoadConfig(configPath)
		if err != nil {
			return err
		}

		logger, err = societyadmin.NewLogger(c.LogLevel, c.LogFormat)
		if err != nil {
			return fmt.Errorf("unable to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		if err := societyadmin.MigrateUp(c.PostgresUrl); err != nil {
			return err
		}

		logger.Info("database is up to date")
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture one revenue snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		source, err := serviceClient(ctx, c)
		if err != nil {
			return err
		}

		pool, err := societyadmin.Connect(ctx, c.PostgresUrl)
		if err != nil {
			return err
		}
		defer pool.Close()

		snapshot, err := societyadmin.CaptureRevenueSnapshot(ctx, source, societyadmin.PostgresSnapshotRepository{Conn: pool})
		if err != nil {
			return err
		}

		logger.Info("captured revenue snapshot",
			zap.String("id", snapshot.Id),
			zap.String("total_revenue", snapshot.TotalRevenue.StringFixed(2)),
		)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture revenue snapshots on an interval until stopped",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("interval") {
			interval = c.SnapshotInterval
		}
		if interval <= 0 {
			return errors.New("interval must be positive")
		}

		if err := societyadmin.MigrateUp(c.PostgresUrl); err != nil {
			return err
		}

		source, err := serviceClient(ctx, c)
		if err != nil {
			return err
		}

		pool, err := societyadmin.Connect(ctx, c.PostgresUrl)
		if err != nil {
			return err
		}
		defer pool.Close()

		repo := societyadmin.PostgresSnapshotRepository{Conn: pool}

		last, err := societyadmin.LastCaptured(ctx, repo)
		if err != nil {
			logger.Warn("unable to read the latest revenue snapshot", zap.Error(err))
		}
		logger.Info("capturing revenue snapshots", zap.Duration("interval", interval), zap.String("last_captured", last))

		errs := societyadmin.RunRevenueSnapshots(ctx, source, repo, interval, logger)
		for err := range errs {
			logger.Error("unable to capture revenue snapshot", zap.Error(err))
		}

		logger.Info("stopped")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".env", "path to an optional env file")
	runCmd.Flags().DurationVar(&interval, "interval", time.Hour, "time between snapshots (defaults to SNAPSHOT_INTERVAL)")

	rootCmd.AddCommand(migrateCmd, snapshotCmd, runCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
