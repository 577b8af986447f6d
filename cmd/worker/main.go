package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/feichai0017/factcheck-gateway/config"
	"github.com/feichai0017/factcheck-gateway/internal/bootstrap"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
	"github.com/feichai0017/factcheck-gateway/pkg/queue"
	"github.com/feichai0017/factcheck-gateway/pkg/worker"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "factcheck-worker",
	Short:        "Runs queued fact-checks and sweeps expired attachments",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to the YAML config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := bootstrap.NewLogger(cfg, "worker")
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer log.Sync()

	app := bootstrap.New(ctx, cfg, log)
	defer app.Close()

	checkWorker, err := worker.NewCheckWorker(&worker.Config{
		RedisAddr:   cfg.Redis.Addr,
		RedisDB:     cfg.Redis.DB,
		Concurrency: cfg.Redis.Concurrency,
		Queues:      queue.DefaultPriorities(),
		CleanupSpec: cfg.Redis.CleanupSchedule,
	}, app.Service, log)
	if err != nil {
		log.Error("Failed to create check worker", logger.Error(err))
		return err
	}

	if err := checkWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		return err
	}
	log.Info("Worker started", logger.Int("concurrency", cfg.Redis.Concurrency))

	<-ctx.Done()
	log.Info("Shutting down worker...")
	checkWorker.Stop()
	log.Info("Worker stopped")
	return nil
}
