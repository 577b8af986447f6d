package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/feichai0017/factcheck-gateway/api/handlers"
	"github.com/feichai0017/factcheck-gateway/api/routes"
	"github.com/feichai0017/factcheck-gateway/config"
	"github.com/feichai0017/factcheck-gateway/internal/bootstrap"
	"github.com/feichai0017/factcheck-gateway/internal/utils/validator"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "factcheck-server",
	Short:        "Streams fact-check verdicts from Gemini and Groq",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
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

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := bootstrap.NewLogger(cfg, "server")
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer log.Sync()

	app := bootstrap.New(ctx, cfg, log)
	defer app.Close()

	h := handlers.NewHandlers(handlers.Deps{
		Service:     app.Service,
		Validator:   validator.NewUploadValidator(cfg.Server.MaxFileSize),
		Catalog:     app.Catalog,
		Diagnostics: app.Providers,
		Redis:       app.Queue,
	}, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", logger.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error("Server error", logger.Error(err))
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
		return err
	}
	return nil
}
