package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/blueplan/noteshare-go/internal/noteshare/app"
	logx "github.com/blueplan/noteshare-go/internal/noteshare/log"
)

var shutdownTimeout time.Duration

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "time allowed for in-flight requests on shutdown")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	// gin's own output (route table, debug warnings) goes through the same logger
	gin.DefaultWriter = logger.Writer()
	gin.DefaultErrorWriter = logger.Writer()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "starting noteshare",
		logx.KV("version", cfg.App.Version),
		logx.KV("environment", cfg.App.Environment),
		logx.KV("store", cfg.Store.Driver),
		logx.KV("retention", cfg.Store.Retention))

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", logx.KV("error", err))
		return err
	}
	a.StartBackground(ctx)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.Server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	case err = <-serveErr:
		if err != nil {
			logger.Error(context.Background(), "http server failed", logx.KV("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := a.Shutdown(shutdownCtx); serr != nil {
		logger.Error(shutdownCtx, "shutdown incomplete", logx.KV("error", serr))
		if err == nil {
			err = serr
		}
	}
	logger.Info(shutdownCtx, "noteshare stopped")
	return err
}
