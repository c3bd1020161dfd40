package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"

	adapterlogger "citizen-portal/internal/adapters/logger"
	"citizen-portal/internal/infrastructure"
	"citizen-portal/internal/platform/app"
)

func main() {
	ctx := context.Background()

	cfg, err := infrastructure.Load()
	if err != nil {
		adapterlogger.New().Error(ctx, "configuration error", "error", err)
		os.Exit(1)
	}
	xray.Configure(xray.Config{LogLevel: "error"})

	portal, err := app.New(ctx, cfg)
	if err != nil {
		adapterlogger.New().Error(ctx, "failed to initialize portal", "error", err)
		os.Exit(1)
	}
	defer portal.Close()

	go func() {
		portal.Logger.Info(ctx, "starting http server", "port", cfg.Port, "store", cfg.StoreBackend, "auth_mode", cfg.AuthMode)
		if err := portal.Echo.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			portal.Logger.Error(ctx, "http server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := portal.Echo.Shutdown(shutdownCtx); err != nil {
		portal.Logger.Error(ctx, "graceful shutdown failed", "error", err)
	}
}
