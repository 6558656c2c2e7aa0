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

	"bitwise74/marketplace-auth/app"
	"bitwise74/marketplace-auth/config"
	"bitwise74/marketplace-auth/internal"
	"bitwise74/marketplace-auth/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Setup()
	if err != nil {
		panic(err)
	}

	if err := app.MakeLogger(cfg.App.LogLevel, cfg.App.Production()); err != nil {
		panic(err)
	}
	defer zap.L().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := internal.NewDeps(ctx, cfg, nil)
	if err != nil {
		zap.L().Fatal("Failed to initialize dependencies", zap.Error(err))
	}

	if cfg.Session.RetentionSchedule != "" {
		c, err := service.SessionCleanup(cfg.Session.RetentionSchedule, cfg.Session.Retention, d.Sessions)
		if err != nil {
			zap.L().Fatal("Invalid session.retention_schedule", zap.Error(err))
		}
		defer c.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Host.Port),
		Handler:           app.NewRouter(ctx, cfg, d),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("Server starting", zap.String("addr", srv.Addr), zap.String("mode", cfg.App.Mode))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		zap.L().Info("Server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Fatal("Server stopped", zap.Error(err))
	}
}
