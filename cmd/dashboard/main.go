package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tmorst/signalboard/internal/client"
	"github.com/tmorst/signalboard/internal/config"
	"github.com/tmorst/signalboard/internal/httpapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := newLogger(cfg.Dev)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fc := client.New(ctx, cfg.FeedURL, logger, client.Options{ReconnectDelay: cfg.ReconnectDelay})

	// Build the router *with* the feed client injected
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.DashboardRoutes(fc, cfg.LaneIDs, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("dashboard listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("feed", cfg.FeedURL),
			zap.Ints("lanes", cfg.LaneIDs))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fc.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("dashboard exited", zap.Error(err))
	}
}

func newLogger(dev bool) *zap.Logger {
	if dev {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}
