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

	"github.com/tmorst/signalboard/internal/config"
	"github.com/tmorst/signalboard/internal/controller"
	"github.com/tmorst/signalboard/internal/httpapi"
	"github.com/tmorst/signalboard/internal/hub"
	"github.com/tmorst/signalboard/internal/media"
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

	ctrl := controller.New(ctx, controller.Config{
		LaneIDs:        cfg.LaneIDs,
		GreenDuration:  cfg.Sim.GreenDuration,
		YellowDuration: cfg.Sim.YellowDuration,
	}, logger)
	h := hub.NewHub(ctx, ctrl, cfg.Sim.PushInterval, logger)

	store, err := media.NewStore(cfg.Sim.UploadDir, cfg.LaneIDs, logger)
	if err != nil {
		logger.Fatal("media store", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    cfg.Sim.Addr,
		Handler: httpapi.SimulatorRoutes(ctrl, h, store, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("simulator listening",
			zap.String("addr", cfg.Sim.Addr),
			zap.Ints("lanes", cfg.LaneIDs),
			zap.Duration("pushInterval", cfg.Sim.PushInterval))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("simulator exited", zap.Error(err))
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
