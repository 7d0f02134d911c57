package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hako/durafmt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"justapengu.in/livetiming"
	"justapengu.in/livetiming/internal/telemetry"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "c", "./config.yml", "config path")
	flag.Parse()
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	started := time.Now()

	config, err := livetiming.ReadConfig(configPath)

	if os.IsNotExist(errors.Cause(err)) {
		logger.Warnf("No config found at %s, using defaults", configPath)
	} else if err != nil {
		logger.WithError(err).Fatalf("Could not read config at %s", configPath)
	}

	level, err := config.Level()

	if err != nil {
		logger.WithError(err).Warn("Falling back to info logging")
	}

	logger.SetLevel(level)

	hub := livetiming.NewHub(logger)
	liveTiming := livetiming.NewLiveTiming(config.LiveTiming, hub, logger)

	receiver := telemetry.NewReceiver(config.Telemetry, livetiming.NewLiveTimingAdapter(liveTiming), logger)
	debugger := livetiming.NewDebugger(liveTiming, receiver.Statistics(), config, logger)
	httpServer := livetiming.NewHTTP(config.HTTP, liveTiming, hub, debugger, logger)

	ctx, cfn := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cfn()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return receiver.Listen(ctx)
	})

	g.Go(func() error {
		return httpServer.Listen(ctx)
	})

	err = g.Wait()

	stats := receiver.Statistics().Snapshot()

	logger.Infof("Live timing stopped after %s, %d packets received", durafmt.Parse(time.Since(started).Round(time.Second)), stats.Packets)

	if err != nil {
		logger.WithError(err).Fatal("Live timing exited with an error")
	}
}
