/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fix-md-subscriber/config"
	"fix-md-subscriber/database"
	"fix-md-subscriber/fixclient"
	"fix-md-subscriber/httpapi"
	"fix-md-subscriber/logger"
	"fix-md-subscriber/metrics"
	"fix-md-subscriber/model"
	"fix-md-subscriber/notifier"
	"fix-md-subscriber/utils"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	headless := flag.Bool("headless", false, "run without the interactive prompt")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(utils.FullVersion())
		return
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, *headless, log); err != nil {
		log.Error("fatal", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, headless bool, log *zap.Logger) error {
	log.Info("starting subscriber",
		zap.String("version", utils.Version),
		zap.String("commit", utils.Commit),
		zap.Strings("symbols", cfg.Subscription.Symbols))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received shutdown signal", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	collector := metrics.New()
	events := notifier.New(log)

	// Persistence consumes its own stream, off the session callback goroutine.
	recorderDone := make(chan struct{})
	if cfg.Database.Path != "" {
		db, err := database.NewMarketDataDb(cfg.Database.Path, log.Named("database"))
		if err != nil {
			return err
		}
		defer db.Close()

		stream := events.Stream(context.Background())
		go func() {
			defer close(recorderDone)
			fixclient.RecordEvents(context.Background(), stream, db, log.Named("recorder"))
		}()
		log.Info("persisting market data", zap.String("path", cfg.Database.Path))
	} else {
		close(recorderDone)
	}

	snapshots := fixclient.NewSnapshotStore()
	events.AddListener(snapshots.OnEvent)
	console := fixclient.NewConsole(os.Stdout)
	events.AddListener(console.OnEvent)

	transport := fixclient.NewSessionTransport()
	sub := fixclient.NewSubscriber(fixclient.SubscriberConfig{
		Symbols:            cfg.Subscription.Symbols,
		RequestID:          cfg.Subscription.RequestID,
		RequestIDPrefix:    cfg.Subscription.RequestIDPrefix,
		MarketDepth:        cfg.Subscription.MarketDepth,
		UnsubscribeTimeout: cfg.Subscription.UnsubscribeTimeout,
	}, transport, events, log.Named("subscriber"), collector)

	app := fixclient.NewFixApp(
		fixclient.NewConfig(cfg.Session.Username, cfg.Session.Password),
		sub, snapshots, transport, log.Named("app"))

	initiator, err := newInitiator(cfg.Session.SettingsPath, app, log)
	if err != nil {
		return err
	}

	var api *httpapi.Server
	if cfg.HTTP.Addr != "" {
		api = httpapi.NewServer(log, sub, snapshots, collector)
		go func() {
			if err := api.Start(cfg.HTTP.Addr); err != nil {
				log.Error("http server error", zap.Error(err))
			}
		}()
	}

	if err := initiator.Start(); err != nil {
		return fmt.Errorf("failed to start initiator: %w", err)
	}
	log.Info("initiator started", zap.String("settings", cfg.Session.SettingsPath))

	if cfg.Subscription.FirstDataTimeout > 0 && len(cfg.Subscription.Symbols) > 0 {
		waitCtx, waitCancel := context.WithTimeout(ctx, cfg.Subscription.FirstDataTimeout)
		if sub.WaitForFirstDataContext(waitCtx) {
			log.Info("first market data received")
		} else {
			log.Warn("no market data yet",
				zap.Duration("timeout", cfg.Subscription.FirstDataTimeout),
				zap.Stringer("state", sub.State()))
		}
		waitCancel()
	}

	if headless {
		<-ctx.Done()
	} else {
		replDone := make(chan struct{})
		go func() {
			defer close(replDone)
			fixclient.Repl(app, console)
		}()
		select {
		case <-replDone:
		case <-ctx.Done():
		}
	}

	shutdown(sub, initiator, api, log)
	events.Close()
	<-recorderDone
	return nil
}

func newInitiator(settingsPath string, app *fixclient.FixApp, log *zap.Logger) (*quickfix.Initiator, error) {
	f, err := os.Open(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session settings: %w", err)
	}
	defer f.Close()

	settings, err := quickfix.ParseSettings(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session settings: %w", err)
	}

	initiator, err := quickfix.NewInitiator(app, quickfix.NewMemoryStoreFactory(), settings, logger.NewQuickfixLogFactory(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create initiator: %w", err)
	}
	return initiator, nil
}

// shutdown unsubscribes an Active subscription and gives the counterparty a
// moment to answer before the session is stopped.
func shutdown(sub *fixclient.Subscriber, initiator *quickfix.Initiator, api *httpapi.Server, log *zap.Logger) {
	if sub.State() == model.StateActive {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn("unsubscribe on shutdown failed", zap.Error(err))
		} else {
			deadline := time.Now().Add(time.Second)
			for sub.State() == model.StatePendingUnsubscribe && time.Now().Before(deadline) {
				time.Sleep(50 * time.Millisecond)
			}
		}
	}
	sub.Close()

	if api != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := api.Shutdown(ctx); err != nil {
			log.Warn("http shutdown failed", zap.Error(err))
		}
		cancel()
	}

	initiator.Stop()
	log.Info("subscriber stopped")
}
