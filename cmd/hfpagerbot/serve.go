package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/R6DJO/HFpager-bot/internal/config"
	"github.com/R6DJO/HFpager-bot/internal/fsstore"
	"github.com/R6DJO/HFpager-bot/internal/gateway"
	"github.com/R6DJO/HFpager-bot/internal/logutil"
	"github.com/R6DJO/HFpager-bot/internal/metrics"
	"github.com/R6DJO/HFpager-bot/internal/router"
	"github.com/R6DJO/HFpager-bot/internal/statepaths"
	"github.com/R6DJO/HFpager-bot/internal/watcher"
)

const lockWait = 2 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway: watch the pager directory and the Telegram chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configErr != nil {
				return configErr
			}
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			cfg := config.FromViper(viper.GetViper())
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			lockPath, err := statepaths.GatewayLockPath(cfg.FileStateDir)
			if err != nil {
				return err
			}
			err = fsstore.WithLock(ctx, lockPath, lockWait, func() error {
				return runGateway(ctx, cfg, logger)
			})
			if errors.Is(err, fsstore.ErrLockTimeout) {
				return fmt.Errorf("another gateway is running (lock %s held): %w", lockPath, err)
			}
			return err
		},
	}

	cmd.Flags().String("watch-dir", "", "Override watcher.dir.")
	cmd.Flags().String("metrics-listen", "", "Override metrics.listen, e.g. 127.0.0.1:9108.")
	_ = viper.BindPFlag("watcher.dir", cmd.Flags().Lookup("watch-dir"))
	_ = viper.BindPFlag("metrics.listen", cmd.Flags().Lookup("metrics-listen"))

	return cmd
}

func runGateway(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink, err := sinkFromConfig(cfg)
	if err != nil {
		return err
	}
	enc, err := watcher.EncodingByName(cfg.Watcher.Encoding)
	if err != nil {
		return fmt.Errorf("watcher.encoding: %w", err)
	}
	tg := telegramFromConfig(cfg, logger)

	mirror := mirrorFromConfig(cfg, logger)
	if mirror != nil {
		go mirror.Run(ctx)
	}
	if cfg.MetricsListen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsListen, logger); err != nil {
				logger.Error("metrics_server_error", "addr", cfg.MetricsListen, "error", err.Error())
			}
		}()
	}

	rt, err := router.New(router.Options{
		OwnID:              cfg.Gateway.ID,
		DefaultDestination: cfg.Gateway.DefaultDestination,
		Speed:              cfg.Gateway.Speed,
		Suffix:             cfg.Gateway.Suffix,
		Offset:             cfg.Offset,
		ChatID:             cfg.Telegram.ChatID,
		BeaconChatID:       cfg.Telegram.BeaconChatID,
		Chat:               tg,
		Sink:               sink,
		Weather:            forecasterFromConfig(cfg),
		Store:              router.NewMemoryStore(),
		Events:             mirror,
		PingMinDelay:       cfg.Ping.MinDelay,
		PingMaxDelay:       cfg.Ping.MaxDelay,
		Logger:             logger.With("component", "router"),
	})
	if err != nil {
		return err
	}

	w, err := watcher.New(watcher.Options{
		Root:     cfg.Watcher.Dir,
		Interval: cfg.Watcher.Interval,
		Encoding: enc,
		Notify:   cfg.Watcher.FSNotify,
		Logger:   logger.With("component", "watcher"),
	})
	if err != nil {
		return err
	}

	gw, err := gateway.New(gateway.Options{
		OwnID:              cfg.Gateway.ID,
		Callsign:           cfg.Gateway.Callsign,
		DefaultDestination: cfg.Gateway.DefaultDestination,
		ChatID:             cfg.Telegram.ChatID,
		OwnerChatID:        cfg.Telegram.OwnerChatID,
		PollTimeout:        cfg.Telegram.PollTimeout,
		Router:             rt,
		Artifacts:          w,
		Updates:            tg,
		Chat:               tg,
		Logger:             logger.With("component", "gateway"),
	})
	if err != nil {
		return err
	}

	logger.Info("gateway_start",
		"id", cfg.Gateway.ID,
		"callsign", cfg.Gateway.Callsign,
		"sink", sink.Name(),
		"watch_dir", cfg.Watcher.Dir,
		"weather", cfg.Weather.APIKey != "",
		"events", mirror != nil,
	)
	err = gw.Run(ctx)
	cancel()
	if mirror != nil {
		select {
		case <-mirror.Done():
		case <-time.After(5 * time.Second):
		}
	}
	return err
}
