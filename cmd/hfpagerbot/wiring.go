package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/R6DJO/HFpager-bot/internal/config"
	"github.com/R6DJO/HFpager-bot/internal/events"
	"github.com/R6DJO/HFpager-bot/internal/logutil"
	"github.com/R6DJO/HFpager-bot/internal/telegram"
	"github.com/R6DJO/HFpager-bot/internal/transmit"
	"github.com/R6DJO/HFpager-bot/internal/watcher"
	"github.com/R6DJO/HFpager-bot/internal/weather"
)

func sinkFromConfig(cfg config.Config) (transmit.Sink, error) {
	switch cfg.Transmit.Target {
	case config.TargetSpool:
		enc, err := watcher.EncodingByName(cfg.Watcher.Encoding)
		if err != nil {
			return nil, fmt.Errorf("watcher.encoding: %w", err)
		}
		return transmit.NewSpoolSink(transmit.SpoolSinkOptions{
			Dir:      cfg.Transmit.SpoolDir,
			Encoding: enc,
		})
	case config.TargetIntent:
		return transmit.NewIntentSink(transmit.IntentSinkOptions{
			AMPath:    cfg.Transmit.AMPath,
			Component: cfg.Transmit.Component,
			Timeout:   cfg.Transmit.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transmit.target %q", cfg.Transmit.Target)
	}
}

// forecasterFromConfig returns nil when no API key is configured; weather
// requests are then answered with the failure text.
func forecasterFromConfig(cfg config.Config) weather.Forecaster {
	if cfg.Weather.APIKey == "" {
		return nil
	}
	return weather.NewOpenWeatherMap(weather.Options{
		APIKey:  cfg.Weather.APIKey,
		BaseURL: cfg.Weather.BaseURL,
		Lang:    cfg.Weather.Lang,
		Days:    cfg.Weather.Days,
		Timeout: cfg.Weather.Timeout,
	})
}

func telegramFromConfig(cfg config.Config, logger *slog.Logger) *telegram.Client {
	timeout := cfg.Telegram.PollTimeout + 15*time.Second
	logger.Info("telegram_client", "base_url", cfg.Telegram.BaseURL, "token", logutil.RedactToken(cfg.Telegram.BotToken))
	return telegram.NewClient(&http.Client{Timeout: timeout}, cfg.Telegram.BaseURL, cfg.Telegram.BotToken)
}

// mirrorFromConfig connects the event mirror, or returns nil when it is off.
// A broker that cannot be reached at startup is logged and skipped.
func mirrorFromConfig(cfg config.Config, logger *slog.Logger) *events.Mirror {
	if cfg.Events.AMQPURL == "" {
		return nil
	}
	pub, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
	if err != nil {
		logger.Warn("event_mirror_unavailable", "error", err.Error())
		return nil
	}
	return events.NewMirror(pub, 0, logger)
}
