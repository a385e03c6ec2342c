// Package config assembles gateway settings from viper and validates them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/R6DJO/HFpager-bot/internal/radio"
	"github.com/R6DJO/HFpager-bot/internal/statepaths"
)

var ErrInvalid = errors.New("invalid configuration")

const (
	TargetIntent = "intent"
	TargetSpool  = "spool"
)

// DefaultWatchDir is where the HFpager app keeps its message folders on Android.
const DefaultWatchDir = "/sdcard/Documents/HFpager"

type Gateway struct {
	ID                 string
	DefaultDestination string
	Callsign           string
	Suffix             string
	SpeedCode          string
	// Speed is SpeedCode resolved through the codec table.
	Speed int
}

type Telegram struct {
	BotToken     string
	ChatID       int64
	BeaconChatID int64
	OwnerChatID  int64
	PollTimeout  time.Duration
	BaseURL      string
}

type Transmit struct {
	Target    string
	SpoolDir  string
	Timeout   time.Duration
	AMPath    string
	Component string
}

type Watcher struct {
	Dir      string
	Interval time.Duration
	FSNotify bool
	Encoding string
}

type Ping struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

type Weather struct {
	APIKey  string
	BaseURL string
	Lang    string
	Days    int
	Timeout time.Duration
}

type Events struct {
	AMQPURL  string
	Exchange string
}

type Config struct {
	Gateway       Gateway
	Offset        radio.Offset
	Telegram      Telegram
	Transmit      Transmit
	Watcher       Watcher
	Ping          Ping
	Weather       Weather
	MetricsListen string
	Events        Events
	FileStateDir  string
}

// SetDefaults registers the default value of every gateway key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("gateway.id", "")
	v.SetDefault("gateway.default_destination", "0")
	v.SetDefault("gateway.callsign", "")
	v.SetDefault("gateway.suffix", "")
	v.SetDefault("gateway.speed", "4")

	v.SetDefault("coords.offset_lat", 0.0)
	v.SetDefault("coords.offset_lon", 0.0)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", int64(0))
	v.SetDefault("telegram.beacon_chat_id", int64(0))
	v.SetDefault("telegram.owner_chat_id", int64(0))
	v.SetDefault("telegram.poll_timeout", 30*time.Second)
	v.SetDefault("telegram.base_url", "https://api.telegram.org")

	v.SetDefault("transmit.target", TargetIntent)
	v.SetDefault("transmit.spool_dir", "")
	v.SetDefault("transmit.timeout", 10*time.Second)
	v.SetDefault("transmit.am_path", "am")
	v.SetDefault("transmit.component", "")

	v.SetDefault("watcher.dir", DefaultWatchDir)
	v.SetDefault("watcher.interval", 2*time.Second)
	v.SetDefault("watcher.fsnotify", true)
	v.SetDefault("watcher.encoding", "windows-1251")

	v.SetDefault("ping.min_delay", 5*time.Second)
	v.SetDefault("ping.max_delay", 30*time.Second)

	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.base_url", "https://api.openweathermap.org")
	v.SetDefault("weather.lang", "ru")
	v.SetDefault("weather.days", 3)
	v.SetDefault("weather.timeout", 15*time.Second)

	v.SetDefault("metrics.listen", "")
	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "hfpager.events")

	v.SetDefault("file_state_dir", statepaths.DefaultFileStateDir)
}

func FromViper(v *viper.Viper) Config {
	if v == nil {
		v = viper.GetViper()
	}
	speedCode := strings.TrimSpace(v.GetString("gateway.speed"))
	return Config{
		Gateway: Gateway{
			ID:                 strings.TrimSpace(v.GetString("gateway.id")),
			DefaultDestination: strings.TrimSpace(v.GetString("gateway.default_destination")),
			Callsign:           strings.TrimSpace(v.GetString("gateway.callsign")),
			Suffix:             strings.TrimSpace(v.GetString("gateway.suffix")),
			SpeedCode:          speedCode,
			Speed:              radio.SpeedFromCode(speedCode),
		},
		Offset: radio.Offset{
			Lat: v.GetFloat64("coords.offset_lat"),
			Lon: v.GetFloat64("coords.offset_lon"),
		},
		Telegram: Telegram{
			BotToken:     strings.TrimSpace(v.GetString("telegram.bot_token")),
			ChatID:       v.GetInt64("telegram.chat_id"),
			BeaconChatID: v.GetInt64("telegram.beacon_chat_id"),
			OwnerChatID:  v.GetInt64("telegram.owner_chat_id"),
			PollTimeout:  v.GetDuration("telegram.poll_timeout"),
			BaseURL:      strings.TrimSpace(v.GetString("telegram.base_url")),
		},
		Transmit: Transmit{
			Target:    strings.ToLower(strings.TrimSpace(v.GetString("transmit.target"))),
			SpoolDir:  strings.TrimSpace(v.GetString("transmit.spool_dir")),
			Timeout:   v.GetDuration("transmit.timeout"),
			AMPath:    strings.TrimSpace(v.GetString("transmit.am_path")),
			Component: strings.TrimSpace(v.GetString("transmit.component")),
		},
		Watcher: Watcher{
			Dir:      statepaths.ExpandHome(v.GetString("watcher.dir")),
			Interval: v.GetDuration("watcher.interval"),
			FSNotify: v.GetBool("watcher.fsnotify"),
			Encoding: strings.TrimSpace(v.GetString("watcher.encoding")),
		},
		Ping: Ping{
			MinDelay: v.GetDuration("ping.min_delay"),
			MaxDelay: v.GetDuration("ping.max_delay"),
		},
		Weather: Weather{
			APIKey:  strings.TrimSpace(v.GetString("weather.api_key")),
			BaseURL: strings.TrimSpace(v.GetString("weather.base_url")),
			Lang:    strings.TrimSpace(v.GetString("weather.lang")),
			Days:    v.GetInt("weather.days"),
			Timeout: v.GetDuration("weather.timeout"),
		},
		MetricsListen: strings.TrimSpace(v.GetString("metrics.listen")),
		Events: Events{
			AMQPURL:  strings.TrimSpace(v.GetString("events.amqp_url")),
			Exchange: strings.TrimSpace(v.GetString("events.exchange")),
		},
		FileStateDir: statepaths.FileStateDir(v.GetString("file_state_dir")),
	}
}

func isRadioID(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Validate reports every problem at once, wrapped in ErrInvalid.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !isRadioID(c.Gateway.ID) {
		add("gateway.id must be 1-5 digits, got %q", c.Gateway.ID)
	}
	if c.Gateway.DefaultDestination != "" && !isRadioID(c.Gateway.DefaultDestination) {
		add("gateway.default_destination must be 1-5 digits, got %q", c.Gateway.DefaultDestination)
	}
	if c.Gateway.SpeedCode != "" && c.Gateway.Speed == 0 {
		add("gateway.speed %q is not a known speed code", c.Gateway.SpeedCode)
	}
	if c.Telegram.BotToken == "" {
		add("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == 0 {
		add("telegram.chat_id is required")
	}
	switch c.Transmit.Target {
	case TargetIntent:
	case TargetSpool:
		if c.Transmit.SpoolDir == "" {
			add("transmit.spool_dir is required when transmit.target is %q", TargetSpool)
		}
	default:
		add("transmit.target must be %q or %q, got %q", TargetIntent, TargetSpool, c.Transmit.Target)
	}
	if c.Watcher.Dir == "" {
		add("watcher.dir is required")
	}
	if c.Watcher.Interval <= 0 {
		add("watcher.interval must be positive")
	}
	if c.Ping.MinDelay < 0 || c.Ping.MaxDelay < c.Ping.MinDelay {
		add("ping delays must satisfy 0 <= min_delay <= max_delay")
	}
	if c.Weather.Days < 0 || c.Weather.Days > 7 {
		add("weather.days must be between 0 and 7")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}
