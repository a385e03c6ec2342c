package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/R6DJO/HFpager-bot/internal/clifmt"
	"github.com/R6DJO/HFpager-bot/internal/config"
	"github.com/R6DJO/HFpager-bot/internal/fsstore"
	"github.com/R6DJO/HFpager-bot/internal/statepaths"
)

type initConfigFile struct {
	Gateway struct {
		ID                 string `yaml:"id"`
		DefaultDestination string `yaml:"default_destination"`
		Callsign           string `yaml:"callsign,omitempty"`
		Speed              string `yaml:"speed"`
	} `yaml:"gateway"`
	Telegram struct {
		BotToken    string `yaml:"bot_token"`
		ChatID      int64  `yaml:"chat_id"`
		PollTimeout string `yaml:"poll_timeout"`
	} `yaml:"telegram"`
	Transmit struct {
		Target   string `yaml:"target"`
		SpoolDir string `yaml:"spool_dir,omitempty"`
	} `yaml:"transmit"`
	Watcher struct {
		Dir      string `yaml:"dir"`
		Encoding string `yaml:"encoding"`
		FSNotify bool   `yaml:"fsnotify"`
	} `yaml:"watcher"`
	Weather struct {
		APIKey string `yaml:"api_key"`
		Lang   string `yaml:"lang"`
		Days   int    `yaml:"days"`
	} `yaml:"weather"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

type initParams struct {
	ID          string
	ChatID      int64
	BotToken    string
	Callsign    string
	WatchDir    string
	Target      string
	SpoolDir    string
	WeatherKey  string
	DefaultDest string
}

func renderInitConfig(p initParams) ([]byte, error) {
	var f initConfigFile
	f.Gateway.ID = p.ID
	f.Gateway.DefaultDestination = p.DefaultDest
	if f.Gateway.DefaultDestination == "" {
		f.Gateway.DefaultDestination = "0"
	}
	f.Gateway.Callsign = p.Callsign
	f.Gateway.Speed = "4"
	f.Telegram.BotToken = p.BotToken
	f.Telegram.ChatID = p.ChatID
	f.Telegram.PollTimeout = (30 * time.Second).String()
	f.Transmit.Target = p.Target
	if f.Transmit.Target == "" {
		f.Transmit.Target = config.TargetIntent
	}
	f.Transmit.SpoolDir = p.SpoolDir
	f.Watcher.Dir = p.WatchDir
	if f.Watcher.Dir == "" {
		f.Watcher.Dir = config.DefaultWatchDir
	}
	f.Watcher.Encoding = "windows-1251"
	f.Watcher.FSNotify = true
	f.Weather.APIKey = p.WeatherKey
	f.Weather.Lang = "ru"
	f.Weather.Days = 3
	f.Logging.Level = "info"
	f.Logging.Format = "text"

	body, err := yaml.Marshal(&f)
	if err != nil {
		return nil, err
	}
	header := "# hfpagerbot configuration. Every key can be overridden with HFPAGER_<SECTION>_<KEY>.\n"
	return append([]byte(header), body...), nil
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter config.yaml into the state directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := statepaths.DefaultFileStateDir
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = args[0]
			}
			dir = statepaths.ExpandHome(dir)
			if strings.TrimSpace(dir) == "" {
				return fmt.Errorf("invalid dir")
			}
			dir = filepath.Clean(dir)

			cfgPath := filepath.Join(dir, "config.yaml")
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists: %s", cfgPath)
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}

			var p initParams
			p.ID, _ = cmd.Flags().GetString("id")
			p.ChatID, _ = cmd.Flags().GetInt64("chat-id")
			p.BotToken, _ = cmd.Flags().GetString("bot-token")
			p.Callsign, _ = cmd.Flags().GetString("callsign")
			p.WatchDir, _ = cmd.Flags().GetString("watch-dir")
			p.Target, _ = cmd.Flags().GetString("target")
			p.SpoolDir, _ = cmd.Flags().GetString("spool-dir")
			p.WeatherKey, _ = cmd.Flags().GetString("weather-key")
			p.DefaultDest, _ = cmd.Flags().GetString("default-destination")

			if strings.TrimSpace(p.BotToken) == "" {
				if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
					token, err := promptSecret(cmd.ErrOrStderr(), fd, "Telegram bot token (empty to skip): ")
					if err != nil {
						return err
					}
					p.BotToken = token
				}
			}

			body, err := renderInitConfig(p)
			if err != nil {
				return err
			}
			if err := fsstore.WriteFileAtomic(cfgPath, body, fsstore.FileOptions{DirPerm: 0o700, FilePerm: 0o600}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, clifmt.Success("wrote "+cfgPath))
			if p.ID == "" || p.ChatID == 0 || p.BotToken == "" {
				_, _ = fmt.Fprintln(out, clifmt.Warn("edit gateway.id, telegram.chat_id and telegram.bot_token before running serve"))
			}
			return nil
		},
	}

	cmd.Flags().String("id", "", "Radio id of this station (1-5 digits).")
	cmd.Flags().Int64("chat-id", 0, "Telegram chat the gateway serves.")
	cmd.Flags().String("bot-token", "", "Telegram bot token (prompted for when stdin is a terminal).")
	cmd.Flags().String("callsign", "", "Station callsign shown in /help.")
	cmd.Flags().String("watch-dir", "", "HFpager message directory.")
	cmd.Flags().String("target", config.TargetIntent, "Transmit sink: intent|spool.")
	cmd.Flags().String("spool-dir", "", "Directory for the spool sink.")
	cmd.Flags().String("weather-key", "", "OpenWeatherMap API key.")
	cmd.Flags().String("default-destination", "0", "Radio id used when a chat message names none.")

	return cmd
}

func promptSecret(w io.Writer, fd int, prompt string) (string, error) {
	_, _ = fmt.Fprint(w, prompt)
	raw, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
