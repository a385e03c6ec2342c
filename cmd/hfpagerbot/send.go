package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/R6DJO/HFpager-bot/internal/config"
	"github.com/R6DJO/HFpager-bot/internal/logutil"
	"github.com/R6DJO/HFpager-bot/internal/radio"
	"github.com/R6DJO/HFpager-bot/internal/transmit"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [flags] <text...>",
		Short: "Hand one message to HFpager through the configured transmit sink",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if configErr != nil {
				return configErr
			}
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			cfg := config.FromViper(viper.GetViper())

			to := flagOrViperString(cmd, "to", "gateway.default_destination")
			speed := cfg.Gateway.Speed
			if code, _ := cmd.Flags().GetString("speed"); strings.TrimSpace(code) != "" {
				speed = radio.SpeedFromCode(code)
				if speed == 0 {
					return fmt.Errorf("unknown speed code %q", code)
				}
			}
			resend, _ := cmd.Flags().GetBool("resend")

			req := transmit.NewRequest(to, speed, resend, strings.Join(args, " "))
			if err := req.Validate(); err != nil {
				return err
			}
			sink, err := sinkFromConfig(cfg)
			if err != nil {
				return err
			}
			var chunks []string
			if split, _ := cmd.Flags().GetBool("split"); split {
				chunks = transmit.ChunkText(req.Text, transmit.MaxChunkChars)
			} else {
				chunks = []string{req.Text}
			}
			for i, chunk := range chunks {
				part := req
				part.Text = chunk
				if err := sink.Transmit(cmd.Context(), part); err != nil {
					return fmt.Errorf("transmit part %d/%d: %w", i+1, len(chunks), err)
				}
			}
			logger.Info("send_ok", "sink", sink.Name(), "to", req.To, "speed", req.Speed, "parts", len(chunks))
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "queued %d message(s) to %s via %s\n", len(chunks), req.To, sink.Name())
			return nil
		},
	}

	cmd.Flags().String("to", "", "Destination radio id (defaults to gateway.default_destination).")
	cmd.Flags().String("speed", "", "Speed code (defaults to gateway.speed).")
	cmd.Flags().Bool("resend", false, "Ask HFpager to repeat until acknowledged.")
	cmd.Flags().Bool("split", false, "Split long text into several radio messages.")

	return cmd
}
