package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/R6DJO/HFpager-bot/internal/clifmt"
	"github.com/R6DJO/HFpager-bot/internal/config"
	"github.com/R6DJO/HFpager-bot/internal/radio"
	"github.com/R6DJO/HFpager-bot/internal/watcher"
)

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [flags] [path...]",
		Short: "Show how the gateway would treat HFpager artifact file names",
		Long: "Classify prints the disposition of each artifact path given as an argument.\n" +
			"With --dir it lists every file under that directory instead and also reports\n" +
			"the commands found in received messages.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configErr != nil {
				return configErr
			}
			cfg := config.FromViper(viper.GetViper())
			ownID := flagOrViperString(cmd, "own-id", "gateway.id")
			dir, _ := cmd.Flags().GetString("dir")
			dir = strings.TrimSpace(dir)

			if dir == "" && len(args) == 0 {
				return fmt.Errorf("nothing to classify: pass paths or --dir")
			}

			var read func(string) (string, error)
			paths := args
			if dir != "" {
				enc, err := watcher.EncodingByName(cfg.Watcher.Encoding)
				if err != nil {
					return fmt.Errorf("watcher.encoding: %w", err)
				}
				w, err := watcher.New(watcher.Options{Root: dir, Encoding: enc})
				if err != nil {
					return err
				}
				listed, err := w.Poll(cmd.Context())
				if err != nil {
					return err
				}
				paths = append(paths, listed...)
				read = func(rel string) (string, error) {
					art, err := w.Read(rel)
					return art.Text, err
				}
			}

			clifmt.PrintTable(cmd.OutOrStdout(), clifmt.TableOptions{
				Title:        "Artifacts",
				Rows:         classifyRows(paths, ownID, cfg.Offset, read),
				EmptyText:    "No artifacts found.",
				DetailHeader: "DISPOSITION",
			})
			return nil
		},
	}

	cmd.Flags().String("own-id", "", "Gateway radio id (defaults to gateway.id).")
	cmd.Flags().String("dir", "", "Classify every file under this HFpager directory.")

	return cmd
}

// classifyRows describes each path. read is optional; when set, received
// messages are opened and their commands listed.
func classifyRows(paths []string, ownID string, offset radio.Offset, read func(string) (string, error)) []clifmt.Row {
	rows := make([]clifmt.Row, 0, len(paths))
	for _, p := range paths {
		d := radio.Classify(p, ownID)
		row := clifmt.Row{Key: d.Path, Failed: d.Kind == radio.Unrecognized}
		if d.Kind == radio.Unrecognized {
			row.Detail = d.Kind.String()
			rows = append(rows, row)
			continue
		}

		parts := []string{d.Kind.String()}
		if key := d.CorrelationKey(); key != "" {
			parts = append(parts, "key="+key)
		}
		if d.SenderID != "" {
			parts = append(parts, "from="+d.SenderID)
		}
		parts = append(parts, "to="+d.RecipientID)
		if d.Retry > 0 {
			parts = append(parts, fmt.Sprintf("retry=%d", d.Retry))
		}
		if read != nil && d.Kind.IsReceived() {
			text, err := read(p)
			if err != nil {
				parts = append(parts, "read_error="+err.Error())
				row.Failed = true
			} else {
				payload := radio.ParsePayload(text, radio.ParseOptions{OwnID: ownID, Offset: offset})
				for _, c := range payload.Commands {
					cmd := "cmd=" + c.Kind.String()
					if !c.Addressed && c.Kind != radio.CommandMapLink {
						cmd += "(not addressed)"
					}
					parts = append(parts, cmd)
				}
			}
		}
		row.Detail = strings.Join(parts, " ")
		rows = append(rows, row)
	}
	return rows
}
