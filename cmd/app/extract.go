package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/services/extractor"
)

var extractCmd = &cobra.Command{
	Use:   "extract [TEXT]",
	Short: "Run the signal extractor on a message (stdin when TEXT is omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if len(args) == 1 {
			text = args[0]
		} else {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			text = string(b)
		}
		text = strings.TrimSpace(text)

		res := models.ExtractResult{Pattern: extractor.PatternName(text)}
		if m, ok := extractor.Extract(text); ok {
			res.Matched = true
			res.Result, res.Attempt, res.Asset = m.Result, m.Attempt, m.Asset
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		if !res.Matched {
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no signal"))
			return nil
		}
		style := profitStyle
		if res.Result == models.ResultLoss {
			style = lossStyle
		}
		fmt.Fprintln(cmd.OutOrStdout(), kv(
			[2]string{"pattern", res.Pattern},
			[2]string{"result", style.Render(string(res.Result))},
			[2]string{"attempt", fmt.Sprint(res.Attempt)},
			[2]string{"asset", res.Asset},
		))
		return nil
	},
}
