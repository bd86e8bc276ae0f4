package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"SignalPilot/pkg/util"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the stored signals of a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cleanup, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		now := time.Now()
		from, err := util.ParseDay(simFrom, eng.Location, now)
		if err != nil {
			return err
		}
		to := from
		if simTo != "" {
			if to, err = util.ParseDay(simTo, eng.Location, now); err != nil {
				return err
			}
		}
		st, err := eng.Analysis.Stats(cmd.Context(), from, to.AddDate(0, 0, 1))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), st)
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderStats(st))
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&simFrom, "from", "", "first day, YYYY-MM-DD (default today)")
	statsCmd.Flags().StringVar(&simTo, "to", "", "last day (default --from)")
}
