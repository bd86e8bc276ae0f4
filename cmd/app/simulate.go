package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/usecase"
	"SignalPilot/pkg/util"
)

var (
	simFrom  string
	simTo    string
	simTable map[string]string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a day or a date range with the adaptive strategy",
	Example: `  signalpilot simulate --date 2025-09-01
  signalpilot simulate --date 2025-09-01 --strategy 17=martingale,18=infinity
  signalpilot simulate --from 2025-09-01 --to 2025-09-07`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cleanup, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := cmd.Context()
		now := time.Now()
		if simFrom != "" || simTo != "" {
			if len(simTable) > 0 {
				return fmt.Errorf("--strategy only applies to a single day")
			}
			from, err := util.ParseDay(simFrom, eng.Location, now)
			if err != nil {
				return err
			}
			to, err := util.ParseDay(simTo, eng.Location, now)
			if err != nil {
				return err
			}
			reports, sum, err := eng.Sims.SimulateRange(ctx, from, to)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), struct {
					Summary models.RangeSummary        `json:"summary"`
					Days    []*models.SimulationReport `json:"days"`
				}{sum, reports})
			}
			for _, r := range reports {
				if r.Summary.HoursOperated > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), renderReport(r))
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRange(sum))
			return nil
		}

		day, err := util.ParseDay(dayFlag, eng.Location, now)
		if err != nil {
			return err
		}
		table, err := usecase.ParseStrategyTable(simTable)
		if err != nil {
			return err
		}
		rep, err := eng.Sims.SimulateDay(ctx, day, table)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rep)
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderReport(rep))
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&dayFlag, "date", "", "day to simulate, YYYY-MM-DD (default today)")
	simulateCmd.Flags().StringVar(&simFrom, "from", "", "first day of a range")
	simulateCmd.Flags().StringVar(&simTo, "to", "", "last day of a range")
	simulateCmd.Flags().StringToStringVar(&simTable, "strategy", nil, "fixed strategy per hour, e.g. 17=martingale")
}
