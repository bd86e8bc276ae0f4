package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"SignalPilot/internal/di"
	"SignalPilot/internal/domain/models"
	"SignalPilot/pkg/util"
)

var (
	dayFlag  string
	fromHour int
	toHour   int
)

// openEngine builds the offline dependencies shared by the batch commands.
func openEngine(cmd *cobra.Command) (*di.Engine, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	eng, cleanup, err := di.InitializeEngine(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("engine initialization failed: %w", err)
	}
	return eng, cleanup, nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the market conditions of a day",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cleanup, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		day, err := util.ParseDay(dayFlag, eng.Location, time.Now())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		rep, err := eng.Analysis.Conditions(ctx, day, fromHour, toHour)
		if err != nil {
			return err
		}
		hours, err := eng.Analysis.Hours(ctx, day)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), struct {
				Conditions *models.ConditionsReport `json:"conditions"`
				Hours      []models.HourStats       `json:"hours"`
			}{rep, hours})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderConditions(rep))
		fmt.Fprintln(cmd.OutOrStdout(), renderHours(hours))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&dayFlag, "date", "", "day to analyze, YYYY-MM-DD (default today)")
	analyzeCmd.Flags().IntVar(&fromHour, "from-hour", 0, "first hour of the analysis window")
	analyzeCmd.Flags().IntVar(&toHour, "to-hour", 23, "last hour of the analysis window")
}
