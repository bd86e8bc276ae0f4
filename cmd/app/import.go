package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"SignalPilot/internal/domain/models"
	"SignalPilot/internal/repository"
	applogger "SignalPilot/pkg/logger"
)

var importCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Load signals from CSV files into the configured backend",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cleanup, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		total := 0
		for _, path := range args {
			n, err := importFile(cmd, eng.Ingestor.ProcessBatch, eng.Location, path, eng.Logger)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", profitStyle.Render(fmt.Sprintf("%6d", n)), path)
			total += n
		}
		fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render(fmt.Sprintf("%d signals imported into %s", total, eng.Ingestor.Backend())))
		return nil
	},
}

type batchFunc func(context.Context, []models.Signal) (int, error)

func importFile(cmd *cobra.Command, save batchFunc, loc *time.Location, path string, l *applogger.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	signals, err := repository.ReadCSV(f, loc)
	var skipped *models.RecordErrors
	if errors.As(err, &skipped) {
		l.Warn("malformed rows skipped", applogger.String("file", path), applogger.Int("count", len(skipped.Records)))
		fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render(fmt.Sprintf("%s: %d malformed rows skipped", path, len(skipped.Records))))
	} else if err != nil {
		return 0, err
	}
	return save(cmd.Context(), signals)
}
