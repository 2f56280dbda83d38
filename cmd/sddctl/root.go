package main

import (
	"io"
	"time"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/infrastructure/batchfile"
	"github.com/erp/directdebit/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli carries the state shared by the subcommands
type cli struct {
	logLevel string
	today    string
	clock    func() time.Time
	log      *zap.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	app := &cli{clock: time.Now, log: zap.NewNop()}

	root := &cobra.Command{
		Use:   "sddctl",
		Short: "SEPA direct debit file tool",
		Long: `sddctl turns a YAML batch (creditor, payment order, mandates and lines)
into a pain.008 direct debit file. Lines can be kept in an XLSX workbook.

Examples:
  sddctl build batch.yaml -o out/
  sddctl build batch.yaml --lines lines.xlsx --flavor pain.008.001.03
  sddctl checksum 1234567
  sddctl mandate validate batch.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.log = logger.New(logger.Config{Level: app.logLevel, Format: "console", Output: "stderr"})
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&app.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&app.today, "today", "", "Run as of this date (YYYY-MM-DD)")

	root.AddCommand(
		newBuildCmd(app),
		newChecksumCmd(),
		newDueDateCmd(app),
		newSplitCmd(),
		newMandateCmd(app),
		newLinesCmd(),
	)
	return root
}

// asOf returns the --today date, or the current date
func (c *cli) asOf() (time.Time, error) {
	if c.today == "" {
		return directdebit.DateOf(c.clock()), nil
	}
	return parseDate(c.today)
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(batchfile.DateLayout, value, time.UTC)
}
