package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/infrastructure/batchfile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type buildOptions struct {
	lines        string
	output       string
	flavor       string
	chargeBearer string
	batchBooking bool
	splitCount   int
}

func newBuildCmd(app *cli) *cobra.Command {
	opts := buildOptions{}
	cmd := &cobra.Command{
		Use:   "build <batch.yaml>",
		Short: "Generate pain.008 files from a batch",
		Long: `Build validates the batch, converts its mandates and lines and renders one
direct debit file per order. Batches above --split lines are cut into several
orders with the reference suffixes -2, -3 and so on.

The files are written to the --output directory under their generated name,
or to stdout when --output is "-".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runBuild(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.lines, "lines", "", "XLSX workbook with the payment lines, replaces the lines of the batch")
	cmd.Flags().StringVarP(&opts.output, "output", "o", ".", `Output directory, "-" for stdout`)
	cmd.Flags().StringVar(&opts.flavor, "flavor", "", "pain.008 version, overrides the batch")
	cmd.Flags().StringVar(&opts.chargeBearer, "charge-bearer", string(directdebit.ChargeBearerServiceLevel), "Charge bearer (SLEV, SHAR, CRED, DEBT)")
	cmd.Flags().BoolVar(&opts.batchBooking, "batch-booking", false, "Request one booking per payment information block")
	cmd.Flags().IntVar(&opts.splitCount, "split", directdebit.DefaultSplitCount, "Maximum lines per file, 0 disables splitting")
	return cmd
}

func (c *cli) runBuild(cmd *cobra.Command, path string, opts buildOptions) error {
	today, err := c.asOf()
	if err != nil {
		return err
	}
	bo := directdebit.BuildOptions{
		ChargeBearer: directdebit.ChargeBearer(opts.chargeBearer),
		BatchBooking: opts.batchBooking,
		Today:        today,
	}
	if !bo.ChargeBearer.IsValid() {
		return fmt.Errorf("unknown charge bearer %q", opts.chargeBearer)
	}
	if opts.flavor != "" {
		if bo.Flavor, err = directdebit.ParseFlavor(opts.flavor); err != nil {
			return err
		}
	}

	f, err := c.loadBatch(path, opts.lines)
	if err != nil {
		return err
	}
	files := []*batchfile.File{f}
	if opts.splitCount > 0 {
		chunks, err := f.Split(opts.splitCount)
		if err != nil {
			return err
		}
		files = append(files, chunks...)
	}

	builder := directdebit.NewSddFileBuilder()
	for _, part := range files {
		batch, err := part.Batch(today)
		if err != nil {
			return err
		}
		result, err := builder.Build(batch, bo)
		if err != nil {
			return fmt.Errorf("order %s: %w", part.Order.Reference, err)
		}
		if err := c.writeResult(cmd, result, opts.output); err != nil {
			return err
		}
	}
	return nil
}

// loadBatch reads the batch and swaps in the workbook lines when given
func (c *cli) loadBatch(path, linesPath string) (*batchfile.File, error) {
	f, err := batchfile.Load(path)
	if err != nil {
		return nil, err
	}
	if linesPath == "" {
		return f, nil
	}
	lines, err := batchfile.LoadLines(linesPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", linesPath, err)
	}
	f.Lines = lines
	if err := batchfile.Validate(f); err != nil {
		return nil, err
	}
	c.log.Debug("Lines loaded from workbook", zap.String("path", linesPath), zap.Int("lines", len(lines)))
	return f, nil
}

func (c *cli) writeResult(cmd *cobra.Command, result *directdebit.BuildResult, output string) error {
	file := result.File
	for _, ch := range result.DateChanges {
		c.log.Info("Collection date moved",
			zap.String("line_id", ch.LineID.String()),
			zap.Time("to", ch.To))
	}
	if output == "-" {
		_, err := cmd.OutOrStdout().Write(file.Content)
		return err
	}

	if err := os.MkdirAll(output, 0o755); err != nil {
		return err
	}
	target := filepath.Join(output, file.Filename)
	if err := os.WriteFile(target, file.Content, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d transactions\t%s %s\n",
		target, file.NbTransactions, file.TotalAmount.StringFixed(2), file.Flavor)
	return nil
}
