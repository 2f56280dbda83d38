package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/erp/directdebit/internal/domain/directdebit"
	"github.com/erp/directdebit/internal/infrastructure/batchfile"
	"github.com/spf13/cobra"
)

func newChecksumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checksum <number>...",
		Short: "Compute the 16 digit acceptgiro payment reference",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, number := range args {
				ref, err := directdebit.Checksum(number)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", number, ref)
			}
			return nil
		},
	}
}

func newDueDateCmd(app *cli) *cobra.Command {
	var sequence string
	cmd := &cobra.Command{
		Use:   "due-date <invoice-date>",
		Short: "Earliest collection date for an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			today, err := app.asOf()
			if err != nil {
				return err
			}
			invoice, err := parseDate(args[0])
			if err != nil {
				return err
			}
			seq := directdebit.SequenceType(sequence)
			if !seq.IsValid() {
				return fmt.Errorf("unknown sequence type %q", sequence)
			}
			due := directdebit.DueDate(today, invoice, seq)
			fmt.Fprintln(cmd.OutOrStdout(), due.Format(batchfile.DateLayout))
			return nil
		},
	}
	cmd.Flags().StringVar(&sequence, "sequence", string(directdebit.SequenceFirst), "Mandate sequence type (first, recurring, final)")
	return cmd
}

func newSplitCmd() *cobra.Command {
	var (
		size   int
		output string
	)
	cmd := &cobra.Command{
		Use:   "split <batch.yaml>",
		Short: "Cut a batch into files of at most --size lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := batchfile.Load(args[0])
			if err != nil {
				return err
			}
			chunks, err := f.Split(size)
			if err != nil {
				return err
			}
			if len(chunks) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s has %d lines, nothing to split\n", args[0], len(f.Lines))
				return nil
			}
			if err := os.MkdirAll(output, 0o755); err != nil {
				return err
			}
			stem := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			for i, part := range append([]*batchfile.File{f}, chunks...) {
				data, err := batchfile.Marshal(part)
				if err != nil {
					return err
				}
				target := filepath.Join(output, fmt.Sprintf("%s_%d.yaml", stem, i+1))
				if err := os.WriteFile(target, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d lines\n", target, part.Order.Reference, len(part.Lines))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", directdebit.DefaultSplitCount, "Maximum lines per file")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "Output directory")
	return cmd
}

func newMandateCmd(app *cli) *cobra.Command {
	mandate := &cobra.Command{
		Use:   "mandate",
		Short: "Mandate checks",
	}
	mandate.AddCommand(&cobra.Command{
		Use:   "validate <batch.yaml>",
		Short: "Check every mandate of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			today, err := app.asOf()
			if err != nil {
				return err
			}
			f, err := batchfile.Load(args[0])
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range f.CheckMandates(f.CompanyID(), today) {
				if r.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL\t%s\t%v\n", r.Reference, r.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK\t%s\t%s %s\n", r.Reference, r.Mandate.State, r.Mandate.SequenceType)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d mandates are invalid", failed, len(f.Mandates))
			}
			return nil
		},
	})
	return mandate
}

func newLinesCmd() *cobra.Command {
	lines := &cobra.Command{
		Use:   "lines",
		Short: "XLSX payment line workbooks",
	}
	lines.AddCommand(
		&cobra.Command{
			Use:   "template <out.xlsx>",
			Short: "Write an empty lines workbook",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return writeWorkbook(args[0], nil)
			},
		},
		&cobra.Command{
			Use:   "export <batch.yaml> <out.xlsx>",
			Short: "Write the lines of a batch to a workbook",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				f, err := batchfile.Load(args[0])
				if err != nil {
					return err
				}
				return writeWorkbook(args[1], f.Lines)
			},
		},
	)
	return lines
}

func writeWorkbook(path string, lines []batchfile.Line) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	return batchfile.WriteLines(out, lines)
}
