package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
	"github.com/YuminosukeSato/searchcv/report"
	ms "github.com/YuminosukeSato/searchcv/sklearn/model_selection"
)

func newShowCmd(opts *rootOptions) *cobra.Command {
	var top int
	var entry string

	cmd := &cobra.Command{
		Use:   "show <results-file>",
		Short: "Print a saved aggregate record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := loadRecord(cmd, opts, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			styles := opts.styles(out)
			fmt.Fprintln(out, report.Summary(record, styles))

			entries := record.Entries
			if entry != "" {
				e, ok := record.Get(entry)
				if !ok {
					return errors.Newf("entry %q not found; entries: %v", entry, record.Names())
				}
				entries = []*ms.Entry{e}
			}
			if top == 0 && entry == "" {
				return nil
			}
			for _, e := range entries {
				fmt.Fprintln(out, report.Candidates(e, styles, top))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 0, "Also list the best N candidates of each entry")
	cmd.Flags().StringVar(&entry, "entry", "", "Only list candidates of this entry")

	return cmd
}

func newPlotCmd(opts *rootOptions) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "plot <results-file>",
		Short: "Draw a box plot of the cross-validation scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := loadRecord(cmd, opts, args[0])
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = report.DefaultPlotPath(args[0])
			}
			if err := report.PlotCVScores(record, outPath); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return err
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Image path; the extension selects the format (default <results>.png)")

	return cmd
}

// loadRecord reads a results file. The path is used as given.
func loadRecord(cmd *cobra.Command, opts *rootOptions, path string) (*ms.AggregateRecord, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
	if err != nil {
		return nil, err
	}
	store := ms.NewFileStore("")
	store.Logger = logger
	return store.Load(path)
}
