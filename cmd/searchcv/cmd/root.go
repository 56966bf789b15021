// Package cmd provides the searchcv command line.
package cmd

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
	"github.com/YuminosukeSato/searchcv/pkg/log"
	"github.com/YuminosukeSato/searchcv/pkg/version"
	"github.com/YuminosukeSato/searchcv/report"

	// Estimators register themselves by type name.
	_ "github.com/YuminosukeSato/searchcv/sklearn/linear_model"
	_ "github.com/YuminosukeSato/searchcv/sklearn/tree"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	noColor    bool
}

// NewRootCmd creates the root command for the searchcv CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "searchcv",
		Short: "Cross-validated hyperparameter search over several estimators",
		Long: `searchcv runs a grid or randomized search for each configured estimator,
re-evaluates every winner on a prefix sample of the data and optionally
saves the aggregate record for later inspection.`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("searchcv version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML run configuration")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: auto, console or json")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored report output")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newShowCmd(opts))
	cmd.AddCommand(newPlotCmd(opts))
	cmd.AddCommand(newScorersCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// newLogger builds the process logger on w. "auto" picks the console
// encoder when w is a terminal. Advisory warnings are routed to it.
func newLogger(w io.Writer, level, format string) (log.Logger, error) {
	if level == "" {
		level = "info"
	}
	console := false
	switch format {
	case "console":
		console = true
	case "json":
	case "", "auto":
		console = isTerminal(w)
	default:
		return nil, errors.NewInvalidConfigurationError("searchcv", "log-format", "expected auto, console or json", format)
	}
	logger, err := log.SetupLogger(w, level, console)
	if err != nil {
		return nil, err
	}
	errors.SetWarningHandler(func(warning error) {
		logger.Warn("Advisory warning", "warning", warning.Error())
	})
	return logger, nil
}

func (o *rootOptions) styles(w io.Writer) report.Styles {
	if o.noColor || !isTerminal(w) {
		return report.NoColorStyles()
	}
	return report.DefaultStyles()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
