package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"enrolldash/internal/config"
	"enrolldash/internal/dataprocessing"
	"enrolldash/internal/exporter"
	"enrolldash/internal/infrastructure"
	"enrolldash/internal/session"
	"enrolldash/pkg/contracts/domain"
	"enrolldash/pkg/contracts/events"
)

// reportOptions are the flags shared by every subcommand
type reportOptions struct {
	preamble int
	maxBytes int64
	logLevel string
	filters  map[domain.Dimension]*[]string

	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &reportOptions{filters: make(map[domain.Dimension]*[]string)}

	root := &cobra.Command{
		Use:           "enrollment-report",
		Short:         "Summarize and export school enrollment files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = infrastructure.NewLogger(stderr, config.LoggingConfig{Level: opts.logLevel})
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	f := root.PersistentFlags()
	f.IntVar(&opts.preamble, "preamble", config.DefaultPreambleLines, "report lines to skip before the header row")
	f.Int64Var(&opts.maxBytes, "max-bytes", config.DefaultUploadMaxBytes, "largest file accepted")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	for _, d := range domain.Dimensions() {
		values := new([]string)
		opts.filters[d] = values
		f.StringArrayVar(values, flagName(d), nil, fmt.Sprintf("keep rows whose %s is this value (repeatable)", d.Column()))
	}

	root.AddCommand(
		newSummaryCmd(opts),
		newOptionsCmd(opts),
		newExportCmd(opts),
	)
	return root
}

func flagName(d domain.Dimension) string {
	return strings.ReplaceAll(d.Key(), "_", "-")
}

// load runs the file and the filter flags through a session exactly as the
// web dashboard would
func (o *reportOptions) load(ctx context.Context, path string) (domain.SessionSnapshot, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("read %s: %w", path, err)
	}

	loader := dataprocessing.NewLoader(o.logger, dataprocessing.LoaderConfig{
		PreambleLines: o.preamble,
		MaxBytes:      o.maxBytes,
	})
	store := session.NewStore(loader, session.Config{IdleTTL: time.Hour, SweepInterval: time.Hour}, o.logger)

	snap := store.Create(ctx)
	id := snap.SessionID

	snap, err = store.Dispatch(ctx, id, events.DatasetChanged(filepath.Base(path), contents))
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if snap.State != domain.UploadStateLoaded {
		return domain.SessionSnapshot{}, fmt.Errorf("%s", snap.Status)
	}

	for _, d := range domain.Dimensions() {
		values := *o.filters[d]
		if len(values) == 0 {
			continue
		}
		if snap, err = store.Dispatch(ctx, id, events.FilterChanged(d, values)); err != nil {
			return domain.SessionSnapshot{}, err
		}
	}
	return snap, nil
}

func newSummaryCmd(opts *reportOptions) *cobra.Command {
	var withTables bool

	cmd := &cobra.Command{
		Use:   "summary <file>",
		Short: "Print the summary cards, and optionally every chart table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			dash := snap.Dashboard

			fmt.Fprintf(out, "%s: %d of %d rows match\n", snap.Filename, dash.MatchedRows, dash.TotalRows)
			if !snap.Selection.IsEmpty() {
				for _, d := range snap.Selection.Active() {
					fmt.Fprintf(out, "  %s = %s\n", d.Column(), strings.Join(snap.Selection.Get(d), ", "))
				}
			}

			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Metric", "Value", "Nationwide", "Note"})
			for _, m := range []domain.Metric{dash.Summary.Male, dash.Summary.Female, dash.Summary.Enrollees, dash.Summary.Schools} {
				table.Append([]string{
					m.Label,
					m.Display,
					strconv.FormatFloat(m.NationwidePercent, 'f', 1, 64) + "%",
					m.Annotation,
				})
			}
			table.Render()

			if !withTables {
				return nil
			}
			for _, t := range dash.Tables {
				fmt.Fprintf(out, "\n%s\n", t.Title)
				headers, records := exporter.TableRecords(t)
				tw := tablewriter.NewWriter(out)
				tw.SetHeader(headers)
				tw.AppendBulk(records)
				tw.Render()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withTables, "tables", false, "also print the six chart tables")
	return cmd
}

func newOptionsCmd(opts *reportOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "options <file>",
		Short: "List the values each filter still offers under the current filters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Filter", "Flag", "Count", "Values"})
			table.SetAutoWrapText(false)
			for _, d := range domain.Dimensions() {
				values := snap.Options[d]
				table.Append([]string{d.Column(), "--" + flagName(d), strconv.Itoa(len(values)), strings.Join(values, ", ")})
			}
			table.Render()
			return nil
		},
	}
}

func newExportCmd(opts *reportOptions) *cobra.Command {
	var (
		output string
		csvDir string
	)

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write the dashboard as an Excel workbook and optional per-table CSV files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if err := writeWorkbookFile(output, snap); err != nil {
				return err
			}
			opts.logger.Info("workbook written", slog.String("path", output))
			fmt.Fprintln(cmd.OutOrStdout(), output)

			if csvDir == "" {
				return nil
			}
			for _, t := range snap.Dashboard.Tables {
				path := filepath.Join(csvDir, string(t.ID)+".csv")
				if err := exporter.WriteTableFile(path, t); err != nil {
					return fmt.Errorf("export %s: %w", t.ID, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "enrollment-dashboard.xlsx", "workbook path")
	cmd.Flags().StringVar(&csvDir, "csv-dir", "", "also write one CSV per chart table into this directory")
	return cmd
}

func writeWorkbookFile(path string, snap domain.SessionSnapshot) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	if err := exporter.WriteWorkbook(file, snap); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
