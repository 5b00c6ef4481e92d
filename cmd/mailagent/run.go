package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/mailagent/internal/app"
	"github.com/nhle/mailagent/internal/metrics"
	"github.com/nhle/mailagent/internal/theme"
)

var errRunAborted = errors.New("ingestion run aborted")

var prettyFlag bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Store attachments of recent unread mail and record them in the ledger",
	RunE:  runIngest,
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Print today's alert digest",
	RunE:  runAlerts,
}

var (
	historyLimitFlag    int
	historyPipelineFlag string
	historyRunFlag      string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the local journal",
	Long: `List recent runs from the local journal.

With --run, list the attachments handled by that run instead. Only
journal.path needs to be configured.`,
	RunE:  runHistory,
}

func init() {
	ingestCmd.Flags().BoolVar(&prettyFlag, "pretty", false, "Print a table instead of JSON")

	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Maximum number of runs to list")
	historyCmd.Flags().StringVar(&historyPipelineFlag, "pipeline", "", "Only list runs of this pipeline (invoice or alerts)")
	historyCmd.Flags().StringVar(&historyRunFlag, "run", "", "List the attachments of this run ID")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	summary := a.Invoices.Run(cmd.Context())

	out := cmd.OutOrStdout()
	if prettyFlag {
		fmt.Fprint(out, theme.RenderSummary(summary))
	} else {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("encoding summary: %w", err)
		}
	}

	if summary.Failed() {
		return errRunAborted
	}
	return nil
}

func runAlerts(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	fmt.Fprintln(cmd.OutOrStdout(), a.Alerts.Run(cmd.Context()))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	switch historyPipelineFlag {
	case "", metrics.PipelineInvoice, metrics.PipelineAlerts:
	default:
		return fmt.Errorf("unknown pipeline %q", historyPipelineFlag)
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	j, err := app.OpenJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer func() {
		if err := j.Close(); err != nil {
			logger.Warn("closing journal failed", zap.Error(err))
		}
	}()

	out := cmd.OutOrStdout()
	if historyRunFlag != "" {
		attachments, err := j.AttachmentsForRun(cmd.Context(), historyRunFlag)
		if err != nil {
			return err
		}
		fmt.Fprint(out, theme.RenderAttachments(attachments))
		return nil
	}

	runs, err := app.RecentRuns(cmd.Context(), j, historyPipelineFlag, historyLimitFlag)
	if err != nil {
		return err
	}
	fmt.Fprint(out, theme.RenderRuns(runs))
	return nil
}
