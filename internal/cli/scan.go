package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sdejongh/treereconcile/pkg/config"
	"github.com/sdejongh/treereconcile/pkg/logging"
	"github.com/sdejongh/treereconcile/pkg/output"
	"github.com/sdejongh/treereconcile/pkg/sync"
)

var scanFlags ScanFlags

// NewScanCommand creates the scan command
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Compare source and target trees and print the backup plan",
		Long: `Walk every task's source and target trees and list what would bring each
target in line with its source. Nothing is modified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, &scanFlags)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signalContext(cmd)
			defer stop()

			_, err = s.scan(ctx)
			return err
		},
	}

	addScanFlags(cmd, &scanFlags)
	return cmd
}

// session holds what a scan or run needs, built from config and flags
type session struct {
	cfg       *config.Config
	flags     *ScanFlags
	logger    logging.Logger
	formatter output.Formatter
}

func newSession(cmd *cobra.Command, f *ScanFlags) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlagsToConfig(cfg, f); err != nil {
		return nil, err
	}

	var w io.Writer = cmd.OutOrStdout()
	if cfg.Output.Quiet && cfg.Output.Format != "json" {
		w = io.Discard
	}
	formatter, err := output.New(cfg.Output.Format, w, cfg.Output.Progress)
	if err != nil {
		return nil, err
	}

	logger, err := createLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &session{cfg: cfg, flags: f, logger: logger, formatter: formatter}, nil
}

// scan runs every task and prints the resulting plan
func (s *session) scan(ctx context.Context) (*sync.ScanReport, error) {
	tasks := s.cfg.BuildTasks()
	if err := validateTasks(tasks); err != nil {
		return nil, err
	}

	index, err := s.cfg.BuildIndex()
	if err != nil {
		return nil, fmt.Errorf("invalid directory rules: %w", err)
	}

	orchestrator := sync.NewOrchestrator(s.cfg.SyncConfig(), index, s.logger, s.formatter)
	report, err := orchestrator.Scan(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	if s.flags.Report != "" {
		if err := output.WritePlanReport(report, s.flags.Report, s.flags.ReportFormat); err != nil {
			return report, fmt.Errorf("failed to write plan report: %w", err)
		}
	}

	if report.Cancelled {
		return report, context.Canceled
	}
	return report, nil
}

// Close releases the logger
func (s *session) Close() {
	s.logger.Close()
}

// signalContext returns a context cancelled on interrupt or termination
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
