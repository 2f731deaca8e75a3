package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdejongh/treereconcile/pkg/backup"
	"github.com/sdejongh/treereconcile/pkg/models"
	"github.com/sdejongh/treereconcile/pkg/output"
	"github.com/sdejongh/treereconcile/pkg/storage"
	"github.com/sdejongh/treereconcile/pkg/sync"
)

// RunFlags holds run command flags
type RunFlags struct {
	ScanFlags
	IncludeAmbiguous bool
	Yes              bool
	LockDir          string
	Bandwidth        string
}

var runFlags RunFlags

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan, then apply the backup plan",
		Long: `Scan every task, then copy, replace and delete files until each target
matches its source. Ambiguous entries (targets newer than their source) are
skipped unless --include-ambiguous is given.`,
		RunE: runRun,
	}

	addScanFlags(cmd, &runFlags.ScanFlags)
	cmd.Flags().BoolVar(&runFlags.IncludeAmbiguous, "include-ambiguous", false, "also overwrite targets newer than their source")
	cmd.Flags().BoolVarP(&runFlags.Yes, "yes", "y", false, "apply the plan without asking for confirmation")
	cmd.Flags().StringVarP(&runFlags.Bandwidth, "bandwidth", "b", "", "limit the copy rate (e.g. \"10M\", \"512KiB\")")
	cmd.Flags().StringVar(&runFlags.LockDir, "lock-dir", "", "directory of the run lock (default is the user cache directory)")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	lock, err := acquireRunLock(runFlags.LockDir)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	s, err := newSession(cmd, &runFlags.ScanFlags)
	if err != nil {
		return err
	}
	defer s.Close()

	if runFlags.Bandwidth != "" {
		s.cfg.Scan.BandwidthLimit = runFlags.Bandwidth
	}
	local, err := s.cfg.Storage()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	report, err := s.scan(ctx)
	if err != nil {
		return err
	}

	entries, skipped := selectEntries(report.Entries, runFlags.IncludeAmbiguous)
	if skipped > 0 && !s.cfg.Output.Quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipping %d ambiguous entries (use --include-ambiguous to apply them)\n", skipped)
	}
	if len(entries) == 0 {
		if !s.cfg.Output.Quiet {
			fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to do")
		}
		return nil
	}

	if !runFlags.Yes {
		ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), len(entries))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("aborted")
		}
	}

	executor := sync.NewExecutor(local, storage.NewVolumeRegistry(), s.logger, s.formatter)
	result := executor.Execute(ctx, entries, &report.Counters)

	switch {
	case result.Cancelled:
		return context.Canceled
	case result.Failed > 0:
		return fmt.Errorf("%d items failed", result.Failed)
	}
	return nil
}

// selectEntries drops ambiguous entries unless include is set
func selectEntries(entries []backup.Entry, include bool) (selected []backup.Entry, skipped int) {
	for _, entry := range entries {
		if !include && entry.Key().Action == models.ActionAmbiguous {
			skipped += entry.Leaves()
			continue
		}
		selected = append(selected, entry)
	}
	return selected, skipped
}

// confirm asks before modifying anything. Without a terminal there is nobody
// to ask, so --yes is required.
func confirm(in io.Reader, out io.Writer, entries int) (bool, error) {
	if f, ok := in.(*os.File); ok && !output.IsTerminal(f) {
		return false, fmt.Errorf("refusing to apply %d entries without confirmation (use --yes)", entries)
	}

	fmt.Fprintf(out, "Apply %d entries? [y/N] ", entries)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
