package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the treereconcile command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treereconcile",
		Short: "Reconcile backup target trees with their sources",
		Long: `treereconcile compares source directory trees with their backup targets,
lists the copies, replacements and deletions that would make each target match
its source, and applies them on request.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	AddGlobalFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(NewScanCommand())
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
