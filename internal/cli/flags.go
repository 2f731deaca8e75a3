package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Output     string
	Verbose    bool
	Quiet      bool
	// Logging
	LogFile   string
	LogFormat string
	LogLevel  string
}

var globalFlags GlobalFlags

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&globalFlags.ConfigFile, "config", "", "config file (default is $HOME/.config/treereconcile/config.yaml)")
	flags.StringVarP(&globalFlags.Output, "output", "o", "", "output format: human, json")
	flags.BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "suppress non-error output")
	flags.StringVar(&globalFlags.LogFile, "log-file", "", "write logs to file (enables logging)")
	flags.StringVar(&globalFlags.LogFormat, "log-format", "", "log format: text, json")
	flags.StringVar(&globalFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() *GlobalFlags {
	return &globalFlags
}

// ScanFlags holds the flags shared by the scan and run commands
type ScanFlags struct {
	Source          string
	Target          string
	Name            string
	CompareContent  bool
	Parallel        int
	MaxDepth        int
	TimeTolerance   string
	AmbiguousPolicy string
	Exclude         []string
	Report          string
	ReportFormat    string
}

func addScanFlags(cmd *cobra.Command, f *ScanFlags) {
	flags := cmd.Flags()
	flags.StringVarP(&f.Source, "source", "s", "", "source path of an ad-hoc task")
	flags.StringVarP(&f.Target, "target", "t", "", "target path of an ad-hoc task")
	flags.StringVar(&f.Name, "name", "", "name of the ad-hoc task")
	flags.BoolVar(&f.CompareContent, "content", false, "compare file content instead of size and time")
	flags.IntVarP(&f.Parallel, "parallel", "p", 0, "number of tasks scanned concurrently")
	flags.IntVar(&f.MaxDepth, "max-depth", 0, "maximum directory depth below each task root")
	flags.StringVar(&f.TimeTolerance, "time-tolerance", "", "treat modification times closer than this as equal (e.g. \"2s\")")
	flags.StringVar(&f.AmbiguousPolicy, "ambiguous", "", "policy for targets newer than their source: flag, verify, copy_back")
	flags.StringSliceVar(&f.Exclude, "exclude", nil, "glob patterns to exclude")
	flags.StringVar(&f.Report, "report", "", "write the backup plan to file")
	flags.StringVar(&f.ReportFormat, "report-format", "human", "backup plan format: human, json")
	cmd.MarkFlagsRequiredTogether("source", "target")
}
