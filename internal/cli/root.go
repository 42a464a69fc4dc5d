// Package cli implements the vidresolve command line tool: an offline and
// online inspection tool that drives the resolver the way a host
// application would.
package cli

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alvarorichard/vidresolve/internal/util"
	"github.com/alvarorichard/vidresolve/internal/version"
)

// CatalogEnv names the environment variable holding the default catalog path
const CatalogEnv = "VIDRESOLVE_CATALOG"

type rootOptions struct {
	debug   bool
	perf    bool
	catalog string
	timeout time.Duration
}

// NewRootCommand builds the command tree. Output goes to the command's
// configured writers so tests can capture it.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "vidresolve",
		Short:         "Resolve obfuscated embed pages into playable video variants",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			util.SetDebugMode(opts.debug)
			util.PerfEnabled = opts.perf
			util.InitLoggerTo(cmd.ErrOrStderr())
			util.Debug("starting", "version", version.String())
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if opts.perf {
				util.GetPerfTracker().WriteReport(cmd.ErrOrStderr())
			}
		},
	}
	root.SetVersionTemplate(version.String() + "\n")

	flags := root.PersistentFlags()
	flags.BoolVar(&opts.debug, "debug", false, "enable debug mode with every resolution stage logged")
	flags.BoolVar(&opts.perf, "perf", false, "print stage timings when the command finishes")
	flags.StringVarP(&opts.catalog, "catalog", "c", os.Getenv(CatalogEnv), "locator catalog (YAML), defaults to $"+CatalogEnv)
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall timeout for network operations")

	root.AddCommand(
		newResolveCommand(opts),
		newLocatorsCommand(opts),
		newUnpackCommand(),
		newPackCommand(),
		newDecryptCommand(),
		newEncryptCommand(),
		newManifestCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code
func Execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		_, _ = io.WriteString(stderr, util.ErrorHandler(err)+"\n")
		return 1
	}
	return 0
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			version.ShowVersion(cmd.OutOrStdout())
		},
	}
}
