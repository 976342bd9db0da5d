package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"whiro/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "whiro",
	Short: "Whiro IR instrumentation engine",
	Long:  `Whiro rewrites a typed IR module so the compiled program reports snapshots of its state at inspection points`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(instrumentCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
