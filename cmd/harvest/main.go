package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/harvest/pkg/refiners"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest - per-event crop harvesting and refinement",
		Long: `Harvest replays a stream of events, peels one value record per picked object
of a collection and hands the accumulated crops to refiners that write
figures of merit, histograms, profiles, analyses and trees.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Harvest v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "refiners",
		Short: "List available refiner kinds",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Available Refiners:")
			for _, kind := range refiners.Kinds() {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", kind)
			}
		},
	})

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Harvest an event stream",
		Long: `Harvest an event stream with the module and refiners declared in a YAML
configuration file. Flags and HARVEST_* environment variables override the
file.

Example:
  harvest run --config tracks.yaml --events events.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v, cmd.OutOrStdout())
		},
	}
	flags := runCmd.Flags()
	flags.StringP("config", "c", "", "Path to the YAML configuration file (required)")
	flags.StringP("events", "e", "", "JSON-lines event file, - for stdin")
	flags.Int("max-events", 0, "Stop after this many events")
	flags.String("output", "", "Root directory or bucket prefix of the artifacts")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Int("report-every", 0, "Log throughput every this many events")
	_ = runCmd.MarkFlagRequired("config")
	_ = v.BindPFlags(flags)

	root.AddCommand(runCmd)
	return root
}
