package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// ============================================================================
// CROSSFACET CLI: Linked facet aggregations over a dataset
// ============================================================================

const version = "0.3.0"

var (
	sessionPath string
	dataPath    string
	dataFormat  string
	dsn         string
	format      string
	outFile     string
	verbose     bool

	rootCmd = &cobra.Command{
		Use:   "crossfacet",
		Short: "Linked facet aggregations over any dataset",
		Long: `crossfacet loads a dataset and a session of facets and widgets,
applies every widget's selection to all others, and prints the aggregations.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
)

func main() {
	// A missing .env is fine; flags and the process environment still apply.
	_ = godotenv.Load()

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&sessionPath, "session", "s", os.Getenv("CROSSFACET_SESSION"), "Path to session file (YAML or JSON)")
	pf.StringVarP(&dataPath, "data", "d", os.Getenv("CROSSFACET_DATA"), "Path to dataset file (csv, json, xlsx); overrides the session")
	pf.StringVar(&dataFormat, "data-format", "", "Dataset format: csv, json, xlsx (default: from extension)")
	pf.StringVar(&dsn, "dsn", os.Getenv("CROSSFACET_DSN"), "Postgres DSN; records come from the session's query")
	pf.StringVarP(&format, "format", "f", "text", "Output format: json, pretty, text, csv (discover: yaml, json, pretty)")
	pf.StringVarP(&outFile, "out", "o", "", "Write output to file instead of stdout")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(discoverCmd, aggregateCmd, heatmapCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
