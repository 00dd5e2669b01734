// Package main implements pgxcli, the command line client for the PGx risk
// engine. Analysis runs locally against the compiled-in guideline tables;
// no server is required.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pgxcli",
	Short: "CPIC-based pharmacogenomic risk analysis",
	Long: "pgxcli screens a patient VCF against CPIC guideline tables and\n" +
		"reports the drug-gene interaction risk. Everything runs offline\n" +
		"unless AI-generated explanations are requested.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(drugsCmd)
	rootCmd.AddCommand(genesCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
