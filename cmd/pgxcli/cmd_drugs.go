package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgx-risk-server/internal/cpic"
)

var drugsCmd = &cobra.Command{
	Use:   "drugs",
	Short: "List the drugs covered by the guideline tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		kb := cpic.NewKnowledgeBase()
		for _, drug := range kb.SupportedDrugs() {
			gene, _ := kb.GeneForDrug(drug)
			fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", drug, gene)
		}
		return nil
	},
}
