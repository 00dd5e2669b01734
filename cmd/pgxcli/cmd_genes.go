package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgx-risk-server/internal/cpic"
)

var genesCmd = &cobra.Command{
	Use:   "genes",
	Short: "List the genes on the screening panel",
	RunE: func(cmd *cobra.Command, args []string) error {
		kb := cpic.NewKnowledgeBase()
		for _, gene := range kb.SupportedGenes() {
			var drugs []string
			for _, drug := range kb.SupportedDrugs() {
				if drugGene, ok := kb.GeneForDrug(drug); ok && drugGene == gene {
					drugs = append(drugs, drug)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", gene, strings.Join(drugs, ", "))
		}
		return nil
	},
}
