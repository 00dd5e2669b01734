package vcf

import (
	"fmt"
	"sort"
	"strings"
)

// Demo scenarios served by the sample endpoint and CLI.
const (
	ScenarioNormal          = "normal"
	ScenarioPoorMetabolizer = "poor-metabolizer"
	ScenarioUltrarapid      = "ultrarapid"
)

// sampleRecord is one data line of a generated demo VCF.
type sampleRecord struct {
	chrom string
	pos   int
	rsid  string
	ref   string
	alt   string
	gene  string
	gt    string
}

// Scenario genotypes use the panel coordinates from the knowledge base so a
// generated sample round-trips through extraction and resolution.
var sampleScenarios = map[string][]sampleRecord{
	ScenarioNormal: {
		{"22", 42128945, "rs3892097", "G", "A", "CYP2D6", "0/0"},
		{"10", 94781859, "rs4244285", "G", "A", "CYP2C19", "0/0"},
		{"10", 94942290, "rs1799853", "C", "T", "CYP2C9", "0/0"},
		{"12", 21178615, "rs4149056", "T", "C", "SLCO1B1", "0/0"},
		{"6", 18149127, "rs1800462", "G", "C", "TPMT", "0/0"},
		{"1", 97450058, "rs3918290", "G", "A", "DPYD", "0/0"},
	},
	ScenarioPoorMetabolizer: {
		{"22", 42128945, "rs3892097", "G", "A", "CYP2D6", "1/1"},
		{"10", 94781859, "rs4244285", "G", "A", "CYP2C19", "1/1"},
		{"10", 94942290, "rs1799853", "C", "T", "CYP2C9", "0/1"},
		{"10", 94981296, "rs1057910", "A", "C", "CYP2C9", "0/1"},
		{"12", 21178615, "rs4149056", "T", "C", "SLCO1B1", "1/1"},
		{"6", 18149127, "rs1800462", "G", "C", "TPMT", "1/1"},
		{"1", 97450058, "rs3918290", "G", "A", "DPYD", "1/1"},
	},
	// Increased-function CYP2C19 profile; the other genes stay reference.
	ScenarioUltrarapid: {
		{"22", 42128945, "rs3892097", "G", "A", "CYP2D6", "0/0"},
		{"10", 94761900, "rs12248560", "C", "T", "CYP2C19", "1/1"},
		{"10", 94942290, "rs1799853", "C", "T", "CYP2C9", "0/0"},
		{"12", 21178615, "rs4149056", "T", "C", "SLCO1B1", "0/0"},
		{"6", 18149127, "rs1800462", "G", "C", "TPMT", "0/0"},
		{"1", 97450058, "rs3918290", "G", "A", "DPYD", "0/0"},
	},
}

// Sample renders the canned demo VCF for a scenario.
func Sample(scenario string) ([]byte, error) {
	records, ok := sampleScenarios[strings.ToLower(strings.TrimSpace(scenario))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, scenario)
	}

	var b strings.Builder
	b.WriteString("##fileformat=VCFv4.2\n")
	b.WriteString("##source=pgx-risk-server demo generator\n")
	b.WriteString("##reference=GRCh38\n")
	b.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tPGX001\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%s\t%d\t%s\t%s\t%s\t.\tPASS\tGENE=%s\tGT\t%s\n",
			r.chrom, r.pos, r.rsid, r.ref, r.alt, r.gene, r.gt)
	}
	return []byte(b.String()), nil
}

// Scenarios returns the sorted list of demo scenario names.
func Scenarios() []string {
	names := make([]string, 0, len(sampleScenarios))
	for name := range sampleScenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
