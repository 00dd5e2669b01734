package domain

import (
	"testing"
)

func TestGeneConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    Gene
		expected string
	}{
		{"CYP2D6", CYP2D6, "CYP2D6"},
		{"CYP2C19", CYP2C19, "CYP2C19"},
		{"CYP2C9", CYP2C9, "CYP2C9"},
		{"SLCO1B1", SLCO1B1, "SLCO1B1"},
		{"TPMT", TPMT, "TPMT"},
		{"DPYD", DPYD, "DPYD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.value) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.value))
			}
			if !tt.value.IsValid() {
				t.Errorf("Expected %s to be valid", tt.expected)
			}
		})
	}

	if Gene("BRCA1").IsValid() {
		t.Error("Expected gene outside the panel to be invalid")
	}
}

func TestGeneChromosome(t *testing.T) {
	tests := []struct {
		gene     Gene
		expected string
	}{
		{CYP2D6, "22"},
		{CYP2C19, "10"},
		{CYP2C9, "10"},
		{SLCO1B1, "12"},
		{TPMT, "6"},
		{DPYD, "1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.gene), func(t *testing.T) {
			if got := tt.gene.Chromosome(); got != tt.expected {
				t.Errorf("Expected chromosome %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestPhenotypeCodes(t *testing.T) {
	tests := []struct {
		name      string
		phenotype Phenotype
		code      string
	}{
		{"Poor Metabolizer", PoorMetabolizer, "PM"},
		{"Intermediate Metabolizer", IntermediateMetabolizer, "IM"},
		{"Normal Metabolizer", NormalMetabolizer, "NM"},
		{"Rapid Metabolizer", RapidMetabolizer, "RM"},
		{"Ultrarapid Metabolizer", UltrarapidMetabolizer, "URM"},
		{"Unknown", PhenotypeUnknown, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.phenotype.Code(); got != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, got)
			}
			if got := PhenotypeFromCode(tt.code); got != tt.phenotype {
				t.Errorf("Expected %s from code %s, got %s", tt.phenotype, tt.code, got)
			}
			if !tt.phenotype.IsValid() {
				t.Errorf("Expected %s to be valid", tt.phenotype)
			}
		})
	}
}

func TestPhenotypeFromCodeNormalization(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected Phenotype
	}{
		{"Lowercase", "pm", PoorMetabolizer},
		{"Padded", " NM ", NormalMetabolizer},
		{"Empty", "", PhenotypeUnknown},
		{"Unrecognized", "XX", PhenotypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PhenotypeFromCode(tt.code); got != tt.expected {
				t.Errorf("Expected %s for code %q, got %s", tt.expected, tt.code, got)
			}
		})
	}
}

func TestRiskLabelConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    RiskLabel
		expected string
	}{
		{"Safe", RiskSafe, "Safe"},
		{"Adjust Dosage", RiskAdjustDosage, "Adjust Dosage"},
		{"Toxic", RiskToxic, "Toxic"},
		{"Ineffective", RiskIneffective, "Ineffective"},
		{"Error", RiskLabelError, "Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.value) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.value))
			}
			if !tt.value.IsValid() {
				t.Errorf("Expected %s to be valid", tt.expected)
			}
		})
	}
}

func TestRiskLabelRuleMembership(t *testing.T) {
	for _, label := range []RiskLabel{RiskSafe, RiskAdjustDosage, RiskToxic, RiskIneffective} {
		if !label.IsRuleLabel() {
			t.Errorf("Expected %s to be a rule label", label)
		}
	}
	if RiskLabelError.IsRuleLabel() {
		t.Error("Error label must never appear in a risk rule")
	}
}

func TestRiskLabelRequiresAlternative(t *testing.T) {
	tests := []struct {
		label    RiskLabel
		expected bool
	}{
		{RiskSafe, false},
		{RiskAdjustDosage, false},
		{RiskToxic, true},
		{RiskIneffective, true},
		{RiskLabelError, false},
	}

	for _, tt := range tests {
		if got := tt.label.RequiresAlternative(); got != tt.expected {
			t.Errorf("%s: expected RequiresAlternative %v, got %v", tt.label, tt.expected, got)
		}
	}
}

func TestSeverityConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    Severity
		expected string
	}{
		{"None", SeverityNone, "none"},
		{"Low", SeverityLow, "low"},
		{"Moderate", SeverityModerate, "moderate"},
		{"High", SeverityHigh, "high"},
		{"Critical", SeverityCritical, "critical"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.value) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.value))
			}
			if !tt.value.IsValid() {
				t.Errorf("Expected %s to be valid", tt.expected)
			}
		})
	}

	if Severity("fatal").IsValid() {
		t.Error("Expected unknown severity to be invalid")
	}
}

func TestZygosityCarriesVariant(t *testing.T) {
	tests := []struct {
		zygosity Zygosity
		carries  bool
	}{
		{HomRef, false},
		{Het, true},
		{HomAlt, true},
		{ZygosityUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.zygosity), func(t *testing.T) {
			if got := tt.zygosity.CarriesVariant(); got != tt.carries {
				t.Errorf("Expected CarriesVariant %v, got %v", tt.carries, got)
			}
		})
	}
}

func TestAlleleFunctionRankOrdering(t *testing.T) {
	if !(FunctionNone.Rank() < FunctionReduced.Rank()) {
		t.Error("non-functional must outrank reduced")
	}
	if !(FunctionReduced.Rank() < FunctionNormal.Rank()) {
		t.Error("reduced must outrank normal")
	}
	if !(FunctionNormal.Rank() < FunctionIncreased.Rank()) {
		t.Error("normal must outrank increased")
	}
	if AlleleFunction("mystery").IsValid() {
		t.Error("Expected unknown function class to be invalid")
	}
}

func TestGenotypeCallValidate(t *testing.T) {
	tests := []struct {
		name    string
		call    GenotypeCall
		wantErr bool
	}{
		{
			name:    "Valid heterozygous call",
			call:    GenotypeCall{RSID: "rs4244285", Genotype: "AG", Zygosity: Het},
			wantErr: false,
		},
		{
			name:    "Missing rsid",
			call:    GenotypeCall{Genotype: "AG", Zygosity: Het},
			wantErr: true,
		},
		{
			name:    "Missing genotype",
			call:    GenotypeCall{RSID: "rs4244285", Zygosity: Het},
			wantErr: true,
		},
		{
			name:    "Bad zygosity",
			call:    GenotypeCall{RSID: "rs4244285", Genotype: "AG", Zygosity: Zygosity("both")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeGenotype(t *testing.T) {
	tests := []struct {
		a, b     string
		expected string
	}{
		{"G", "A", "AG"},
		{"A", "G", "AG"},
		{"g", "a", "AG"},
		{"T", "T", "TT"},
		{"T", "TA", "T/TA"},
		{"TA", "T", "T/TA"},
		{"TA", "TA", "TA/TA"},
		{" C ", "t", "CT"},
	}

	for _, tt := range tests {
		if got := NormalizeGenotype(tt.a, tt.b); got != tt.expected {
			t.Errorf("NormalizeGenotype(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.expected)
		}
	}
}
