package cpic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-risk-server/internal/domain"
)

func TestNewKnowledgeBase_Validates(t *testing.T) {
	kb := NewKnowledgeBase()
	require.NoError(t, kb.Validate())

	assert.Len(t, kb.SupportedDrugs(), 18)
	assert.Len(t, kb.SupportedGenes(), 6)
	assert.True(t, sortedStrings(kb.SupportedDrugs()))
}

func TestGeneForDrug(t *testing.T) {
	kb := NewKnowledgeBase()

	tests := []struct {
		drug string
		gene domain.Gene
	}{
		{"CODEINE", domain.CYP2D6},
		{"TRAMADOL", domain.CYP2D6},
		{"METOPROLOL", domain.CYP2D6},
		{"CLOPIDOGREL", domain.CYP2C19},
		{"OMEPRAZOLE", domain.CYP2C19},
		{"LANSOPRAZOLE", domain.CYP2C19},
		{"WARFARIN", domain.CYP2C9},
		{"LOSARTAN", domain.CYP2C9},
		{"PHENYTOIN", domain.CYP2C9},
		{"SIMVASTATIN", domain.SLCO1B1},
		{"ATORVASTATIN", domain.SLCO1B1},
		{"ROSUVASTATIN", domain.SLCO1B1},
		{"AZATHIOPRINE", domain.TPMT},
		{"MERCAPTOPURINE", domain.TPMT},
		{"THIOGUANINE", domain.TPMT},
		{"FLUOROURACIL", domain.DPYD},
		{"CAPECITABINE", domain.DPYD},
		{"TEGAFUR", domain.DPYD},
	}

	for _, tt := range tests {
		t.Run(tt.drug, func(t *testing.T) {
			gene, ok := kb.GeneForDrug(tt.drug)
			require.True(t, ok)
			assert.Equal(t, tt.gene, gene)
		})
	}

	t.Run("Case_Insensitive", func(t *testing.T) {
		gene, ok := kb.GeneForDrug("  codeine ")
		require.True(t, ok)
		assert.Equal(t, domain.CYP2D6, gene)
	})

	t.Run("Unsupported_Drug", func(t *testing.T) {
		_, ok := kb.GeneForDrug("ASPIRIN")
		assert.False(t, ok)
		assert.False(t, kb.IsSupported("ASPIRIN"))
	})
}

func TestRiskRuleTotality(t *testing.T) {
	kb := NewKnowledgeBase()

	phenotypes := []domain.Phenotype{
		domain.PoorMetabolizer,
		domain.IntermediateMetabolizer,
		domain.NormalMetabolizer,
		domain.RapidMetabolizer,
		domain.UltrarapidMetabolizer,
		domain.PhenotypeUnknown,
	}

	for _, gene := range kb.SupportedGenes() {
		for _, phenotype := range phenotypes {
			rule := kb.RiskRuleFor(gene, phenotype)
			assert.True(t, rule.Label.IsRuleLabel(),
				"gene %s phenotype %s has out-of-set label %q", gene, phenotype, rule.Label)
			assert.True(t, rule.Severity.IsValid(),
				"gene %s phenotype %s has invalid severity %q", gene, phenotype, rule.Severity)
			assert.NotEmpty(t, rule.Action)
			assert.Contains(t, rule.GuidelineURL, "https://cpicpgx.org/")
		}
	}
}

func TestRiskRuleFor_KnownRows(t *testing.T) {
	kb := NewKnowledgeBase()

	tests := []struct {
		name        string
		gene        domain.Gene
		phenotype   domain.Phenotype
		label       domain.RiskLabel
		severity    domain.Severity
		alternative bool
	}{
		{"CYP2D6_Poor", domain.CYP2D6, domain.PoorMetabolizer, domain.RiskToxic, domain.SeverityCritical, true},
		{"CYP2D6_Ultrarapid", domain.CYP2D6, domain.UltrarapidMetabolizer, domain.RiskIneffective, domain.SeverityCritical, true},
		{"CYP2C19_Poor", domain.CYP2C19, domain.PoorMetabolizer, domain.RiskIneffective, domain.SeverityHigh, true},
		{"CYP2C9_Poor", domain.CYP2C9, domain.PoorMetabolizer, domain.RiskToxic, domain.SeverityCritical, true},
		{"CYP2C9_Intermediate", domain.CYP2C9, domain.IntermediateMetabolizer, domain.RiskAdjustDosage, domain.SeverityModerate, false},
		{"SLCO1B1_Poor", domain.SLCO1B1, domain.PoorMetabolizer, domain.RiskToxic, domain.SeverityHigh, true},
		{"TPMT_Intermediate", domain.TPMT, domain.IntermediateMetabolizer, domain.RiskAdjustDosage, domain.SeverityHigh, false},
		{"DPYD_Poor", domain.DPYD, domain.PoorMetabolizer, domain.RiskToxic, domain.SeverityCritical, true},
		{"Normal_Is_Safe", domain.CYP2D6, domain.NormalMetabolizer, domain.RiskSafe, domain.SeverityNone, false},
		{"Unknown_Is_Conservative", domain.TPMT, domain.PhenotypeUnknown, domain.RiskAdjustDosage, domain.SeverityLow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := kb.RiskRuleFor(tt.gene, tt.phenotype)
			assert.Equal(t, tt.label, rule.Label)
			assert.Equal(t, tt.severity, rule.Severity)
			if tt.alternative {
				assert.NotEmpty(t, rule.Alternative)
			} else {
				assert.Empty(t, rule.Alternative)
			}
		})
	}
}

func TestPhenotypeForDiplotype(t *testing.T) {
	kb := NewKnowledgeBase()

	tests := []struct {
		gene      domain.Gene
		diplotype string
		expected  domain.Phenotype
	}{
		{domain.CYP2D6, "*1/*1", domain.NormalMetabolizer},
		{domain.CYP2D6, "*4/*4", domain.PoorMetabolizer},
		{domain.CYP2D6, "*1xN/*2", domain.UltrarapidMetabolizer},
		{domain.CYP2C19, "*1/*17", domain.RapidMetabolizer},
		{domain.CYP2C9, "*2/*3", domain.PoorMetabolizer},
		{domain.SLCO1B1, "*1/*5", domain.IntermediateMetabolizer},
		{domain.TPMT, "*3A/*3C", domain.PoorMetabolizer},
		{domain.DPYD, "*1A/*1", domain.NormalMetabolizer},
		{domain.CYP2D6, "*10/*10", domain.PhenotypeUnknown},
		{domain.CYP2D6, "garbage", domain.PhenotypeUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.gene)+"_"+tt.diplotype, func(t *testing.T) {
			assert.Equal(t, tt.expected, kb.PhenotypeForDiplotype(tt.gene, tt.diplotype))
		})
	}
}

func TestAlleleCallFor(t *testing.T) {
	kb := NewKnowledgeBase()

	call, ok := kb.AlleleCallFor("rs3892097")
	require.True(t, ok)
	assert.Equal(t, domain.CYP2D6, call.Gene)
	assert.Equal(t, "*4", call.Allele)
	assert.Equal(t, domain.FunctionNone, call.Function)

	call, ok = kb.AlleleCallFor("rs4149056")
	require.True(t, ok)
	assert.Equal(t, domain.SLCO1B1, call.Gene)
	assert.Equal(t, "*5", call.Allele)
	assert.Equal(t, domain.FunctionReduced, call.Function)

	// Monitored but without an allele-call rule
	_, ok = kb.AlleleCallFor("rs28413332")
	assert.False(t, ok)

	_, ok = kb.AlleleCallFor("rs0000000")
	assert.False(t, ok)
}

func TestMonitoredVariants(t *testing.T) {
	kb := NewKnowledgeBase()

	variants := kb.MonitoredVariants(domain.CYP2D6)
	require.Len(t, variants, 7)
	assert.Equal(t, "rs3892097", variants[0].RSID)

	ids := kb.VariantIDSet(domain.CYP2C19)
	assert.Len(t, ids, 5)
	assert.True(t, ids["rs4244285"])
	assert.False(t, ids["rs3892097"])

	mv, ok := kb.VariantByID("rs4244285")
	require.True(t, ok)
	assert.Equal(t, "G", mv.Ref)
	assert.Equal(t, "A", mv.Alt)
	assert.Greater(t, mv.Position, 0)
}

func TestMonitoredVariantGenotypes(t *testing.T) {
	t.Run("Single_Base", func(t *testing.T) {
		mv := MonitoredVariant{RSID: "rs3892097", Position: 42128945, Ref: "G", Alt: "A"}

		assert.Equal(t, "GG", mv.ReferenceGenotype())
		assert.True(t, mv.AllowsGenotype("GG"))
		assert.True(t, mv.AllowsGenotype("AG")) // normalized het
		assert.True(t, mv.AllowsGenotype("AA"))
		assert.False(t, mv.AllowsGenotype("CC"))
		assert.False(t, mv.AllowsGenotype("GA")) // unnormalized form is rejected
	})

	t.Run("Multi_Base", func(t *testing.T) {
		mv := MonitoredVariant{RSID: "rs5030655", Position: 42128242, Ref: "TA", Alt: "T"}

		assert.Equal(t, "TA/TA", mv.ReferenceGenotype())
		assert.True(t, mv.AllowsGenotype("TA/TA"))
		assert.True(t, mv.AllowsGenotype("T/TA"))
		assert.True(t, mv.AllowsGenotype("TT")) // hom-alt pairs two single bases
		assert.False(t, mv.AllowsGenotype("T/T"))
		assert.False(t, mv.AllowsGenotype("TA/T"))
	})
}

func TestAlternatives(t *testing.T) {
	kb := NewKnowledgeBase()

	alts := kb.Alternatives("CODEINE")
	require.NotEmpty(t, alts)
	assert.Equal(t, "Morphine", alts[0])

	alts = kb.Alternatives("tramadol")
	require.NotEmpty(t, alts)
	assert.Equal(t, "Oxycodone", alts[0])

	assert.Empty(t, kb.Alternatives("ASPIRIN"))

	for _, drug := range kb.SupportedDrugs() {
		assert.NotEmpty(t, kb.Alternatives(drug), "drug %s has no alternatives", drug)
	}
}

func TestCompareAlleles(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"*1", "*2", -1},
		{"*2", "*10", -1},
		{"*10", "*2", 1},
		{"*3A", "*3B", -1},
		{"*3C", "*3A", 1},
		{"*1", "*1xN", -1},
		{"*2", "*2", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompareAlleles(tt.a, tt.b))
		})
	}
}

func TestRenderDiplotype(t *testing.T) {
	assert.Equal(t, "*1/*4", RenderDiplotype("*4", "*1"))
	assert.Equal(t, "*2/*10", RenderDiplotype("*10", "*2"))
	assert.Equal(t, "*3A/*3B", RenderDiplotype("*3B", "*3A"))
	assert.Equal(t, "*4/*4", RenderDiplotype("*4", "*4"))
	assert.Equal(t, "*1/*1xN", RenderDiplotype("*1xN", "*1"))
}

func TestValidate_CatchesBrokenTables(t *testing.T) {
	t.Run("Missing_Risk_Rule", func(t *testing.T) {
		kb := NewKnowledgeBase()
		delete(kb.guidelines[domain.TPMT].Risk, domain.PoorMetabolizer)
		err := kb.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing a risk rule")
	})

	t.Run("Out_Of_Set_Label", func(t *testing.T) {
		kb := NewKnowledgeBase()
		rule := kb.guidelines[domain.CYP2D6].Risk[domain.PoorMetabolizer]
		rule.Label = domain.RiskLabelError
		kb.guidelines[domain.CYP2D6].Risk[domain.PoorMetabolizer] = rule
		err := kb.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out-of-set risk label")
	})

	t.Run("Non_CPIC_URL", func(t *testing.T) {
		kb := NewKnowledgeBase()
		rule := kb.guidelines[domain.DPYD].Risk[domain.NormalMetabolizer]
		rule.GuidelineURL = "https://example.com/"
		kb.guidelines[domain.DPYD].Risk[domain.NormalMetabolizer] = rule
		err := kb.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-CPIC guideline URL")
	})

	t.Run("Allele_Call_For_Unmonitored_Position", func(t *testing.T) {
		kb := NewKnowledgeBase()
		kb.alleleCalls["rs9999999"] = AlleleCall{Gene: domain.CYP2D6, Allele: "*99", Function: domain.FunctionNone}
		err := kb.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a monitored position")
	})

	t.Run("Dangling_Reference_Drug", func(t *testing.T) {
		kb := NewKnowledgeBase()
		kb.guidelines[domain.CYP2C9].ReferenceDrug = "HEPARIN"
		err := kb.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not map back")
	})

	t.Run("Missing_Alternatives", func(t *testing.T) {
		kb := NewKnowledgeBase()
		delete(kb.alternatives, "WARFARIN")
		err := kb.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no alternative medications")
	})
}

func sortedStrings(values []string) bool {
	for i := 1; i < len(values); i++ {
		if values[i-1] > values[i] {
			return false
		}
	}
	return true
}
