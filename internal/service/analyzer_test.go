package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-risk-server/internal/cpic"
	"github.com/pgx-risk-server/internal/domain"
	"github.com/pgx-risk-server/pkg/vcf"
)

func TestAnalyzerService_Analyze_PoorMetabolizer(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	kb := cpic.NewKnowledgeBase()
	analyzer := NewAnalyzerService(logger, kb, NewExplainer(logger, kb, nil, nil, ExplainerConfig{}))

	sample, err := vcf.Sample(vcf.ScenarioPoorMetabolizer)
	require.NoError(t, err)

	report, err := analyzer.Analyze(context.Background(), AnalyzeParams{
		PatientID:  "PGX42",
		Drug:       "codeine",
		RawContent: sample,
	})
	require.NoError(t, err)

	assert.Equal(t, "PGX42", report.PatientID)
	assert.Equal(t, "CODEINE", report.Drug)

	assert.Equal(t, domain.RiskToxic, report.RiskAssessment.RiskLabel)
	assert.Equal(t, domain.SeverityCritical, report.RiskAssessment.Severity)
	assert.InDelta(t, 1.0, report.RiskAssessment.ConfidenceScore, 1e-9)

	assert.Equal(t, "CYP2D6", report.PharmacogenomicProfile.PrimaryGene)
	assert.Equal(t, "*4/*4", report.PharmacogenomicProfile.Diplotype)
	assert.Equal(t, domain.PoorMetabolizer, report.PharmacogenomicProfile.Phenotype)
	assert.Equal(t, []domain.DetectedVariant{{RSID: "rs3892097", Genotype: "AA"}},
		report.PharmacogenomicProfile.DetectedVariants)

	assert.Equal(t, "Avoid Codeine - Risk of life-threatening toxicity", report.ClinicalRecommendation.Action)
	assert.Equal(t, "Morphine or Non-Opioid Analgesic", report.ClinicalRecommendation.AlternativeSuggestion)
	assert.Equal(t, "https://cpicpgx.org/guidelines/cyp2d6-codeine-guideline/", report.ClinicalRecommendation.CPICGuidelineLink)

	assert.True(t, strings.HasPrefix(report.PatientAdvice.PatientFriendlySummary, "Warning:"))
	assert.Equal(t, "Consider Morphine", report.PatientAdvice.BestMedicineSuggestion)
	assert.Len(t, report.PatientAdvice.DoctorTalkingPoints, 3)

	assert.Contains(t, report.LLMExplanation.Summary, "The CYP2D6 gene encodes")
	assert.Equal(t, "Discussion Point: CODEINE and CYP2D6", report.SmartPatientGuidance.DoctorDiscussionCard.CardTitle)

	assert.True(t, report.QualityMetrics.VCFParsingSuccess)
	assert.Equal(t, 1, report.QualityMetrics.VariantsDetected)
	assert.Equal(t, domain.ExplanationSourceTemplate, report.QualityMetrics.ExplanationSource)

	assert.Equal(t, time.UTC, report.Timestamp.Location())
	assert.WithinDuration(t, time.Now(), report.Timestamp, 5*time.Second)
}

func TestAnalyzerService_Analyze_NormalScenarioDefaultsPatientID(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	kb := cpic.NewKnowledgeBase()
	analyzer := NewAnalyzerService(logger, kb, NewExplainer(logger, kb, nil, nil, ExplainerConfig{}))

	sample, err := vcf.Sample(vcf.ScenarioNormal)
	require.NoError(t, err)

	report, err := analyzer.Analyze(context.Background(), AnalyzeParams{
		Drug:       "WARFARIN",
		RawContent: sample,
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultPatientID, report.PatientID)
	assert.Equal(t, domain.RiskSafe, report.RiskAssessment.RiskLabel)
	assert.InDelta(t, 1.0, report.RiskAssessment.ConfidenceScore, 1e-9)
	assert.Equal(t, "CYP2C9", report.PharmacogenomicProfile.PrimaryGene)
	assert.Equal(t, "*1/*1", report.PharmacogenomicProfile.Diplotype)
	assert.Equal(t, domain.NormalMetabolizer, report.PharmacogenomicProfile.Phenotype)
	assert.Equal(t, []domain.DetectedVariant{{RSID: "rs1799853", Genotype: "CC"}},
		report.PharmacogenomicProfile.DetectedVariants)
	assert.Equal(t, "Use standard dosing with routine INR monitoring", report.ClinicalRecommendation.Action)
	assert.True(t, report.QualityMetrics.VCFParsingSuccess)
	assert.Equal(t, 1, report.QualityMetrics.VariantsDetected)
}

func TestAnalyzerService_Analyze_UltrarapidScenario(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	kb := cpic.NewKnowledgeBase()
	analyzer := NewAnalyzerService(logger, kb, NewExplainer(logger, kb, nil, nil, ExplainerConfig{}))

	sample, err := vcf.Sample(vcf.ScenarioUltrarapid)
	require.NoError(t, err)

	report, err := analyzer.Analyze(context.Background(), AnalyzeParams{
		PatientID:  "PGX42",
		Drug:       "CLOPIDOGREL",
		RawContent: sample,
	})
	require.NoError(t, err)

	assert.Equal(t, "*17/*17", report.PharmacogenomicProfile.Diplotype)
	assert.Equal(t, domain.RapidMetabolizer, report.PharmacogenomicProfile.Phenotype)
	assert.Equal(t, domain.RiskSafe, report.RiskAssessment.RiskLabel)
	assert.Equal(t, []domain.DetectedVariant{{RSID: "rs12248560", Genotype: "TT"}},
		report.PharmacogenomicProfile.DetectedVariants)
}

func TestAnalyzerService_Analyze_UnsupportedDrug(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	kb := cpic.NewKnowledgeBase()
	analyzer := NewAnalyzerService(logger, kb, NewExplainer(logger, kb, nil, nil, ExplainerConfig{}))

	sample, err := vcf.Sample(vcf.ScenarioNormal)
	require.NoError(t, err)

	report, err := analyzer.Analyze(context.Background(), AnalyzeParams{
		PatientID:  "PGX42",
		Drug:       "aspirin",
		RawContent: sample,
	})
	require.NoError(t, err)

	assert.Equal(t, "ASPIRIN", report.Drug)
	assert.Equal(t, domain.RiskLabelError, report.RiskAssessment.RiskLabel)
	assert.Equal(t, domain.SeverityNone, report.RiskAssessment.Severity)
	assert.InDelta(t, domain.ConfidenceFloor, report.RiskAssessment.ConfidenceScore, 1e-9)

	assert.Equal(t, "Unknown", report.PharmacogenomicProfile.PrimaryGene)
	assert.Equal(t, "Unknown", report.PharmacogenomicProfile.Diplotype)
	assert.Equal(t, domain.PhenotypeUnknown, report.PharmacogenomicProfile.Phenotype)
	assert.Equal(t, []domain.DetectedVariant{{RSID: "Not detected", Genotype: "N/A"}},
		report.PharmacogenomicProfile.DetectedVariants)

	assert.Contains(t, report.ClinicalRecommendation.Action, "Drug 'ASPIRIN' is not supported")
	assert.Empty(t, report.ClinicalRecommendation.AlternativeSuggestion)
	assert.Equal(t, "https://cpicpgx.org/", report.ClinicalRecommendation.CPICGuidelineLink)
	assert.Equal(t, "Consult your healthcare provider", report.PatientAdvice.BestMedicineSuggestion)
	assert.Equal(t, "Discussion Point: ASPIRIN", report.SmartPatientGuidance.DoctorDiscussionCard.CardTitle)
	assert.Equal(t, report.ClinicalRecommendation.Action, report.LLMExplanation.Summary)

	// The genome content is never parsed for an unsupported drug.
	assert.False(t, report.QualityMetrics.VCFParsingSuccess)
	assert.Equal(t, 0, report.QualityMetrics.VariantsDetected)
	assert.Equal(t, domain.ExplanationSourceTemplate, report.QualityMetrics.ExplanationSource)
}

func TestAnalyzerService_Analyze_UnparsableContent(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	kb := cpic.NewKnowledgeBase()
	analyzer := NewAnalyzerService(logger, kb, NewExplainer(logger, kb, nil, nil, ExplainerConfig{}))

	report, err := analyzer.Analyze(context.Background(), AnalyzeParams{
		PatientID:  "PGX42",
		Drug:       "CODEINE",
		RawContent: []byte("this is not genome data\njust plain text\n"),
	})
	require.NoError(t, err)

	assert.False(t, report.QualityMetrics.VCFParsingSuccess)
	assert.Equal(t, 0, report.QualityMetrics.VariantsDetected)
	assert.Equal(t, "*1/*1", report.PharmacogenomicProfile.Diplotype)
	assert.Equal(t, domain.NormalMetabolizer, report.PharmacogenomicProfile.Phenotype)
	assert.Equal(t, domain.RiskSafe, report.RiskAssessment.RiskLabel)
	assert.InDelta(t, 0.5, report.RiskAssessment.ConfidenceScore, 1e-9)
	assert.Equal(t, []domain.DetectedVariant{{RSID: "Not detected", Genotype: "N/A"}},
		report.PharmacogenomicProfile.DetectedVariants)
}

func TestAnalyzerService_Analyze_ProviderPath(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	kb := cpic.NewKnowledgeBase()
	gen := &scriptedGenerator{reply: wellFormedReply, available: true}
	analyzer := NewAnalyzerService(logger, kb, NewExplainer(logger, kb, gen, nil, ExplainerConfig{}))

	sample, err := vcf.Sample(vcf.ScenarioPoorMetabolizer)
	require.NoError(t, err)

	report, err := analyzer.Analyze(context.Background(), AnalyzeParams{
		PatientID:  "PGX42",
		Drug:       "CODEINE",
		RawContent: sample,
		UseLLM:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, domain.ExplanationSourceLLM, report.QualityMetrics.ExplanationSource)
	assert.Contains(t, report.LLMExplanation.Summary, "cannot convert codeine into morphine")
	assert.Equal(t, "Consider Morphine", report.PatientAdvice.BestMedicineSuggestion)
	assert.Equal(t, domain.RiskToxic, report.RiskAssessment.RiskLabel, "verdict is independent of the narrative path")
}

func TestAssemble(t *testing.T) {
	risk := domain.RiskBlock{
		Label:        domain.RiskToxic,
		Severity:     domain.SeverityCritical,
		Confidence:   1.0,
		Action:       "action",
		Alternative:  "alternative",
		GuidelineURL: "https://example.org/guideline",
	}
	bundle := domain.ExplanationBundle{
		Summary:             "summary",
		PatientSummary:      "patient summary",
		BestMedicine:        "best medicine",
		DoctorTalkingPoints: []string{"one", "two"},
		CardTitle:           "title",
		CardContent:         "content",
		Source:              domain.ExplanationSourceTemplate,
	}

	t.Run("Echoes_Matched_Calls", func(t *testing.T) {
		matched := []domain.GenotypeCall{
			{RSID: "rs3892097", Genotype: "AG", Zygosity: domain.Het},
			{RSID: "rs1065852", Genotype: "TT", Zygosity: domain.HomAlt},
		}

		report := Assemble(AssembleParams{
			PatientID:      "PGX42",
			Drug:           "CODEINE",
			Gene:           "CYP2D6",
			Diplotype:      "*4/*10",
			Phenotype:      domain.PoorMetabolizer,
			Matched:        matched,
			Risk:           risk,
			Bundle:         bundle,
			ParseSucceeded: true,
		})

		assert.Equal(t, []domain.DetectedVariant{
			{RSID: "rs3892097", Genotype: "AG"},
			{RSID: "rs1065852", Genotype: "TT"},
		}, report.PharmacogenomicProfile.DetectedVariants)
		assert.Equal(t, 2, report.QualityMetrics.VariantsDetected)
		assert.Equal(t, risk.Action, report.ClinicalRecommendation.Action)
		assert.Equal(t, bundle.CardTitle, report.SmartPatientGuidance.DoctorDiscussionCard.CardTitle)
		assert.NoError(t, report.Validate())
	})

	t.Run("Placeholder_When_Nothing_Matched", func(t *testing.T) {
		report := Assemble(AssembleParams{
			PatientID:      "PGX42",
			Drug:           "CODEINE",
			Gene:           "CYP2D6",
			Diplotype:      "*1/*1",
			Phenotype:      domain.NormalMetabolizer,
			Risk:           risk,
			Bundle:         bundle,
			ParseSucceeded: false,
		})

		assert.Equal(t, []domain.DetectedVariant{{RSID: "Not detected", Genotype: "N/A"}},
			report.PharmacogenomicProfile.DetectedVariants)
		assert.Equal(t, 0, report.QualityMetrics.VariantsDetected)
		assert.False(t, report.QualityMetrics.VCFParsingSuccess)
	})
}
