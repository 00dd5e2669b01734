package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/cpic"
	"github.com/pgx-risk-server/internal/domain"
	"github.com/pgx-risk-server/pkg/vcf"
)

// DefaultPatientID is used when a request does not name the patient.
const DefaultPatientID = "PATIENT_001"

// unknownField fills profile fields of Error-labeled reports.
const unknownField = "Unknown"

// AnalyzerService runs the complete drug-genome analysis workflow: extract
// genotype calls, resolve the diplotype, determine the verdict, narrate it,
// and assemble the report. It holds no per-request state and is safe for
// unlimited concurrent use.
type AnalyzerService struct {
	logger    *logrus.Logger
	kb        *cpic.KnowledgeBase
	extractor *vcf.Extractor
	resolver  *DiplotypeResolver
	risk      *RiskEngine
	explainer *Explainer
}

// NewAnalyzerService creates a new analyzer service.
func NewAnalyzerService(logger *logrus.Logger, kb *cpic.KnowledgeBase, explainer *Explainer) *AnalyzerService {
	return &AnalyzerService{
		logger:    logger,
		kb:        kb,
		extractor: vcf.NewExtractor(),
		resolver:  NewDiplotypeResolver(logger, kb),
		risk:      NewRiskEngine(logger, kb),
		explainer: explainer,
	}
}

// AnalyzeParams are the inputs to one analysis run.
type AnalyzeParams struct {
	PatientID  string
	Drug       string
	RawContent []byte
	UseLLM     bool
}

// Analyze produces the report for one patient-drug pair. Structurally valid
// input always yields a complete report: an unsupported drug and unparsable
// genome content are reportable outcomes, not errors. The only error return
// is an assembled report failing its own integrity checks.
func (s *AnalyzerService) Analyze(ctx context.Context, params AnalyzeParams) (*domain.AnalysisReport, error) {
	startTime := time.Now()

	patientID := params.PatientID
	if patientID == "" {
		patientID = DefaultPatientID
	}
	drug := strings.ToUpper(strings.TrimSpace(params.Drug))

	s.logger.WithFields(logrus.Fields{
		"patient_id": patientID,
		"drug":       drug,
		"use_llm":    params.UseLLM,
	}).Info("Starting pharmacogenomic analysis")

	gene, supported := s.kb.GeneForDrug(drug)
	if !supported {
		return s.finishReport(startTime, s.unsupportedReport(patientID, drug))
	}

	// Step 1: Extract genotype calls at the gene's monitored positions
	calls, parseSucceeded := s.extractor.Extract(params.RawContent, s.kb.VariantIDSet(gene))
	if !parseSucceeded {
		s.logger.WithFields(logrus.Fields{
			"patient_id": patientID,
			"gene":       gene.String(),
		}).Warn("No usable variant records, resolving on reference defaults")
	}

	// Step 2: Resolve the diplotype and phenotype
	profile := s.resolver.Resolve(gene, calls)

	// Step 3: Determine the clinical verdict
	verdict := s.risk.Determine(drug, profile.Phenotype, profile.Matched)

	// Step 4: Generate the narrative bundle
	bundle := s.explainer.Explain(ctx, ExplainInput{
		Gene:      gene,
		Diplotype: profile.Diplotype,
		Phenotype: profile.Phenotype,
		Drug:      drug,
		Risk:      verdict,
		UseLLM:    params.UseLLM,
	})

	// Step 5: Assemble the report
	report := Assemble(AssembleParams{
		PatientID:      patientID,
		Drug:           drug,
		Gene:           gene.String(),
		Diplotype:      profile.Diplotype,
		Phenotype:      profile.Phenotype,
		Matched:        profile.Matched,
		Risk:           verdict,
		Bundle:         bundle,
		ParseSucceeded: parseSucceeded,
	})

	return s.finishReport(startTime, report)
}

// unsupportedReport builds the Error-labeled report for a drug outside the
// guideline tables. The genome content is never parsed on this path: there
// is no gene to resolve against, so the report carries no genomic evidence.
func (s *AnalyzerService) unsupportedReport(patientID, drug string) *domain.AnalysisReport {
	verdict := s.risk.Determine(drug, domain.PhenotypeUnknown, nil)
	bundle := s.explainer.unsupportedBundle(drug, verdict)

	return Assemble(AssembleParams{
		PatientID:      patientID,
		Drug:           drug,
		Gene:           unknownField,
		Diplotype:      unknownField,
		Phenotype:      domain.PhenotypeUnknown,
		Risk:           verdict,
		Bundle:         bundle,
		ParseSucceeded: false,
	})
}

// finishReport validates the assembled report and emits the completion log.
func (s *AnalyzerService) finishReport(startTime time.Time, report *domain.AnalysisReport) (*domain.AnalysisReport, error) {
	if err := report.Validate(); err != nil {
		return nil, fmt.Errorf("assembled report failed validation: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"patient_id":         report.PatientID,
		"drug":               report.Drug,
		"risk_label":         string(report.RiskAssessment.RiskLabel),
		"explanation_source": report.QualityMetrics.ExplanationSource,
		"processing_time":    time.Since(startTime),
	}).Info("Pharmacogenomic analysis completed")

	return report, nil
}

// AssembleParams carries the stage outputs the assembler stitches together.
// Gene is a plain string so Error-labeled reports can carry "Unknown".
type AssembleParams struct {
	PatientID      string
	Drug           string
	Gene           string
	Diplotype      string
	Phenotype      domain.Phenotype
	Matched        []domain.GenotypeCall
	Risk           domain.RiskBlock
	Bundle         domain.ExplanationBundle
	ParseSucceeded bool
}

// Assemble builds the final report from the stage outputs. Pure aggregation:
// it stamps the timestamp, echoes matched calls, and fills the schema, with
// no clinical logic of its own. When no variants matched, the detected list
// carries a single placeholder row so consumers always see the field
// populated.
func Assemble(params AssembleParams) *domain.AnalysisReport {
	detected := make([]domain.DetectedVariant, 0, len(params.Matched))
	for _, call := range params.Matched {
		detected = append(detected, domain.DetectedVariant{
			RSID:     call.RSID,
			Genotype: call.Genotype,
		})
	}
	if len(detected) == 0 {
		detected = append(detected, domain.DetectedVariant{RSID: "Not detected", Genotype: "N/A"})
	}

	return &domain.AnalysisReport{
		PatientID: params.PatientID,
		Drug:      params.Drug,
		Timestamp: time.Now().UTC(),
		RiskAssessment: domain.RiskAssessment{
			RiskLabel:       params.Risk.Label,
			ConfidenceScore: params.Risk.Confidence,
			Severity:        params.Risk.Severity,
		},
		PharmacogenomicProfile: domain.PharmacogenomicProfile{
			PrimaryGene:      params.Gene,
			Diplotype:        params.Diplotype,
			Phenotype:        params.Phenotype,
			DetectedVariants: detected,
		},
		ClinicalRecommendation: domain.ClinicalRecommendation{
			Action:                params.Risk.Action,
			AlternativeSuggestion: params.Risk.Alternative,
			CPICGuidelineLink:     params.Risk.GuidelineURL,
		},
		PatientAdvice: domain.PatientAdvice{
			PatientFriendlySummary: params.Bundle.PatientSummary,
			BestMedicineSuggestion: params.Bundle.BestMedicine,
			DoctorTalkingPoints:    params.Bundle.DoctorTalkingPoints,
		},
		LLMExplanation: domain.LLMExplanation{
			Summary: params.Bundle.Summary,
		},
		SmartPatientGuidance: domain.SmartPatientGuidance{
			DoctorDiscussionCard: domain.DoctorDiscussionCard{
				CardTitle:   params.Bundle.CardTitle,
				CardContent: params.Bundle.CardContent,
			},
		},
		QualityMetrics: domain.QualityMetrics{
			VCFParsingSuccess: params.ParseSucceeded,
			VariantsDetected:  len(params.Matched),
			ExplanationSource: params.Bundle.Source,
		},
	}
}
