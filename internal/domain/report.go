package domain

import (
	"fmt"
	"time"
)

// Confidence score bounds for risk assessments. Scores start at full
// confidence and are penalized for missing or unresolvable genotype data,
// never dropping below the floor.
const (
	ConfidenceFloor = 0.1
	ConfidenceFull  = 1.0
)

// Explanation sources recorded in report quality metrics.
const (
	ExplanationSourceLLM      = "llm"
	ExplanationSourceTemplate = "template"
)

// RiskAssessment is the clinical verdict block of an analysis report.
type RiskAssessment struct {
	RiskLabel       RiskLabel `json:"risk_label"`
	ConfidenceScore float64   `json:"confidence_score"`
	Severity        Severity  `json:"severity"`
}

// DetectedVariant is one patient variant echoed into the report.
type DetectedVariant struct {
	RSID     string `json:"rsid"`
	Genotype string `json:"genotype"`
}

// PharmacogenomicProfile summarizes the genetic findings behind a verdict.
// PrimaryGene is a plain string so error reports can carry "Unknown".
type PharmacogenomicProfile struct {
	PrimaryGene      string            `json:"primary_gene"`
	Diplotype        string            `json:"diplotype"`
	Phenotype        Phenotype         `json:"phenotype"`
	DetectedVariants []DetectedVariant `json:"detected_variants"`
}

// ClinicalRecommendation carries the prescriber-facing guidance.
type ClinicalRecommendation struct {
	Action                string `json:"action"`
	AlternativeSuggestion string `json:"alternative_suggestion"`
	CPICGuidelineLink     string `json:"cpic_guideline_link"`
}

// PatientAdvice carries the patient-facing guidance.
type PatientAdvice struct {
	PatientFriendlySummary string   `json:"patient_friendly_summary"`
	BestMedicineSuggestion string   `json:"best_medicine_suggestion"`
	DoctorTalkingPoints    []string `json:"doctor_talking_points"`
}

// LLMExplanation is the narrative explanation block. Summary is always
// populated, from the language model when available and from deterministic
// templates otherwise.
type LLMExplanation struct {
	Summary string `json:"summary"`
}

// DoctorDiscussionCard is a printable one-card prompt the patient can bring
// to an appointment.
type DoctorDiscussionCard struct {
	CardTitle   string `json:"card_title"`
	CardContent string `json:"card_content"`
}

// SmartPatientGuidance wraps patient conversation aids.
type SmartPatientGuidance struct {
	DoctorDiscussionCard DoctorDiscussionCard `json:"doctor_discussion_card"`
}

// QualityMetrics records provenance flags consumers use to judge how much
// weight to give the report.
type QualityMetrics struct {
	VCFParsingSuccess bool   `json:"vcf_parsing_success"`
	VariantsDetected  int    `json:"variants_detected"`
	ExplanationSource string `json:"explanation_source"`
}

// AnalysisReport is the complete result of one drug-genome analysis. It is
// assembled once, serialized to the caller, and never persisted.
type AnalysisReport struct {
	PatientID              string                 `json:"patient_id"`
	Drug                   string                 `json:"drug"`
	Timestamp              time.Time              `json:"timestamp"`
	RiskAssessment         RiskAssessment         `json:"risk_assessment"`
	PharmacogenomicProfile PharmacogenomicProfile `json:"pharmacogenomic_profile"`
	ClinicalRecommendation ClinicalRecommendation `json:"clinical_recommendation"`
	PatientAdvice          PatientAdvice          `json:"patient_advice"`
	LLMExplanation         LLMExplanation         `json:"llm_generated_explanation"`
	SmartPatientGuidance   SmartPatientGuidance   `json:"smart_patient_guidance"`
	QualityMetrics         QualityMetrics         `json:"quality_metrics"`
}

// Validate checks report integrity before it leaves the assembler.
func (r *AnalysisReport) Validate() error {
	if r.Drug == "" {
		return fmt.Errorf("report validation: drug is required")
	}
	if !r.RiskAssessment.RiskLabel.IsValid() {
		return fmt.Errorf("report validation: %w: %q", ErrInvalidRiskLabel, r.RiskAssessment.RiskLabel)
	}
	if !r.RiskAssessment.Severity.IsValid() {
		return fmt.Errorf("report validation: %w: %q", ErrInvalidSeverity, r.RiskAssessment.Severity)
	}
	if r.RiskAssessment.ConfidenceScore < ConfidenceFloor || r.RiskAssessment.ConfidenceScore > ConfidenceFull {
		return fmt.Errorf("report validation: confidence %.2f outside [%.1f, %.1f]",
			r.RiskAssessment.ConfidenceScore, ConfidenceFloor, ConfidenceFull)
	}
	if !r.PharmacogenomicProfile.Phenotype.IsValid() {
		return fmt.Errorf("report validation: %w: %q", ErrInvalidPhenotype, r.PharmacogenomicProfile.Phenotype)
	}
	return nil
}

// RiskBlock is the determined clinical verdict for one drug-profile pair,
// handed from the risk stage to the report assembler.
type RiskBlock struct {
	Label        RiskLabel
	Severity     Severity
	Confidence   float64
	Action       string
	Alternative  string
	GuidelineURL string
}

// LogFields returns structured logging fields for the verdict.
func (b RiskBlock) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"risk_label": string(b.Label),
		"severity":   string(b.Severity),
		"confidence": b.Confidence,
	}
}

// ExplanationBundle is the narrative content produced by the explanation
// stage, from either the language model or the deterministic templates.
type ExplanationBundle struct {
	Summary             string
	PatientSummary      string
	BestMedicine        string
	DoctorTalkingPoints []string
	CardTitle           string
	CardContent         string
	Source              string
}

// AnalysisRequest is the validated input to one analysis run.
type AnalysisRequest struct {
	PatientID  string
	Drug       string
	RawContent []byte
}

// Validate ensures the request can be analyzed.
func (r *AnalysisRequest) Validate() error {
	if r.Drug == "" {
		return fmt.Errorf("analysis request validation: drug is required")
	}
	if len(r.RawContent) == 0 {
		return fmt.Errorf("analysis request validation: genome file content is required")
	}
	return nil
}
