package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/cpic"
	"github.com/pgx-risk-server/internal/domain"
)

// Confidence penalties applied to the full score. Both firing together still
// lands above the floor.
const (
	penaltyNoEvidence       = 0.5
	penaltyUnknownPhenotype = 0.3
)

// RiskEngine turns a resolved phenotype into the clinical verdict for one
// drug using the CPIC risk rule tables.
type RiskEngine struct {
	logger *logrus.Logger
	kb     *cpic.KnowledgeBase
}

// NewRiskEngine creates a new risk engine.
func NewRiskEngine(logger *logrus.Logger, kb *cpic.KnowledgeBase) *RiskEngine {
	return &RiskEngine{
		logger: logger,
		kb:     kb,
	}
}

// Determine returns the verdict for a drug-phenotype pair. The lookup is
// total: a drug outside the guideline tables yields the Error-labeled
// verdict as a normal reportable outcome, never an error return.
func (e *RiskEngine) Determine(drug string, phenotype domain.Phenotype, matched []domain.GenotypeCall) domain.RiskBlock {
	gene, supported := e.kb.GeneForDrug(drug)
	if !supported {
		e.logger.WithField("drug", drug).Warn("Unsupported drug, emitting Error verdict")
		return domain.RiskBlock{
			Label:        domain.RiskLabelError,
			Severity:     domain.SeverityNone,
			Confidence:   domain.ConfidenceFloor,
			Action:       e.unsupportedDrugAction(drug),
			GuidelineURL: "https://cpicpgx.org/",
		}
	}

	rule := e.kb.RiskRuleFor(gene, phenotype)
	verdict := domain.RiskBlock{
		Label:        rule.Label,
		Severity:     rule.Severity,
		Confidence:   confidenceScore(phenotype, matched),
		Action:       rule.Action,
		Alternative:  rule.Alternative,
		GuidelineURL: rule.GuidelineURL,
	}

	e.logger.WithFields(logrus.Fields{
		"drug":      drug,
		"gene":      gene.String(),
		"phenotype": string(phenotype),
	}).WithFields(logrus.Fields(verdict.LogFields())).Debug("Risk verdict determined")

	return verdict
}

// unsupportedDrugAction names the rejected drug and lists the supported set,
// so the report is actionable without a round trip to the drug listing.
func (e *RiskEngine) unsupportedDrugAction(drug string) string {
	return fmt.Sprintf("Drug '%s' is not supported. Supported drugs: %s",
		strings.TrimSpace(drug), strings.Join(e.kb.SupportedDrugs(), ", "))
}

// confidenceScore starts at full confidence and applies the evidence
// penalties: no observed panel positions, then an unresolvable phenotype.
// The result never leaves [ConfidenceFloor, ConfidenceFull].
func confidenceScore(phenotype domain.Phenotype, matched []domain.GenotypeCall) float64 {
	confidence := domain.ConfidenceFull
	if len(matched) == 0 {
		confidence -= penaltyNoEvidence
	}
	if phenotype == domain.PhenotypeUnknown {
		confidence -= penaltyUnknownPhenotype
	}
	if confidence < domain.ConfidenceFloor {
		confidence = domain.ConfidenceFloor
	}
	return confidence
}
