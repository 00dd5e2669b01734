package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/cpic"
	"github.com/pgx-risk-server/internal/domain"
	"github.com/pgx-risk-server/pkg/external"
)

const (
	defaultExplainMaxTokens   = 600
	defaultExplainTemperature = 0.2

	// maxTalkingPoints caps doctor talking points on both paths.
	maxTalkingPoints = 3
)

const explainSystemPrompt = "You are a clinical pharmacogenomics expert. " +
	"Provide concise, accurate, patient-safe explanations aligned with CPIC."

// replySections are the labeled sections a provider reply must carry, in the
// order the prompt requests them.
var replySections = []string{"SUMMARY", "PATIENT_SUMMARY", "TALKING_POINTS", "CARD_TITLE", "CARD_CONTENT"}

var errMissingSection = errors.New("provider reply is missing a required section")

// geneDescriptions are the plain-language mechanism sentences used by the
// template summary.
var geneDescriptions = map[domain.Gene]string{
	domain.CYP2D6:  "an enzyme responsible for metabolizing about 25% of commonly prescribed drugs",
	domain.CYP2C19: "an enzyme involved in activating or metabolizing many drugs including clopidogrel and proton pump inhibitors",
	domain.CYP2C9:  "an enzyme that metabolizes warfarin and other drugs",
	domain.SLCO1B1: "a transporter protein that affects statin uptake and efficacy",
	domain.TPMT:    "an enzyme that metabolizes thiopurine drugs used in immunosuppression",
	domain.DPYD:    "an enzyme responsible for metabolizing fluorouracil and other fluoropyrimidines",
}

const genericGeneDescription = "a drug-metabolizing enzyme"

// riskGuidance closes the template summary with the label's clinical stance.
var riskGuidance = map[domain.RiskLabel]string{
	domain.RiskSafe:         "Standard dosing is generally appropriate.",
	domain.RiskAdjustDosage: "Dose adjustment and closer monitoring are recommended.",
	domain.RiskToxic:        "Avoid standard dosing due to elevated adverse effect risk.",
	domain.RiskIneffective:  "Consider alternatives because therapeutic effect may be reduced.",
}

const genericGuidance = "Clinical review is advised."

// ExplainerConfig tunes the language-model path of the explanation stage.
type ExplainerConfig struct {
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// ExplainInput carries one verdict into the explanation stage. Drug is the
// normalized uppercase name.
type ExplainInput struct {
	Gene      domain.Gene
	Diplotype string
	Phenotype domain.Phenotype
	Drug      string
	Risk      domain.RiskBlock
	UseLLM    bool
}

func (in ExplainInput) cacheKey() ExplanationKey {
	return ExplanationKey{
		Gene:      in.Gene,
		Diplotype: in.Diplotype,
		Phenotype: in.Phenotype,
		Drug:      in.Drug,
		RiskLabel: in.Risk.Label,
	}
}

// Explainer produces the narrative bundle for a verdict. It prefers a single
// bounded language-model completion and falls back to deterministic
// CPIC-aligned templates on any failure, so callers always receive a
// complete bundle and never an error.
type Explainer struct {
	logger    *logrus.Logger
	kb        *cpic.KnowledgeBase
	generator external.TextGenerator
	cache     *ExplanationCache
	config    ExplainerConfig
}

// NewExplainer creates a new explainer. Both generator and cache may be nil,
// which pins every bundle to the template path.
func NewExplainer(logger *logrus.Logger, kb *cpic.KnowledgeBase, generator external.TextGenerator, cache *ExplanationCache, config ExplainerConfig) *Explainer {
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultExplainMaxTokens
	}
	if config.Temperature <= 0 {
		config.Temperature = defaultExplainTemperature
	}
	return &Explainer{
		logger:    logger,
		kb:        kb,
		generator: generator,
		cache:     cache,
		config:    config,
	}
}

// Explain returns the narrative bundle for the verdict. The provider gets
// exactly one attempt per call: timeouts, open breakers, provider errors,
// and malformed replies all transition silently to the templates. A cache
// hit counts as the provider path without spending the attempt.
func (e *Explainer) Explain(ctx context.Context, in ExplainInput) domain.ExplanationBundle {
	if in.UseLLM && e.generator != nil && e.generator.Available() {
		if bundle, ok := e.completeWithProvider(ctx, in); ok {
			return bundle
		}
	}
	return e.templateBundle(in)
}

func (e *Explainer) completeWithProvider(ctx context.Context, in ExplainInput) (domain.ExplanationBundle, bool) {
	key := in.cacheKey()
	if e.cache != nil {
		if bundle, ok := e.cache.Get(ctx, key); ok {
			return bundle, true
		}
	}

	reply, err := e.generator.Complete(ctx, external.CompletionRequest{
		System:      explainSystemPrompt,
		Prompt:      buildExplanationPrompt(in),
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.Temperature,
	})
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"provider": e.generator.Name(),
			"drug":     in.Drug,
		}).Warn("Provider completion failed, falling back to template explanation")
		return domain.ExplanationBundle{}, false
	}

	bundle, err := parseProviderReply(reply)
	if err != nil {
		e.logger.WithError(err).WithField("provider", e.generator.Name()).
			Warn("Malformed provider reply, falling back to template explanation")
		return domain.ExplanationBundle{}, false
	}

	bundle.BestMedicine = e.bestMedicineSuggestion(in)
	bundle.Source = domain.ExplanationSourceLLM

	if e.cache != nil {
		e.cache.Set(ctx, key, bundle)
	}
	return bundle, true
}

// buildExplanationPrompt renders the verdict facts plus the strict reply
// contract. One prompt covers every narrative field of the report.
func buildExplanationPrompt(in ExplainInput) string {
	alternative := in.Risk.Alternative
	if alternative == "" {
		alternative = "None"
	}

	var b strings.Builder
	b.WriteString("Patient pharmacogenomic result:\n")
	fmt.Fprintf(&b, "Gene: %s\n", in.Gene)
	fmt.Fprintf(&b, "Diplotype: %s\n", in.Diplotype)
	fmt.Fprintf(&b, "Phenotype: %s\n", in.Phenotype)
	fmt.Fprintf(&b, "Drug: %s\n", in.Drug)
	fmt.Fprintf(&b, "Risk: %s\n", in.Risk.Label)
	fmt.Fprintf(&b, "Severity: %s\n", in.Risk.Severity)
	fmt.Fprintf(&b, "Recommendation: %s\n", in.Risk.Action)
	fmt.Fprintf(&b, "Alternative: %s\n", alternative)
	b.WriteString("\nReply with exactly these labeled sections:\n")
	b.WriteString("SUMMARY: the mechanism, why this genotype maps to this risk, and the CPIC-aligned clinical implication, in at most four sentences.\n")
	b.WriteString("PATIENT_SUMMARY: two plain-language sentences for the patient.\n")
	b.WriteString("TALKING_POINTS: up to three short points for the patient to raise with their doctor, one per line, each starting with \"- \".\n")
	b.WriteString("CARD_TITLE: a short title for a doctor discussion card.\n")
	b.WriteString("CARD_CONTENT: two or three sentences the patient can read to their doctor.\n")
	return b.String()
}

// parseProviderReply splits a reply into its labeled sections. Every section
// must be present and non-empty; anything else is a malformed reply and the
// caller falls back to the templates.
func parseProviderReply(reply string) (domain.ExplanationBundle, error) {
	sections := make(map[string][]string, len(replySections))
	current := ""
	for _, raw := range strings.Split(reply, "\n") {
		line := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), "#*"))
		if label, rest, ok := splitSectionLabel(line); ok {
			current = label
			if rest != "" {
				sections[current] = append(sections[current], rest)
			}
			continue
		}
		if current == "" || line == "" {
			continue
		}
		sections[current] = append(sections[current], line)
	}

	bundle := domain.ExplanationBundle{
		Summary:        strings.Join(sections["SUMMARY"], " "),
		PatientSummary: strings.Join(sections["PATIENT_SUMMARY"], " "),
		CardTitle:      strings.Join(sections["CARD_TITLE"], " "),
		CardContent:    strings.Join(sections["CARD_CONTENT"], " "),
	}
	for _, line := range sections["TALKING_POINTS"] {
		point := strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if point == "" {
			continue
		}
		bundle.DoctorTalkingPoints = append(bundle.DoctorTalkingPoints, point)
		if len(bundle.DoctorTalkingPoints) == maxTalkingPoints {
			break
		}
	}

	switch {
	case bundle.Summary == "":
		return domain.ExplanationBundle{}, fmt.Errorf("%w: SUMMARY", errMissingSection)
	case bundle.PatientSummary == "":
		return domain.ExplanationBundle{}, fmt.Errorf("%w: PATIENT_SUMMARY", errMissingSection)
	case len(bundle.DoctorTalkingPoints) == 0:
		return domain.ExplanationBundle{}, fmt.Errorf("%w: TALKING_POINTS", errMissingSection)
	case bundle.CardTitle == "":
		return domain.ExplanationBundle{}, fmt.Errorf("%w: CARD_TITLE", errMissingSection)
	case bundle.CardContent == "":
		return domain.ExplanationBundle{}, fmt.Errorf("%w: CARD_CONTENT", errMissingSection)
	}
	return bundle, nil
}

func splitSectionLabel(line string) (string, string, bool) {
	for _, label := range replySections {
		if strings.HasPrefix(line, label+":") {
			rest := strings.TrimPrefix(line, label+":")
			rest = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(rest), "*"))
			return label, rest, true
		}
	}
	return "", "", false
}

// templateBundle renders the deterministic fallback. It is total: every
// (phenotype, risk label) pair yields complete non-empty content.
func (e *Explainer) templateBundle(in ExplainInput) domain.ExplanationBundle {
	return domain.ExplanationBundle{
		Summary:             templateSummary(in),
		PatientSummary:      templatePatientSummary(in),
		BestMedicine:        e.bestMedicineSuggestion(in),
		DoctorTalkingPoints: templateTalkingPoints(in),
		CardTitle:           fmt.Sprintf("Discussion Point: %s and %s", in.Drug, in.Gene),
		CardContent:         templateCardContent(in),
		Source:              domain.ExplanationSourceTemplate,
	}
}

func templateSummary(in ExplainInput) string {
	description, ok := geneDescriptions[in.Gene]
	if !ok {
		description = genericGeneDescription
	}
	guidance, ok := riskGuidance[in.Risk.Label]
	if !ok {
		guidance = genericGuidance
	}
	return fmt.Sprintf(
		"The %s gene encodes %s. The diplotype %s maps to the %s phenotype (%s), which supports a %s assessment for %s under CPIC guidelines. %s",
		in.Gene, description, in.Diplotype, in.Phenotype, in.Phenotype.ActivityDescription(),
		in.Risk.Label, in.Drug, guidance)
}

func templatePatientSummary(in ExplainInput) string {
	switch in.Risk.Label {
	case domain.RiskSafe:
		return fmt.Sprintf("Good news! Based on your %s gene analysis, your body processes %s normally. You can take this medication as prescribed by your doctor.", in.Gene, in.Drug)
	case domain.RiskAdjustDosage:
		return fmt.Sprintf("Based on your %s gene analysis, your body processes %s differently than average. Your doctor may need to adjust your dose for best results.", in.Gene, in.Drug)
	case domain.RiskToxic:
		return fmt.Sprintf("Warning: Your %s gene analysis shows you may be at risk for serious side effects from %s. It's important to discuss alternative medications with your doctor.", in.Gene, in.Drug)
	case domain.RiskIneffective:
		return fmt.Sprintf("Based on your %s gene analysis, %s may not work well for you. Your doctor may want to consider a different medication.", in.Gene, in.Drug)
	default:
		return fmt.Sprintf("Your %s gene analysis shows a %s phenotype for %s. Please consult your healthcare provider.", in.Gene, in.Phenotype, in.Drug)
	}
}

func templateTalkingPoints(in ExplainInput) []string {
	points := []string{
		fmt.Sprintf("Pharmacogenomic testing shows %s for %s gene", in.Phenotype, in.Gene),
		fmt.Sprintf("CPIC guidelines recommend considering this result when prescribing %s", in.Drug),
	}
	switch in.Risk.Label {
	case domain.RiskToxic:
		points = append(points,
			alternativePoint(in.Risk.Alternative),
			"Recommended: Avoid standard dosing due to toxicity risk",
			"Consider genetic-guided dose reduction or alternative therapy")
	case domain.RiskIneffective:
		points = append(points,
			alternativePoint(in.Risk.Alternative),
			"Patient may not achieve therapeutic response at standard doses",
			"Consider therapeutic drug monitoring")
	case domain.RiskAdjustDosage:
		points = append(points,
			"Dose adjustment may be needed based on genotype",
			"Consider starting at lower end of dose range",
			"Therapeutic drug monitoring recommended")
	default:
		points = append(points,
			"Standard dosing appropriate",
			"No specific genotype-guided adjustments needed")
	}
	if len(points) > maxTalkingPoints {
		points = points[:maxTalkingPoints]
	}
	return points
}

func alternativePoint(alternative string) string {
	if alternative == "" {
		return "Consider alternative medication"
	}
	return "Consider alternative: " + alternative
}

func templateCardContent(in ExplainInput) string {
	alternative := in.Risk.Alternative
	if alternative == "" {
		alternative = "an alternative"
	}
	points := []string{
		fmt.Sprintf("My PGx result indicates %s status for %s.", in.Phenotype, in.Gene),
		fmt.Sprintf("My report labels %s as %s risk for me.", in.Drug, in.Risk.Label),
		fmt.Sprintf("Should we consider %s and a genotype-informed plan?", alternative),
		"What monitoring strategy do you recommend if this drug is continued?",
	}
	var b strings.Builder
	for i, point := range points {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(point)
	}
	return b.String()
}

// bestMedicineSuggestion is deterministic on both explanation paths: the
// drug's first ranked alternative when the verdict calls for switching,
// otherwise reassurance that the current medication fits the profile.
func (e *Explainer) bestMedicineSuggestion(in ExplainInput) string {
	if in.Risk.Label.RequiresAlternative() {
		if alternatives := e.kb.Alternatives(in.Drug); len(alternatives) > 0 {
			return "Consider " + alternatives[0]
		}
		return "Consider alternative medication"
	}
	return "Current medication is appropriate for your genetic profile"
}

// unsupportedBundle is the deterministic bundle for Error-labeled reports.
// There is no genotype to narrate, so the provider path is never taken.
func (e *Explainer) unsupportedBundle(drug string, risk domain.RiskBlock) domain.ExplanationBundle {
	return domain.ExplanationBundle{
		Summary:        risk.Action,
		PatientSummary: fmt.Sprintf("Pharmacogenomic guidance is not available for %s. Please discuss this medication with your healthcare provider.", drug),
		BestMedicine:   "Consult your healthcare provider",
		DoctorTalkingPoints: []string{
			fmt.Sprintf("%s is not in the pharmacogenomic guideline panel", drug),
			"Prescribing decisions for this medication follow standard clinical practice",
		},
		CardTitle: "Discussion Point: " + drug,
		CardContent: fmt.Sprintf("- My report could not provide pharmacogenomic guidance for %s.\n- Should we review this prescription using standard clinical guidance?",
			drug),
		Source: domain.ExplanationSourceTemplate,
	}
}
