// Package domain contains core business entities and types for pharmacogenomic
// drug-risk determination following CPIC (Clinical Pharmacogenetics Implementation
// Consortium) guidelines.
//
// Reference: Relling MV, Klein TE. CPIC: Clinical Pharmacogenetics Implementation
// Consortium of the Pharmacogenomics Research Network. Clin Pharmacol Ther.
// 89(3):464-7. doi: 10.1038/clpt.2010.279
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Gene represents a pharmacogene in the supported six-gene panel.
type Gene string

const (
	CYP2D6  Gene = "CYP2D6"
	CYP2C19 Gene = "CYP2C19"
	CYP2C9  Gene = "CYP2C9"
	SLCO1B1 Gene = "SLCO1B1"
	TPMT    Gene = "TPMT"
	DPYD    Gene = "DPYD"
)

// Phenotype represents the metabolizer class derived from a diplotype.
// The values are the patient-facing names used in reports; the static
// guideline tables use the short codes (PM, IM, NM, RM, URM).
type Phenotype string

const (
	PoorMetabolizer         Phenotype = "Poor Metabolizer"
	IntermediateMetabolizer Phenotype = "Intermediate Metabolizer"
	NormalMetabolizer       Phenotype = "Normal Metabolizer"
	RapidMetabolizer        Phenotype = "Rapid Metabolizer"
	UltrarapidMetabolizer   Phenotype = "Ultrarapid Metabolizer"
	PhenotypeUnknown        Phenotype = "Unknown"
)

// RiskLabel represents the top-level clinical verdict of an analysis.
// RiskLabelError is reserved for unsupported-drug reports and never appears
// in the static risk rule tables.
type RiskLabel string

const (
	RiskSafe         RiskLabel = "Safe"
	RiskAdjustDosage RiskLabel = "Adjust Dosage"
	RiskToxic        RiskLabel = "Toxic"
	RiskIneffective  RiskLabel = "Ineffective"
	RiskLabelError   RiskLabel = "Error"
)

// Severity represents the clinical severity of a risk assessment.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Zygosity describes the observed allele state of a genotype call relative
// to the reference allele at that position.
type Zygosity string

const (
	HomRef          Zygosity = "hom_ref"
	Het             Zygosity = "het"
	HomAlt          Zygosity = "hom_alt"
	ZygosityUnknown Zygosity = "unknown"
)

// AlleleFunction classifies the enzymatic activity of a named star allele.
type AlleleFunction string

const (
	FunctionNone      AlleleFunction = "non-functional"
	FunctionReduced   AlleleFunction = "reduced"
	FunctionNormal    AlleleFunction = "normal"
	FunctionIncreased AlleleFunction = "increased"
)

// Validation errors for clinical data integrity
var (
	ErrNotFound          = errors.New("not found")
	ErrDrugNotSupported  = errors.New("drug not supported")
	ErrInvalidPhenotype  = errors.New("invalid metabolizer phenotype")
	ErrInvalidRiskLabel  = errors.New("invalid risk label")
	ErrInvalidSeverity   = errors.New("invalid severity")
	ErrUnknownSampleData = errors.New("sample scenario unknown")
)

// IsValid reports whether the gene belongs to the supported panel.
func (g Gene) IsValid() bool {
	switch g {
	case CYP2D6, CYP2C19, CYP2C9, SLCO1B1, TPMT, DPYD:
		return true
	default:
		return false
	}
}

// String returns the gene symbol.
func (g Gene) String() string {
	return string(g)
}

// Chromosome returns the GRCh38 chromosome carrying the gene.
func (g Gene) Chromosome() string {
	switch g {
	case CYP2D6:
		return "22"
	case CYP2C19, CYP2C9:
		return "10"
	case SLCO1B1:
		return "12"
	case TPMT:
		return "6"
	case DPYD:
		return "1"
	default:
		return ""
	}
}

// IsValid validates that the phenotype belongs to the closed metabolizer set.
// Critical for ensuring only defined phenotypes reach clinical reporting.
func (p Phenotype) IsValid() bool {
	switch p {
	case PoorMetabolizer, IntermediateMetabolizer, NormalMetabolizer,
		RapidMetabolizer, UltrarapidMetabolizer, PhenotypeUnknown:
		return true
	default:
		return false
	}
}

// String returns the patient-facing phenotype name.
func (p Phenotype) String() string {
	return string(p)
}

// Code returns the short guideline-table code for the phenotype.
func (p Phenotype) Code() string {
	switch p {
	case PoorMetabolizer:
		return "PM"
	case IntermediateMetabolizer:
		return "IM"
	case NormalMetabolizer:
		return "NM"
	case RapidMetabolizer:
		return "RM"
	case UltrarapidMetabolizer:
		return "URM"
	default:
		return "Unknown"
	}
}

// PhenotypeFromCode resolves a guideline-table code to its phenotype.
// Unrecognized codes resolve to PhenotypeUnknown, never an error.
func PhenotypeFromCode(code string) Phenotype {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "PM":
		return PoorMetabolizer
	case "IM":
		return IntermediateMetabolizer
	case "NM":
		return NormalMetabolizer
	case "RM":
		return RapidMetabolizer
	case "URM":
		return UltrarapidMetabolizer
	default:
		return PhenotypeUnknown
	}
}

// ActivityDescription returns a plain-language description of the enzyme
// activity implied by the phenotype, for patient communication.
func (p Phenotype) ActivityDescription() string {
	switch p {
	case PoorMetabolizer:
		return "reduced or absent enzyme activity"
	case IntermediateMetabolizer:
		return "reduced enzyme activity"
	case NormalMetabolizer:
		return "normal enzyme activity"
	case RapidMetabolizer:
		return "increased enzyme activity"
	case UltrarapidMetabolizer:
		return "greatly increased enzyme activity"
	default:
		return "unknown enzyme activity"
	}
}

// LogFields returns structured logging fields for audit trails.
func (p Phenotype) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"phenotype":      string(p),
		"phenotype_code": p.Code(),
		"is_valid":       p.IsValid(),
	}
}

// IsValid validates the risk label against the reportable set.
func (r RiskLabel) IsValid() bool {
	switch r {
	case RiskSafe, RiskAdjustDosage, RiskToxic, RiskIneffective, RiskLabelError:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk label.
func (r RiskLabel) String() string {
	return string(r)
}

// IsRuleLabel reports whether the label may appear in a static risk rule.
// The Error label is a terminal report outcome, never a table entry.
func (r RiskLabel) IsRuleLabel() bool {
	return r.IsValid() && r != RiskLabelError
}

// RequiresAlternative reports whether the verdict calls for suggesting a
// replacement medication to the patient.
func (r RiskLabel) RequiresAlternative() bool {
	return r == RiskToxic || r == RiskIneffective
}

// IsValid validates the severity level.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityNone, SeverityLow, SeverityModerate, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// IsValid validates the zygosity state.
func (z Zygosity) IsValid() bool {
	switch z {
	case HomRef, Het, HomAlt, ZygosityUnknown:
		return true
	default:
		return false
	}
}

// CarriesVariant reports whether the call contributes at least one copy of
// the variant allele.
func (z Zygosity) CarriesVariant() bool {
	return z == Het || z == HomAlt
}

// Rank orders allele function classes by decreasing clinical significance;
// lower rank means more decreased function and higher precedence during
// diplotype slot assignment.
func (f AlleleFunction) Rank() int {
	switch f {
	case FunctionNone:
		return 0
	case FunctionReduced:
		return 1
	case FunctionNormal:
		return 2
	case FunctionIncreased:
		return 3
	default:
		return 4
	}
}

// IsValid validates the allele function class.
func (f AlleleFunction) IsValid() bool {
	return f.Rank() < 4
}

// GenotypeCall is one observed genotype at a monitored position, produced
// per-patient by the variant extractor. Genotype holds the normalized
// observation (see NormalizeGenotype); Zygosity is derived from the record's
// GT indices, not from the bases.
type GenotypeCall struct {
	RSID     string   `json:"rsid"`
	Genotype string   `json:"genotype"`
	Zygosity Zygosity `json:"zygosity"`
}

// NormalizeGenotype renders an observed allele pair in canonical form:
// uppercase, alleles sorted, single-base pairs concatenated ("GA" -> "AG"),
// pairs with a multi-base allele joined with "/" ("T"+"TA" -> "T/TA").
// "AG" and "GA" are the same observation.
func NormalizeGenotype(a, b string) string {
	a = strings.ToUpper(strings.TrimSpace(a))
	b = strings.ToUpper(strings.TrimSpace(b))
	if a > b {
		a, b = b, a
	}
	if len(a) == 1 && len(b) == 1 {
		return a + b
	}
	return a + "/" + b
}

// Validate ensures the call is structurally usable by the resolver.
func (c *GenotypeCall) Validate() error {
	if c.RSID == "" {
		return fmt.Errorf("genotype call validation: %w", errors.New("rsid is required"))
	}
	if c.Genotype == "" {
		return fmt.Errorf("genotype call validation: %w", errors.New("genotype is required"))
	}
	if !c.Zygosity.IsValid() {
		return fmt.Errorf("genotype call validation: %w", errors.New("zygosity out of range"))
	}
	return nil
}
