// Package cpic holds the immutable CPIC knowledge base: the supported
// drug/gene panel, monitored variant positions, star-allele call rules,
// diplotype-to-phenotype tables, and phenotype risk rules.
//
// The knowledge base is constructed once at startup, validated for
// completeness, and then only read. Every lookup is an O(1) map read with no
// I/O, so it is safe for unlimited concurrent readers.
package cpic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pgx-risk-server/internal/domain"
)

// RiskRule is one (gene, phenotype) verdict row: label, severity, prescriber
// action, optional alternative medication, and the CPIC guideline reference.
type RiskRule struct {
	Label        domain.RiskLabel
	Severity     domain.Severity
	Action       string
	Alternative  string
	GuidelineURL string
}

// AlleleCall maps a variant id to a named star allele and its function class.
type AlleleCall struct {
	Gene     domain.Gene
	Allele   string
	Function domain.AlleleFunction
}

// MonitoredVariant is one panel position: id, GRCh38 coordinate, and the
// plus-strand reference/variant bases expected there. Label carries the
// star-allele annotation shown in drug info.
type MonitoredVariant struct {
	RSID     string `json:"rsid"`
	Position int    `json:"position"`
	Ref      string `json:"ref"`
	Alt      string `json:"alt"`
	Label    string `json:"label"`
}

// AllowsGenotype reports whether a normalized genotype observation is
// composed of this position's expected alleles. Anything else is treated as
// an unrecognized observation, never guessed at.
func (m MonitoredVariant) AllowsGenotype(genotype string) bool {
	for _, valid := range [][2]string{{m.Ref, m.Ref}, {m.Ref, m.Alt}, {m.Alt, m.Alt}} {
		if genotype == domain.NormalizeGenotype(valid[0], valid[1]) {
			return true
		}
	}
	return false
}

// ReferenceGenotype returns the normalized homozygous-reference observation
// for this position, used when a position is unmeasured.
func (m MonitoredVariant) ReferenceGenotype() string {
	return domain.NormalizeGenotype(m.Ref, m.Ref)
}

// Guideline is one gene's CPIC table set, keyed by its reference drug. The
// gene's other drugs resolve through the same table.
type Guideline struct {
	Gene          domain.Gene
	ReferenceDrug string
	Diplotypes    map[string]domain.Phenotype
	Risk          map[domain.Phenotype]RiskRule
}

// KnowledgeBase bundles the static tables behind lookup methods.
type KnowledgeBase struct {
	drugGene      map[string]domain.Gene
	guidelines    map[domain.Gene]*Guideline
	alleleCalls   map[string]AlleleCall
	monitored     map[domain.Gene][]MonitoredVariant
	monitoredByID map[string]MonitoredVariant
	alternatives  map[string][]string
	drugs         []string
	genes         []domain.Gene
}

// NewKnowledgeBase loads the static tables. Call Validate before serving;
// table defects are startup faults, not per-request conditions.
func NewKnowledgeBase() *KnowledgeBase {
	kb := &KnowledgeBase{
		drugGene:     drugGeneTable(),
		guidelines:   guidelineTable(),
		alleleCalls:  alleleCallTable(),
		monitored:    monitoredVariantTable(),
		alternatives: alternativeDrugTable(),
	}

	kb.monitoredByID = make(map[string]MonitoredVariant)
	for _, variants := range kb.monitored {
		for _, mv := range variants {
			kb.monitoredByID[mv.RSID] = mv
		}
	}

	kb.drugs = make([]string, 0, len(kb.drugGene))
	for drug := range kb.drugGene {
		kb.drugs = append(kb.drugs, drug)
	}
	sort.Strings(kb.drugs)

	kb.genes = make([]domain.Gene, 0, len(kb.guidelines))
	for gene := range kb.guidelines {
		kb.genes = append(kb.genes, gene)
	}
	sort.Slice(kb.genes, func(i, j int) bool { return kb.genes[i] < kb.genes[j] })

	return kb
}

// GeneForDrug resolves a drug name (case-insensitive) to its primary gene.
// The false return is the NotSupported signal, not an error.
func (kb *KnowledgeBase) GeneForDrug(drug string) (domain.Gene, bool) {
	gene, ok := kb.drugGene[normalizeDrug(drug)]
	return gene, ok
}

// IsSupported reports whether the drug is covered by the guideline tables.
func (kb *KnowledgeBase) IsSupported(drug string) bool {
	_, ok := kb.drugGene[normalizeDrug(drug)]
	return ok
}

// GuidelineFor returns the gene's guideline table set.
func (kb *KnowledgeBase) GuidelineFor(gene domain.Gene) (*Guideline, bool) {
	g, ok := kb.guidelines[gene]
	return g, ok
}

// PhenotypeForDiplotype maps a rendered diplotype to its phenotype. Any
// diplotype absent from the gene's table resolves to Unknown, never an error.
func (kb *KnowledgeBase) PhenotypeForDiplotype(gene domain.Gene, diplotype string) domain.Phenotype {
	g, ok := kb.guidelines[gene]
	if !ok {
		return domain.PhenotypeUnknown
	}
	if phenotype, ok := g.Diplotypes[diplotype]; ok {
		return phenotype
	}
	return domain.PhenotypeUnknown
}

// RiskRuleFor returns the verdict row for a (gene, phenotype) pair. The
// lookup is total: a phenotype without its own row falls back to the gene's
// Unknown row, and an unknown gene yields the generic conservative rule.
func (kb *KnowledgeBase) RiskRuleFor(gene domain.Gene, phenotype domain.Phenotype) RiskRule {
	g, ok := kb.guidelines[gene]
	if !ok {
		return unknownRule()
	}
	if rule, ok := g.Risk[phenotype]; ok {
		return rule
	}
	return g.Risk[domain.PhenotypeUnknown]
}

// AlleleCallFor returns the star-allele call rule for a variant id.
func (kb *KnowledgeBase) AlleleCallFor(rsid string) (AlleleCall, bool) {
	call, ok := kb.alleleCalls[rsid]
	return call, ok
}

// MonitoredVariants returns the gene's panel positions in listing order.
func (kb *KnowledgeBase) MonitoredVariants(gene domain.Gene) []MonitoredVariant {
	return kb.monitored[gene]
}

// VariantByID returns the panel position for a variant id.
func (kb *KnowledgeBase) VariantByID(rsid string) (MonitoredVariant, bool) {
	mv, ok := kb.monitoredByID[rsid]
	return mv, ok
}

// VariantIDSet returns the gene's monitored ids as a fresh membership set.
func (kb *KnowledgeBase) VariantIDSet(gene domain.Gene) map[string]bool {
	variants := kb.monitored[gene]
	set := make(map[string]bool, len(variants))
	for _, mv := range variants {
		set[mv.RSID] = true
	}
	return set
}

// Alternatives returns the ranked alternative medications for a drug.
func (kb *KnowledgeBase) Alternatives(drug string) []string {
	return kb.alternatives[normalizeDrug(drug)]
}

// SupportedDrugs returns the sorted drug list.
func (kb *KnowledgeBase) SupportedDrugs() []string {
	return kb.drugs
}

// SupportedGenes returns the sorted gene panel.
func (kb *KnowledgeBase) SupportedGenes() []domain.Gene {
	return kb.genes
}

// Validate checks the referential integrity of the loaded tables. Any
// violation indicates a data-table bug and must fail process startup.
func (kb *KnowledgeBase) Validate() error {
	if len(kb.drugGene) == 0 {
		return fmt.Errorf("knowledge base: drug table is empty")
	}

	drugsPerGene := make(map[domain.Gene]int)
	for drug, gene := range kb.drugGene {
		if !gene.IsValid() {
			return fmt.Errorf("knowledge base: drug %s maps to gene outside the panel: %s", drug, gene)
		}
		if drug != strings.ToUpper(drug) {
			return fmt.Errorf("knowledge base: drug key %q is not uppercase", drug)
		}
		drugsPerGene[gene]++
	}

	for gene, guideline := range kb.guidelines {
		if drugsPerGene[gene] == 0 {
			return fmt.Errorf("knowledge base: gene %s has a guideline but no drugs", gene)
		}
		if refGene, ok := kb.drugGene[guideline.ReferenceDrug]; !ok || refGene != gene {
			return fmt.Errorf("knowledge base: gene %s reference drug %q does not map back to it", gene, guideline.ReferenceDrug)
		}
		if len(guideline.Diplotypes) == 0 {
			return fmt.Errorf("knowledge base: gene %s has an empty diplotype table", gene)
		}
		for diplotype, phenotype := range guideline.Diplotypes {
			if !strings.Contains(diplotype, "/") || !strings.HasPrefix(diplotype, "*") {
				return fmt.Errorf("knowledge base: gene %s has malformed diplotype key %q", gene, diplotype)
			}
			if !phenotype.IsValid() || phenotype == domain.PhenotypeUnknown {
				return fmt.Errorf("knowledge base: gene %s diplotype %s maps to invalid phenotype %q", gene, diplotype, phenotype)
			}
		}
		for _, phenotype := range []domain.Phenotype{
			domain.PoorMetabolizer,
			domain.IntermediateMetabolizer,
			domain.NormalMetabolizer,
			domain.RapidMetabolizer,
			domain.UltrarapidMetabolizer,
			domain.PhenotypeUnknown,
		} {
			rule, ok := guideline.Risk[phenotype]
			if !ok {
				return fmt.Errorf("knowledge base: gene %s is missing a risk rule for phenotype %q", gene, phenotype)
			}
			if !rule.Label.IsRuleLabel() {
				return fmt.Errorf("knowledge base: gene %s phenotype %q has out-of-set risk label %q", gene, phenotype, rule.Label)
			}
			if !rule.Severity.IsValid() {
				return fmt.Errorf("knowledge base: gene %s phenotype %q has invalid severity %q", gene, phenotype, rule.Severity)
			}
			if rule.Action == "" {
				return fmt.Errorf("knowledge base: gene %s phenotype %q has an empty action", gene, phenotype)
			}
			if !strings.HasPrefix(rule.GuidelineURL, "https://cpicpgx.org/") {
				return fmt.Errorf("knowledge base: gene %s phenotype %q has non-CPIC guideline URL %q", gene, phenotype, rule.GuidelineURL)
			}
		}
	}

	for gene := range drugsPerGene {
		if _, ok := kb.guidelines[gene]; !ok {
			return fmt.Errorf("knowledge base: gene %s has drugs but no guideline", gene)
		}
		if len(kb.monitored[gene]) == 0 {
			return fmt.Errorf("knowledge base: gene %s has no monitored variants", gene)
		}
	}

	seen := make(map[string]domain.Gene)
	for gene, variants := range kb.monitored {
		if _, ok := kb.guidelines[gene]; !ok {
			return fmt.Errorf("knowledge base: monitored variants reference unknown gene %s", gene)
		}
		for _, mv := range variants {
			if !strings.HasPrefix(mv.RSID, "rs") {
				return fmt.Errorf("knowledge base: monitored variant id %q is not an rs id", mv.RSID)
			}
			if prev, dup := seen[mv.RSID]; dup {
				return fmt.Errorf("knowledge base: variant %s is listed for both %s and %s", mv.RSID, prev, gene)
			}
			seen[mv.RSID] = gene
			if mv.Position <= 0 {
				return fmt.Errorf("knowledge base: variant %s has non-positive position", mv.RSID)
			}
			if !validBases(mv.Ref) || !validBases(mv.Alt) {
				return fmt.Errorf("knowledge base: variant %s has invalid bases %q>%q", mv.RSID, mv.Ref, mv.Alt)
			}
			if mv.Ref == mv.Alt {
				return fmt.Errorf("knowledge base: variant %s has identical ref and alt", mv.RSID)
			}
		}
	}

	for rsid, call := range kb.alleleCalls {
		if _, ok := kb.monitoredByID[rsid]; !ok {
			return fmt.Errorf("knowledge base: allele call %s is not a monitored position", rsid)
		}
		if got := seen[rsid]; got != call.Gene {
			return fmt.Errorf("knowledge base: allele call %s gene %s disagrees with panel gene %s", rsid, call.Gene, got)
		}
		if !strings.HasPrefix(call.Allele, "*") {
			return fmt.Errorf("knowledge base: allele call %s has malformed allele %q", rsid, call.Allele)
		}
		if !call.Function.IsValid() {
			return fmt.Errorf("knowledge base: allele call %s has invalid function class %q", rsid, call.Function)
		}
	}

	for _, drug := range kb.drugs {
		if len(kb.alternatives[drug]) == 0 {
			return fmt.Errorf("knowledge base: drug %s has no alternative medications", drug)
		}
	}

	return nil
}

// CompareAlleles orders star-allele identifiers by numeric core, then suffix,
// so *2 sorts before *10 and *3A before *3B. Returns -1, 0, or 1.
func CompareAlleles(a, b string) int {
	an, as := alleleKey(a)
	bn, bs := alleleKey(b)
	switch {
	case an != bn:
		if an < bn {
			return -1
		}
		return 1
	case as != bs:
		if as < bs {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// RenderDiplotype renders two allele names as the canonical "*X/*Y" string
// with the smaller allele first.
func RenderDiplotype(a, b string) string {
	if CompareAlleles(a, b) > 0 {
		a, b = b, a
	}
	return a + "/" + b
}

func alleleKey(allele string) (int, string) {
	s := strings.TrimPrefix(allele, "*")
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	num := 0
	for _, c := range s[:i] {
		num = num*10 + int(c-'0')
	}
	return num, s[i:]
}

func normalizeDrug(drug string) string {
	return strings.ToUpper(strings.TrimSpace(drug))
}

func validBases(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch c {
		case 'A', 'C', 'G', 'T':
		default:
			return false
		}
	}
	return true
}
