package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/cpic"
	"github.com/pgx-risk-server/internal/domain"
)

// referenceAllele is the star allele assumed at every position that was not
// observed in the input, following the CPIC convention of defaulting to the
// common allele.
const referenceAllele = "*1"

// GenomicProfile is the resolved genetic state of one gene for one patient:
// the canonical diplotype, its phenotype, and the genotype calls that landed
// on the gene's monitored positions.
type GenomicProfile struct {
	Gene      domain.Gene
	Diplotype string
	Phenotype domain.Phenotype
	Matched   []domain.GenotypeCall
}

// DiplotypeResolver maps extracted genotype calls to a star-allele diplotype
// and its metabolizer phenotype using the knowledge base call rules.
//
// Unmeasured positions are treated as homozygous reference. That default is
// a deliberate resolver policy, not a parsing artifact: the confidence score
// on the verdict, not the diplotype, carries the resulting uncertainty.
type DiplotypeResolver struct {
	logger *logrus.Logger
	kb     *cpic.KnowledgeBase
}

// NewDiplotypeResolver creates a new diplotype resolver.
func NewDiplotypeResolver(logger *logrus.Logger, kb *cpic.KnowledgeBase) *DiplotypeResolver {
	return &DiplotypeResolver{
		logger: logger,
		kb:     kb,
	}
}

type alleleContribution struct {
	allele   string
	function domain.AlleleFunction
}

// Resolve derives the diplotype and phenotype for one gene from the
// patient's calls. Identical inputs always yield identical results.
//
// Calls are first filtered to the gene's monitored positions, first
// occurrence winning on duplicate ids; the filtered subset is returned on
// the profile for reporting. Each filtered call with an allele-call rule
// contributes its star allele zero, one, or two times depending on
// zygosity. Calls with unknown zygosity or with bases outside the
// position's expected alleles contribute nothing. The two most impaired
// contributions, ranked by function class, fill the diplotype slots; a
// single contribution pairs with the reference allele, and none at all
// yields the reference diplotype.
func (r *DiplotypeResolver) Resolve(gene domain.Gene, calls []domain.GenotypeCall) GenomicProfile {
	monitored := r.kb.VariantIDSet(gene)

	matched := make([]domain.GenotypeCall, 0, len(monitored))
	seen := make(map[string]bool, len(monitored))
	for _, call := range calls {
		if !monitored[call.RSID] || seen[call.RSID] {
			continue
		}
		seen[call.RSID] = true
		matched = append(matched, call)
	}

	var contributions []alleleContribution
	for _, call := range matched {
		rule, ok := r.kb.AlleleCallFor(call.RSID)
		if !ok {
			// Panel position without a call rule: reported, never scored.
			continue
		}
		position, _ := r.kb.VariantByID(call.RSID)
		if call.Zygosity == domain.ZygosityUnknown || !position.AllowsGenotype(call.Genotype) {
			r.logger.WithFields(logrus.Fields{
				"gene":     gene.String(),
				"rsid":     call.RSID,
				"genotype": call.Genotype,
				"zygosity": string(call.Zygosity),
			}).Warn("Unresolvable genotype observation, position treated as unmeasured")
			continue
		}
		switch call.Zygosity {
		case domain.Het:
			contributions = append(contributions, alleleContribution{rule.Allele, rule.Function})
		case domain.HomAlt:
			contributions = append(contributions,
				alleleContribution{rule.Allele, rule.Function},
				alleleContribution{rule.Allele, rule.Function})
		}
	}

	first, second := referenceAllele, referenceAllele
	switch {
	case len(contributions) == 1:
		first = contributions[0].allele
	case len(contributions) > 1:
		sort.SliceStable(contributions, func(i, j int) bool {
			if contributions[i].function.Rank() != contributions[j].function.Rank() {
				return contributions[i].function.Rank() < contributions[j].function.Rank()
			}
			return cpic.CompareAlleles(contributions[i].allele, contributions[j].allele) < 0
		})
		first, second = contributions[0].allele, contributions[1].allele
	}

	diplotype := cpic.RenderDiplotype(first, second)
	phenotype := r.kb.PhenotypeForDiplotype(gene, diplotype)

	r.logger.WithFields(logrus.Fields{
		"gene":          gene.String(),
		"diplotype":     diplotype,
		"phenotype":     string(phenotype),
		"matched_count": len(matched),
		"contributions": len(contributions),
	}).Debug("Resolved diplotype")

	return GenomicProfile{
		Gene:      gene,
		Diplotype: diplotype,
		Phenotype: phenotype,
		Matched:   matched,
	}
}
