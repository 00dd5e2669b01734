package cpic

import (
	"github.com/pgx-risk-server/internal/domain"
)

// Static CPIC reference tables for the six-gene panel. The tables are the
// single source of truth for drug support, diplotype naming, phenotype
// mapping, and risk rules; NewKnowledgeBase loads them once and Validate
// checks their referential integrity at startup.
//
// Diplotype and risk rows follow the published CPIC gene/drug guidelines
// (https://cpicpgx.org/guidelines/). Each gene carries one guideline table
// keyed by its reference drug; sibling drugs resolve through that table.

func drugGeneTable() map[string]domain.Gene {
	return map[string]domain.Gene{
		"CODEINE":        domain.CYP2D6,
		"TRAMADOL":       domain.CYP2D6,
		"METOPROLOL":     domain.CYP2D6,
		"CLOPIDOGREL":    domain.CYP2C19,
		"OMEPRAZOLE":     domain.CYP2C19,
		"LANSOPRAZOLE":   domain.CYP2C19,
		"WARFARIN":       domain.CYP2C9,
		"LOSARTAN":       domain.CYP2C9,
		"PHENYTOIN":      domain.CYP2C9,
		"SIMVASTATIN":    domain.SLCO1B1,
		"ATORVASTATIN":   domain.SLCO1B1,
		"ROSUVASTATIN":   domain.SLCO1B1,
		"AZATHIOPRINE":   domain.TPMT,
		"MERCAPTOPURINE": domain.TPMT,
		"THIOGUANINE":    domain.TPMT,
		"FLUOROURACIL":   domain.DPYD,
		"CAPECITABINE":   domain.DPYD,
		"TEGAFUR":        domain.DPYD,
	}
}

// unknownRule is the completeness-invariant row present in every gene's risk
// table: any diplotype outside the table resolves to the Unknown phenotype,
// which must still yield an in-set, conservative verdict.
func unknownRule() RiskRule {
	return RiskRule{
		Label:        domain.RiskAdjustDosage,
		Severity:     domain.SeverityLow,
		Action:       "Consult physician - genotype did not map to a known phenotype for this gene",
		Alternative:  "",
		GuidelineURL: "https://cpicpgx.org/",
	}
}

func guidelineTable() map[domain.Gene]*Guideline {
	const (
		codeineURL      = "https://cpicpgx.org/guidelines/cyp2d6-codeine-guideline/"
		clopidogrelURL  = "https://cpicpgx.org/guidelines/cyp2c19-clopidogrel-guideline/"
		warfarinURL     = "https://cpicpgx.org/guidelines/cyp2c9-warfarin-guideline/"
		simvastatinURL  = "https://cpicpgx.org/guidelines/slco1b1-simvastatin-guideline/"
		azathioprineURL = "https://cpicpgx.org/guidelines/tpmt-azathioprine-guideline/"
		fluorouracilURL = "https://cpicpgx.org/guidelines/dpd-fluorouracil-guideline/"
	)

	var (
		pm  = domain.PoorMetabolizer
		im  = domain.IntermediateMetabolizer
		nm  = domain.NormalMetabolizer
		rm  = domain.RapidMetabolizer
		urm = domain.UltrarapidMetabolizer
	)

	return map[domain.Gene]*Guideline{
		domain.CYP2D6: {
			Gene:          domain.CYP2D6,
			ReferenceDrug: "CODEINE",
			Diplotypes: map[string]domain.Phenotype{
				"*1/*1":   nm,
				"*1/*2":   rm,
				"*1/*3":   im,
				"*1/*4":   pm,
				"*2/*2":   rm,
				"*2/*3":   im,
				"*2/*4":   pm,
				"*3/*3":   pm,
				"*3/*4":   pm,
				"*4/*4":   pm,
				"*1xN/*1": urm,
				"*1xN/*2": urm,
				"*2xN/*2": urm,
			},
			Risk: map[domain.Phenotype]RiskRule{
				pm: {
					Label:        domain.RiskToxic,
					Severity:     domain.SeverityCritical,
					Action:       "Avoid Codeine - Risk of life-threatening toxicity",
					Alternative:  "Morphine or Non-Opioid Analgesic",
					GuidelineURL: codeineURL,
				},
				im: {
					Label:        domain.RiskAdjustDosage,
					Severity:     domain.SeverityModerate,
					Action:       "Use lowest effective dose, consider alternative",
					Alternative:  "Tramadol with monitoring or Non-Opioid",
					GuidelineURL: codeineURL,
				},
				nm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use label-recommended dosing",
					GuidelineURL: codeineURL,
				},
				rm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use label-recommended dosing",
					GuidelineURL: codeineURL,
				},
				urm: {
					Label:        domain.RiskIneffective,
					Severity:     domain.SeverityCritical,
					Action:       "Avoid Codeine - Risk of inadequate analgesia",
					Alternative:  "Morphine or Non-Opioid Analgesic",
					GuidelineURL: codeineURL,
				},
				domain.PhenotypeUnknown: unknownRule(),
			},
		},
		domain.CYP2C19: {
			Gene:          domain.CYP2C19,
			ReferenceDrug: "CLOPIDOGREL",
			Diplotypes: map[string]domain.Phenotype{
				"*1/*1":   nm,
				"*1/*2":   pm,
				"*1/*3":   im,
				"*2/*2":   pm,
				"*2/*3":   pm,
				"*3/*3":   pm,
				"*17/*17": rm,
				"*1/*17":  rm,
			},
			Risk: map[domain.Phenotype]RiskRule{
				pm: {
					Label:        domain.RiskIneffective,
					Severity:     domain.SeverityHigh,
					Action:       "Avoid Clopidogrel - Poor activation",
					Alternative:  "Prasugrel or Ticagrelor (if no contraindication)",
					GuidelineURL: clopidogrelURL,
				},
				im: {
					Label:        domain.RiskAdjustDosage,
					Severity:     domain.SeverityModerate,
					Action:       "Consider alternative antiplatelet therapy",
					Alternative:  "Prasugrel or Ticagrelor",
					GuidelineURL: clopidogrelURL,
				},
				nm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use label-recommended dosing",
					GuidelineURL: clopidogrelURL,
				},
				rm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use label-recommended dosing",
					GuidelineURL: clopidogrelURL,
				},
				urm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use label-recommended dosing",
					GuidelineURL: clopidogrelURL,
				},
				domain.PhenotypeUnknown: unknownRule(),
			},
		},
		domain.CYP2C9: {
			Gene:          domain.CYP2C9,
			ReferenceDrug: "WARFARIN",
			Diplotypes: map[string]domain.Phenotype{
				"*1/*1": nm,
				"*1/*2": im,
				"*1/*3": im,
				"*2/*2": pm,
				"*2/*3": pm,
				"*3/*3": pm,
			},
			Risk: map[domain.Phenotype]RiskRule{
				pm: {
					Label:        domain.RiskToxic,
					Severity:     domain.SeverityCritical,
					Action:       "Reduce warfarin dose by 50-70%, frequent INR monitoring",
					Alternative:  "Consider alternative anticoagulant (e.g., apixaban, rivaroxaban)",
					GuidelineURL: warfarinURL,
				},
				im: {
					Label:        domain.RiskAdjustDosage,
					Severity:     domain.SeverityModerate,
					Action:       "Reduce initial dose, frequent INR monitoring",
					GuidelineURL: warfarinURL,
				},
				nm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use standard dosing with routine INR monitoring",
					GuidelineURL: warfarinURL,
				},
				rm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use standard dosing with routine INR monitoring",
					GuidelineURL: warfarinURL,
				},
				urm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use standard dosing with routine INR monitoring",
					GuidelineURL: warfarinURL,
				},
				domain.PhenotypeUnknown: unknownRule(),
			},
		},
		domain.SLCO1B1: {
			Gene:          domain.SLCO1B1,
			ReferenceDrug: "SIMVASTATIN",
			Diplotypes: map[string]domain.Phenotype{
				"*1/*1":   nm,
				"*1/*5":   im,
				"*5/*5":   pm,
				"*1/*15":  im,
				"*15/*15": pm,
			},
			Risk: map[domain.Phenotype]RiskRule{
				pm: {
					Label:        domain.RiskToxic,
					Severity:     domain.SeverityHigh,
					Action:       "Avoid simvastatin >20mg daily, use alternate statin",
					Alternative:  "Atorvastatin, Rosuvastatin, or Pravastatin",
					GuidelineURL: simvastatinURL,
				},
				im: {
					Label:        domain.RiskAdjustDosage,
					Severity:     domain.SeverityModerate,
					Action:       "Use simvastatin 20mg max, consider alternate statin",
					Alternative:  "Atorvastatin, Rosuvastatin, or Pravastatin",
					GuidelineURL: simvastatinURL,
				},
				nm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use standard dosing",
					GuidelineURL: simvastatinURL,
				},
				rm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use standard dosing",
					GuidelineURL: simvastatinURL,
				},
				urm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use standard dosing",
					GuidelineURL: simvastatinURL,
				},
				domain.PhenotypeUnknown: unknownRule(),
			},
		},
		domain.TPMT: {
			Gene:          domain.TPMT,
			ReferenceDrug: "AZATHIOPRINE",
			Diplotypes: map[string]domain.Phenotype{
				"*1/*1":   nm,
				"*1/*3A":  im,
				"*1/*3B":  im,
				"*1/*3C":  im,
				"*3A/*3A": pm,
				"*3A/*3B": pm,
				"*3B/*3B": pm,
				"*3A/*3C": pm,
				"*3C/*3C": pm,
			},
			Risk: map[domain.Phenotype]RiskRule{
				pm: {
					Label:        domain.RiskToxic,
					Severity:     domain.SeverityCritical,
					Action:       "Avoid azathioprine - severe myelosuppression risk",
					Alternative:  "Consider mycophenolate mofetil or tacrolimus",
					GuidelineURL: azathioprineURL,
				},
				im: {
					Label:        domain.RiskAdjustDosage,
					Severity:     domain.SeverityHigh,
					Action:       "Reduce dose to 30-50% of normal, monitor closely",
					GuidelineURL: azathioprineURL,
				},
				nm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use standard dosing",
					GuidelineURL: azathioprineURL,
				},
				rm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use standard dosing",
					GuidelineURL: azathioprineURL,
				},
				urm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use standard dosing",
					GuidelineURL: azathioprineURL,
				},
				domain.PhenotypeUnknown: unknownRule(),
			},
		},
		domain.DPYD: {
			Gene:          domain.DPYD,
			ReferenceDrug: "FLUOROURACIL",
			Diplotypes: map[string]domain.Phenotype{
				"*1/*1":   nm,
				"*1/*2":   im,
				"*1/*13":  im,
				"*1/*14":  im,
				"*2/*2":   pm,
				"*13/*13": pm,
				"*1A/*1":  nm,
				"*1A/*2":  im,
			},
			Risk: map[domain.Phenotype]RiskRule{
				pm: {
					Label:        domain.RiskToxic,
					Severity:     domain.SeverityCritical,
					Action:       "Avoid fluorouracil - severe toxicity risk",
					Alternative:  "Non-FU containing regimen, consult oncology",
					GuidelineURL: fluorouracilURL,
				},
				im: {
					Label:        domain.RiskAdjustDosage,
					Severity:     domain.SeverityHigh,
					Action:       "Reduce initial dose by 50%, monitor closely",
					GuidelineURL: fluorouracilURL,
				},
				nm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use standard dosing",
					GuidelineURL: fluorouracilURL,
				},
				rm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use standard dosing",
					GuidelineURL: fluorouracilURL,
				},
				urm: {
					Label:        domain.RiskSafe,
					Severity:     domain.SeverityNone,
					Action:       "Use standard dosing",
					GuidelineURL: fluorouracilURL,
				},
				domain.PhenotypeUnknown: unknownRule(),
			},
		},
	}
}

// monitoredVariantTable lists the panel positions scanned per gene, with
// GRCh38 coordinates and the plus-strand reference/variant bases expected
// at each position. Ordering matches the guideline variant listings.
func monitoredVariantTable() map[domain.Gene][]MonitoredVariant {
	return map[domain.Gene][]MonitoredVariant{
		domain.CYP2D6: {
			{RSID: "rs3892097", Position: 42128945, Ref: "G", Alt: "A", Label: "*4 (splice defect)"},
			{RSID: "rs1065852", Position: 42130692, Ref: "C", Alt: "T", Label: "*10"},
			{RSID: "rs5030655", Position: 42128242, Ref: "TA", Alt: "T", Label: "*6"},
			{RSID: "rs5030867", Position: 42127941, Ref: "A", Alt: "C", Label: "*14"},
			{RSID: "rs28371725", Position: 42127803, Ref: "G", Alt: "A", Label: "*2"},
			{RSID: "rs28413332", Position: 42129770, Ref: "C", Alt: "T", Label: "*17"},
			{RSID: "rs28413331", Position: 42129033, Ref: "G", Alt: "A", Label: "*29"},
		},
		domain.CYP2C19: {
			{RSID: "rs4244285", Position: 94781859, Ref: "G", Alt: "A", Label: "*2 (loss of function)"},
			{RSID: "rs4986893", Position: 94780653, Ref: "G", Alt: "A", Label: "*3 (loss of function)"},
			{RSID: "rs12248560", Position: 94761900, Ref: "C", Alt: "T", Label: "*17 (gain of function)"},
			{RSID: "rs28399504", Position: 94762706, Ref: "A", Alt: "G", Label: "*4"},
			{RSID: "rs41291556", Position: 94775367, Ref: "T", Alt: "C", Label: "*5"},
		},
		domain.CYP2C9: {
			{RSID: "rs1799853", Position: 94942290, Ref: "C", Alt: "T", Label: "*2 (reduced function)"},
			{RSID: "rs1057910", Position: 94981296, Ref: "A", Alt: "C", Label: "*3 (no function)"},
			{RSID: "rs28371686", Position: 94981301, Ref: "C", Alt: "G", Label: "*5"},
			{RSID: "rs4917639", Position: 94952084, Ref: "A", Alt: "C", Label: "*11"},
			{RSID: "rs7900194", Position: 94942309, Ref: "G", Alt: "A", Label: "*8"},
		},
		domain.SLCO1B1: {
			{RSID: "rs4149056", Position: 21178615, Ref: "T", Alt: "C", Label: "*5 (reduced function)"},
			{RSID: "rs4149015", Position: 21130388, Ref: "G", Alt: "A", Label: "*15"},
			{RSID: "rs2304130", Position: 21176804, Ref: "A", Alt: "G", Label: "*14"},
			{RSID: "rs4363657", Position: 21172734, Ref: "T", Alt: "C", Label: "*1a"},
			{RSID: "rs4149268", Position: 21204525, Ref: "T", Alt: "C", Label: "*1b"},
		},
		domain.TPMT: {
			{RSID: "rs1800462", Position: 18149127, Ref: "G", Alt: "C", Label: "*3A (no function)"},
			{RSID: "rs1800588", Position: 18143955, Ref: "C", Alt: "T", Label: "*3B"},
			{RSID: "rs1142345", Position: 18130918, Ref: "A", Alt: "G", Label: "*3B"},
			{RSID: "rs1800589", Position: 18147905, Ref: "C", Alt: "A", Label: "*2"},
			{RSID: "rs12239046", Position: 18155205, Ref: "C", Alt: "T", Label: "*4"},
		},
		domain.DPYD: {
			{RSID: "rs3918290", Position: 97450058, Ref: "G", Alt: "A", Label: "*2A (no function)"},
			{RSID: "rs55886062", Position: 97515839, Ref: "A", Alt: "C", Label: "*13"},
			{RSID: "rs67376798", Position: 97305364, Ref: "T", Alt: "A", Label: "*14"},
			{RSID: "rs75017182", Position: 97573863, Ref: "G", Alt: "C", Label: "*1"},
			{RSID: "rs56038477", Position: 97573807, Ref: "C", Alt: "T", Label: "*5"},
		},
	}
}

// alleleCallTable maps variant ids to star-allele calls. Monitored positions
// absent here are matched and reported but contribute no allele.
func alleleCallTable() map[string]AlleleCall {
	return map[string]AlleleCall{
		"rs3892097":  {Gene: domain.CYP2D6, Allele: "*4", Function: domain.FunctionNone},
		"rs1065852":  {Gene: domain.CYP2D6, Allele: "*10", Function: domain.FunctionReduced},
		"rs5030655":  {Gene: domain.CYP2D6, Allele: "*6", Function: domain.FunctionNone},
		"rs5030867":  {Gene: domain.CYP2D6, Allele: "*14", Function: domain.FunctionNone},
		"rs28371725": {Gene: domain.CYP2D6, Allele: "*2", Function: domain.FunctionNormal},
		"rs4244285":  {Gene: domain.CYP2C19, Allele: "*2", Function: domain.FunctionNone},
		"rs4986893":  {Gene: domain.CYP2C19, Allele: "*3", Function: domain.FunctionNone},
		"rs12248560": {Gene: domain.CYP2C19, Allele: "*17", Function: domain.FunctionIncreased},
		"rs1799853":  {Gene: domain.CYP2C9, Allele: "*2", Function: domain.FunctionReduced},
		"rs1057910":  {Gene: domain.CYP2C9, Allele: "*3", Function: domain.FunctionNone},
		"rs4149056":  {Gene: domain.SLCO1B1, Allele: "*5", Function: domain.FunctionReduced},
		"rs1800462":  {Gene: domain.TPMT, Allele: "*3A", Function: domain.FunctionNone},
		"rs1800588":  {Gene: domain.TPMT, Allele: "*3B", Function: domain.FunctionNone},
		"rs1142345":  {Gene: domain.TPMT, Allele: "*3B", Function: domain.FunctionNone},
		"rs3918290":  {Gene: domain.DPYD, Allele: "*2A", Function: domain.FunctionNone},
		"rs55886062": {Gene: domain.DPYD, Allele: "*13", Function: domain.FunctionNone},
		"rs67376798": {Gene: domain.DPYD, Allele: "*14", Function: domain.FunctionReduced},
	}
}

func alternativeDrugTable() map[string][]string {
	return map[string][]string{
		"CODEINE":        {"Morphine", "Hydromorphone", "Non-Opioid Analgesic (Ibuprofen/Acetaminophen)"},
		"TRAMADOL":       {"Oxycodone", "Non-Opioid Analgesic"},
		"METOPROLOL":     {"Atenolol", "Bisoprolol", "Carvedilol"},
		"CLOPIDOGREL":    {"Prasugrel", "Ticagrelor", "Aspirin"},
		"OMEPRAZOLE":     {"Pantoprazole", "Rabeprazole", "Famotidine"},
		"LANSOPRAZOLE":   {"Pantoprazole", "Rabeprazole", "Famotidine"},
		"WARFARIN":       {"Apixaban", "Rivaroxaban", "Dabigatran"},
		"LOSARTAN":       {"Valsartan", "Irbesartan", "Candesartan"},
		"PHENYTOIN":      {"Levetiracetam", "Lamotrigine", "Carbamazepine"},
		"SIMVASTATIN":    {"Atorvastatin", "Rosuvastatin", "Pravastatin"},
		"ATORVASTATIN":   {"Rosuvastatin", "Pravastatin", "Fluvastatin"},
		"ROSUVASTATIN":   {"Atorvastatin", "Pravastatin", "Fluvastatin"},
		"AZATHIOPRINE":   {"Mycophenolate Mofetil", "Tacrolimus", "Methotrexate"},
		"MERCAPTOPURINE": {"Mycophenolate Mofetil", "Azathioprine"},
		"THIOGUANINE":    {"Mycophenolate Mofetil", "Azathioprine"},
		"FLUOROURACIL":   {"Non-FU containing regimen", "Consult Oncology", "Capecitabine (with dose adjustment)"},
		"CAPECITABINE":   {"Non-FU containing regimen", "Consult Oncology"},
		"TEGAFUR":        {"Non-FU containing regimen", "Consult Oncology"},
	}
}
