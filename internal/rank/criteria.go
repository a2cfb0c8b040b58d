package rank

// Scoring criteria for the feasibility go/no-go screen. The keyword tiers
// classify a sub-question's text; every keyword match is whole-word.

// weights sum to 1.0 across the six dimensions.
var weights = struct {
	Biosafety    float64
	Technique    float64
	Reagent      float64
	Cost         float64
	Readiness    float64
	Tractability float64
}{
	Biosafety:    0.20,
	Technique:    0.20,
	Reagent:      0.15,
	Cost:         0.15,
	Readiness:    0.20,
	Tractability: 0.10,
}

const (
	tierHighThreshold   = 0.50
	tierMediumThreshold = 0.30

	goNowScoreThreshold     = 0.50
	goNowConfidence         = 0.50
	needsSpecScoreThreshold = 0.35
	needsSpecConfidence     = 0.25

	// final = raw * (uncertaintyBase + (1-uncertaintyBase)*confidence)
	uncertaintyBase = 0.50
)

// biosafetyTier maps a keyword set to a safety score. Tiers are checked in
// order; disqualifiers always win.
type biosafetyTier struct {
	name     string
	score    float64
	keywords []string
}

var biosafetyTiers = []biosafetyTier{
	{"disqualifiers", 0.0, []string{
		"bsl-3", "bsl-4", "select agent", "animal model", "mouse model",
		"mice", "rat model", "in vivo", "clinical trial", "human subjects",
		"patient enrollment", "primate", "mycobacterium tuberculosis",
		"sars-cov", "ebola", "influenza virus",
	}},
	{"bsl2_plus_viral", 0.2, []string{
		"dengue", "live virus", "viral infection", "viral stock",
		"plaque assay", "viral propagation", "virus culture",
	}},
	{"bsl2_organisms", 0.5, []string{
		"human primary cells", "primary human", "patient-derived",
		"human blood", "human tissue", "lentivirus", "adenovirus",
		"bsl-2", "salmonella", "staphylococcus", "pseudomonas",
	}},
	{"non_biological_materials", 0.9, []string{
		"ceramic", "oxide", "electrolyte", "battery", "composite",
		"solid-state", "xrd", "eis", "materials synthesis",
	}},
	{"safe_organisms", 1.0, []string{
		"e. coli", "escherichia coli", "recombinant protein",
		"purified protein", "protein expression", "yeast",
		"saccharomyces", "hela", "hek293", "cho cells", "jurkat",
		"vero", "sf9", "insect cells", "in vitro", "cell-free",
	}},
}

const biosafetyUnknownScore = 0.4

// techniqueTier scores equipment accessibility, most accessible first.
type techniqueTier struct {
	score    float64
	keywords []string
}

var techniqueTiers = []techniqueTier{
	{1.0, []string{"pcr", "qpcr", "rt-pcr", "gel electrophoresis", "agarose gel", "cloning", "restriction digest", "ligation", "transformation"}},
	{0.9, []string{"mic assay", "minimum inhibitory concentration", "broth microdilution", "antimicrobial susceptibility"}},
	{0.8, []string{"cell culture", "viability assay", "mtt assay", "cytotoxicity", "proliferation assay", "cell viability"}},
	{0.8, []string{"elisa", "binding assay", "plate reader", "colorimetric", "fluorescence assay"}},
	{0.7, []string{"circular dichroism", "cd spectroscopy", "uv-vis"}},
	{0.6, []string{"western blot", "protein purification", "chromatography", "his-tag", "affinity purification", "sds-page"}},
	{0.5, []string{"flow cytometry", "facs", "microscopy", "fluorescence microscopy", "confocal"}},
	{0.3, []string{"mass spectrometry", "nmr", "surface plasmon resonance", "spr", "isothermal titration", "itc", "hplc"}},
	{0.1, []string{"cryo-em", "x-ray crystallography", "crystallography", "synchrotron", "saxs"}},
	{0.0, []string{"custom equipment", "specialized instrument", "custom-built"}},
}

const techniqueUnknownScore = 0.4

// reagentTier scores sourcing difficulty. Checked hardest-to-source first so
// a restricted reagent is never masked by a catalog mention.
type reagentTier struct {
	name     string
	score    float64
	keywords []string
}

var reagentTiers = []reagentTier{
	{"restricted", 0.0, []string{"restricted", "controlled substance", "unavailable", "discontinued"}},
	{"author_specific", 0.2, []string{"available upon request", "from the authors", "provided by", "gift from", "kindly provided"}},
	{"custom_synthesis", 0.5, []string{"custom synthesis", "synthesized", "custom peptide", "custom dna", "custom oligo", "gene synthesis"}},
	{"specialty_commercial", 0.7, []string{"specialty supplier", "custom antibody", "cayman chemical", "tocris", "selleckchem"}},
	{"standard_catalog", 1.0, []string{
		"commercially available", "sigma", "sigma-aldrich", "thermo fisher",
		"invitrogen", "idt", "addgene", "atcc", "new england biolabs",
		"promega", "bio-rad", "abcam",
	}},
}

const reagentUnknownScore = 0.4

var costByComplexity = map[string]float64{
	"simple":  1.0,
	"medium":  0.65,
	"complex": 0.35,
}

// Readiness and eligibility signals: a bench-testable sub-question names an
// experimental action, a measurable endpoint, and a manipulable system.
var (
	actionKeywords = []string{
		"assay", "experiment", "mutagenesis", "gene editing", "knockout",
		"transformation", "culture", "screening", "reporter", "transfection",
		"perturbation", "isotope tracing", "validation", "qtl", "gwas",
	}
	measurementKeywords = []string{
		"measure", "quantify", "evaluate", "compare", "efficiency", "activity",
		"expression", "growth", "binding", "stability", "viability", "flux",
		"yield", "rate", "readout", "endpoint",
	}
	systemKeywords = []string{
		"cell", "cells", "microbe", "microbial", "bacteria", "strain", "organism",
		"plant", "crop", "protein", "enzyme", "gene", "genome", "rna", "dna",
		"metabolite", "soil", "fermentation", "sample", "library",
	}
	controlKeywords = []string{
		"control", "baseline", "wild-type", "versus", "comparison", "matched",
	}
)

// Blockers flag work that is not bench science; without an experimental
// action alongside them the sub-question is ineligible.
var (
	policyKeywords = []string{
		"policy", "regulatory", "governance", "international law",
		"incentive structures", "funding structures", "stakeholder",
		"capacity building", "cross-border",
	}
	infrastructureKeywords = []string{
		"monitoring sites", "observational networks", "infrastructure bottlenecks",
		"site distribution", "global network", "long-term site",
	}
	computationalKeywords = []string{
		"scenario modeling", "agent-based modeling", "survey", "gap analysis",
		"comparative policy analysis", "techno-economic analysis",
	}
	multiYearScaleKeywords = []string{
		"long-term", "multi-site", "multi-year", "global", "cross-border",
		"consortium", "worldwide",
	}
)
