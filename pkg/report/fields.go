package report

import (
	"regexp"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// fieldSpec describes how one clinical field is pulled out of report
// text: an ordered pattern list tried strictly by priority, a weight
// used in confidence scoring, and whether the field is part of the
// core identity set.
type fieldSpec struct {
	field  domain.Field
	weight int
	core   bool
	// lastMatch selects the last document-order match of a pattern
	// instead of the first. Reports repeat Z-score sections and the
	// final occurrence carries the verified value.
	lastMatch bool
	patterns  []*regexp.Regexp
	// enums maps detection patterns to literal enum values for fields
	// that are recognised rather than captured.
	enums []enumPattern
}

type enumPattern struct {
	pattern *regexp.Regexp
	value   string
}

// Extraction patterns, ordered most-specific first. A pattern that
// matches but fails validation never short-circuits the search; the
// next pattern in the list is tried.
var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Patient\s+Name|Patient|Name)[:\s]+([A-Za-z][A-Za-z .'-]+?)(?:\s*(?:MRN|ID|Age|DOB|Date|\||,|\n|$))`),
		regexp.MustCompile(`(?i)Full\s+Name[:\s]+([A-Za-z][A-Za-z .'-]+?)(?:\s*(?:MRN|\n|$))`),
	}

	mrnPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)MRN[:\s#]+([A-Za-z0-9-]+)`),
		regexp.MustCompile(`(?i)(?:Patient\s+)?ID[:\s#]+([A-Za-z0-9-]{4,})`),
		regexp.MustCompile(`(?i)Sample\s+ID[:\s]+([A-Za-z0-9-]+)`),
	}

	agePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Maternal\s+)?Age[:\s]+(\d{1,2})\s*(?:years?|yrs?|y)?(?:\s|,|\.|$)`),
	}

	weightPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Weight[:\s]+(\d+[.,]?\d*)\s*(?:kg|kilograms?)`),
	}

	heightPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Height[:\s]+(\d{2,3})\s*(?:cm|centimeters?)`),
	}

	weeksPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Gestational\s+Age|GA)[:\s]+(\d{1,2})\s*(?:\+\s*\d+)?(?:\s*weeks?|\s*wks?)?`),
		regexp.MustCompile(`(?i)(\d{1,2})\s*(?:\+\s*\d+)?\s*(?:weeks?|wks?)\s+gestation`),
	}

	panelPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Panel(?:\s+Type)?[:\s]+(NIPT\s+(?:Basic|Standard|Plus|Pro))`),
	}

	readsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Total\s+)?Reads?[:\s]+(\d+[.,]?\d*)\s*(?:M\b|million)`),
		regexp.MustCompile(`(?i)(?:Total\s+)?Reads?[:\s]+(\d+[.,]?\d*)`),
	}

	cffPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Cff|FF|Fetal\s+Fraction)[:\s]+(\d+[.,]?\d*)\s*%?`),
	}

	gcPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)GC\s*(?:Content)?[:\s]+(\d+[.,]?\d*)\s*%?`),
	}

	qsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Quality\s+Score|QS)[:\s]+(\d+[.,]?\d*)`),
	}

	uniqueRatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Unique\s*(?:Read)?\s*Rate[:\s]+(\d+[.,]?\d*)\s*%?`),
	}

	errorRatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Error\s*Rate[:\s]+(\d+[.,]?\d*)\s*%?`),
	}

	// Karyotype calls are recognised, not captured. Compound calls
	// come first so "XXX+XY" is never read as "XXX".
	scaEnumPatterns = []enumPattern{
		{regexp.MustCompile(`(?i)XXX\s*\+\s*XY`), string(domain.SCAXXXXY)},
		{regexp.MustCompile(`(?i)XO\s*\+\s*XY`), string(domain.SCAXOXY)},
		{regexp.MustCompile(`(?i)Turner|Monosomy\s+X|45[,\s]*XO?\b`), string(domain.SCAXO)},
		{regexp.MustCompile(`(?i)Triple\s+X|Trisomy\s+X|47[,\s]*XXX`), string(domain.SCAXXX)},
		{regexp.MustCompile(`(?i)Klinefelter|47[,\s]*XXY`), string(domain.SCAXXY)},
		{regexp.MustCompile(`(?i)47[,\s]*XYY`), string(domain.SCAXYY)},
		{regexp.MustCompile(`(?i)(?:Fetal\s+)?Sex[:\s]+Male|XY\s+(?:Male|detected)`), string(domain.SCAXY)},
		{regexp.MustCompile(`(?i)(?:Fetal\s+)?Sex[:\s]+Female|XX\s+(?:Female|detected)`), string(domain.SCAXX)},
	}
)

func trisomyZPatterns(chrom string) []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Trisomy\s*)?` + chrom + `[^)]*?\(Z[:\s]*(-?\d+[.,]?\d*)\)`),
		regexp.MustCompile(`(?i)Z[-\s]?` + chrom + `\b[:\s]+(-?\d+[.,]?\d*)`),
	}
}

func scaZPatterns(karyotype string) []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)Z[-\s]?` + karyotype + `\b[:\s]*(-?\d+[.,]?\d*)`),
	}
}

// fieldSpecs is the fixed extraction field set, with the importance
// weights used in confidence scoring. Core identifying fields (name,
// MRN, the common trisomy Z-scores) weigh more than optional ones.
var fieldSpecs = []fieldSpec{
	{field: domain.FieldPatientName, weight: 3, core: true, patterns: namePatterns},
	{field: domain.FieldMRN, weight: 3, core: true, patterns: mrnPatterns},
	{field: domain.FieldAge, weight: 2, patterns: agePatterns},
	{field: domain.FieldWeightKg, weight: 1, patterns: weightPatterns},
	{field: domain.FieldHeightCm, weight: 1, patterns: heightPatterns},
	{field: domain.FieldGestationalWeeks, weight: 2, patterns: weeksPatterns},
	{field: domain.FieldPanel, weight: 1, patterns: panelPatterns},
	{field: domain.FieldReadsM, weight: 1, patterns: readsPatterns},
	{field: domain.FieldCFF, weight: 2, patterns: cffPatterns},
	{field: domain.FieldGCContent, weight: 1, patterns: gcPatterns},
	{field: domain.FieldQualityScore, weight: 1, patterns: qsPatterns},
	{field: domain.FieldUniqueRate, weight: 1, patterns: uniqueRatePatterns},
	{field: domain.FieldErrorRate, weight: 1, patterns: errorRatePatterns},
	{field: domain.FieldZScoreT13, weight: 2, lastMatch: true, patterns: trisomyZPatterns("13")},
	{field: domain.FieldZScoreT18, weight: 2, lastMatch: true, patterns: trisomyZPatterns("18")},
	{field: domain.FieldZScoreT21, weight: 2, lastMatch: true, patterns: trisomyZPatterns("21")},
	{field: domain.FieldZScoreXX, weight: 1, lastMatch: true, patterns: scaZPatterns("XX")},
	{field: domain.FieldZScoreXY, weight: 1, lastMatch: true, patterns: scaZPatterns("XY")},
	{field: domain.FieldSCAType, weight: 1, enums: scaEnumPatterns},
}

// trisomyZFields are the Z-score fields that can satisfy the
// at-least-one-Z-score half of the core identity requirement.
var trisomyZFields = []domain.Field{
	domain.FieldZScoreT13,
	domain.FieldZScoreT18,
	domain.FieldZScoreT21,
}
