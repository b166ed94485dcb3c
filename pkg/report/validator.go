// Package report extracts and validates clinical fields from
// semi-structured NIPT laboratory report text.
package report

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

const (
	maxMRNLength  = 50
	minNameLength = 2
	maxNameLength = 100
)

var (
	numericMRNPattern  = regexp.MustCompile(`^\d+$`)
	alphanumMRNPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	namePattern        = regexp.MustCompile(`^[A-Za-z][A-Za-z .'-]*$`)
)

// numericRange is an inclusive [min, max] plausibility band.
type numericRange struct {
	min, max float64
}

var numericRanges = map[domain.Field]numericRange{
	domain.FieldAge:              {15, 60},
	domain.FieldWeightKg:         {30, 200},
	domain.FieldHeightCm:         {100, 220},
	domain.FieldGestationalWeeks: {9, 42},
	domain.FieldReadsM:           {0.1, 100},
	domain.FieldCFF:              {0.5, 50},
	domain.FieldGCContent:        {20, 80},
	domain.FieldQualityScore:     {0, 10},
	domain.FieldUniqueRate:       {0, 100},
	domain.FieldErrorRate:        {0, 100},
	domain.FieldZScoreT13:        {-20, 50},
	domain.FieldZScoreT18:        {-20, 50},
	domain.FieldZScoreT21:        {-20, 50},
	domain.FieldZScoreXX:         {-20, 50},
	domain.FieldZScoreXY:         {-20, 50},
}

// integerFields parse as whole numbers.
var integerFields = map[domain.Field]bool{
	domain.FieldAge:              true,
	domain.FieldHeightCm:         true,
	domain.FieldGestationalWeeks: true,
}

// Validator applies per-field range, format and membership checks. It
// is pure and total: the same input always yields the same accepted
// value or rejection, with no side effects. The extractor and every
// manual-entry path share it so both obey identical invariants.
type Validator struct {
	allowAlphanumericMRN bool
}

// NewValidator creates a validator with the strict numeric MRN rule.
func NewValidator() *Validator {
	return &Validator{}
}

// NewValidatorWithOptions creates a validator with the given MRN rule.
func NewValidatorWithOptions(allowAlphanumericMRN bool) *Validator {
	return &Validator{allowAlphanumericMRN: allowAlphanumericMRN}
}

// Validate normalizes and checks one raw field value. A rejected value
// returns a *domain.ValidationError; it is never coerced or defaulted.
func (v *Validator) Validate(field domain.Field, raw string) (domain.FieldValue, error) {
	cleaned := NormalizeText(raw)

	switch field {
	case domain.FieldPatientName:
		return v.validateName(cleaned)
	case domain.FieldMRN:
		return v.validateMRN(cleaned)
	case domain.FieldPanel:
		return v.validatePanel(cleaned)
	case domain.FieldSCAType:
		return v.validateSCAType(cleaned)
	default:
		return v.validateNumeric(field, cleaned)
	}
}

func (v *Validator) validateName(cleaned string) (domain.FieldValue, error) {
	if len(cleaned) < minNameLength || len(cleaned) > maxNameLength {
		return domain.FieldValue{}, domain.NewValidationError(
			string(domain.FieldPatientName),
			fmt.Sprintf("name must be %d-%d characters", minNameLength, maxNameLength),
			cleaned)
	}
	if !namePattern.MatchString(cleaned) {
		return domain.FieldValue{}, domain.NewValidationError(
			string(domain.FieldPatientName),
			"name may contain only letters, spaces, hyphens, apostrophes and periods",
			cleaned)
	}
	return domain.FieldValue{Field: domain.FieldPatientName, Kind: domain.KindString, Text: cleaned}, nil
}

func (v *Validator) validateMRN(cleaned string) (domain.FieldValue, error) {
	if cleaned == "" {
		return domain.FieldValue{}, domain.NewValidationError(
			string(domain.FieldMRN), "MRN cannot be empty", cleaned)
	}
	if len(cleaned) > maxMRNLength {
		return domain.FieldValue{}, domain.NewValidationError(
			string(domain.FieldMRN),
			fmt.Sprintf("MRN too long (max %d characters)", maxMRNLength), cleaned)
	}
	if v.allowAlphanumericMRN {
		if !alphanumMRNPattern.MatchString(cleaned) {
			return domain.FieldValue{}, domain.NewValidationError(
				string(domain.FieldMRN),
				"MRN may contain only letters, digits, hyphens and underscores", cleaned)
		}
	} else if !numericMRNPattern.MatchString(cleaned) {
		return domain.FieldValue{}, domain.NewValidationError(
			string(domain.FieldMRN), "MRN must be digits only", cleaned)
	}
	return domain.FieldValue{Field: domain.FieldMRN, Kind: domain.KindString, Text: cleaned}, nil
}

func (v *Validator) validatePanel(cleaned string) (domain.FieldValue, error) {
	for _, p := range domain.PanelTypes {
		if strings.EqualFold(cleaned, string(p)) {
			return domain.FieldValue{Field: domain.FieldPanel, Kind: domain.KindEnum, Text: string(p)}, nil
		}
	}
	return domain.FieldValue{}, domain.NewValidationError(
		string(domain.FieldPanel), "unknown panel type", cleaned)
}

func (v *Validator) validateSCAType(cleaned string) (domain.FieldValue, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(cleaned, " ", ""))
	if domain.ValidSCAType(domain.SCAType(normalized)) {
		return domain.FieldValue{Field: domain.FieldSCAType, Kind: domain.KindEnum, Text: normalized}, nil
	}
	return domain.FieldValue{}, domain.NewValidationError(
		string(domain.FieldSCAType), "unknown karyotype call", cleaned)
}

func (v *Validator) validateNumeric(field domain.Field, cleaned string) (domain.FieldValue, error) {
	band, ok := numericRanges[field]
	if !ok {
		return domain.FieldValue{}, domain.NewValidationError(
			string(field), "unknown field", cleaned)
	}

	value, err := ParseDecimal(cleaned)
	if err != nil {
		return domain.FieldValue{}, domain.NewValidationError(
			string(field), "not a number", cleaned)
	}

	kind := domain.KindFloat
	if integerFields[field] {
		kind = domain.KindInt
		if value != math.Trunc(value) {
			return domain.FieldValue{}, domain.NewValidationError(
				string(field), "must be a whole number", cleaned)
		}
	}

	if value < band.min || value > band.max {
		return domain.FieldValue{}, domain.NewValidationError(
			string(field),
			fmt.Sprintf("value %v outside plausible range [%v, %v]", value, band.min, band.max),
			cleaned)
	}

	return domain.FieldValue{Field: field, Kind: kind, Number: value}, nil
}

// NormalizeText trims leading/trailing whitespace, collapses internal
// whitespace runs to a single space, and drops non-printable runes.
func NormalizeText(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	lastSpace := false
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsPrint(r):
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// ParseDecimal parses a decimal number tolerating a comma decimal
// separator.
func ParseDecimal(raw string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	return strconv.ParseFloat(normalized, 64)
}
