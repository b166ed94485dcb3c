package report

import (
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// Default confidence cut points and the minimum plausible length of
// machine-readable report text.
const (
	DefaultHighConfidence = 0.75
	DefaultLowConfidence  = 0.40
	DefaultMinTextLen     = 100
)

// Extractor pulls clinical fields out of free-form report text using
// ordered fallback patterns, validating every candidate before
// accepting it. Extraction never fails on missing fields; only
// unusable input is an error.
type Extractor struct {
	validator  *Validator
	highCut    float64
	lowCut     float64
	minTextLen int
	logger     *logrus.Logger
}

// NewExtractor creates an extractor with the given cut points. Zero
// values fall back to the defaults.
func NewExtractor(cfg domain.ExtractionConfig, logger *logrus.Logger) *Extractor {
	if cfg.HighConfidence <= 0 {
		cfg.HighConfidence = DefaultHighConfidence
	}
	if cfg.LowConfidence <= 0 {
		cfg.LowConfidence = DefaultLowConfidence
	}
	if cfg.MinTextLen <= 0 {
		cfg.MinTextLen = DefaultMinTextLen
	}
	return &Extractor{
		validator:  NewValidatorWithOptions(cfg.AllowAlphanumericMRN),
		highCut:    cfg.HighConfidence,
		lowCut:     cfg.LowConfidence,
		minTextLen: cfg.MinTextLen,
		logger:     logger,
	}
}

// Extract runs one extraction pass over report text. The outcome always
// covers the full field set: fields that could not be extracted appear
// in Missing, never as an error. The only error conditions are empty
// and undecodable input.
func (e *Extractor) Extract(text string) (*domain.ExtractionOutcome, error) {
	if text == "" {
		return nil, domain.NewExtractionInputError("empty report text", domain.ErrEmptyInput)
	}
	if !utf8.ValidString(text) {
		return nil, domain.NewExtractionInputError("report text is not valid UTF-8", domain.ErrEmptyInput)
	}

	outcome := &domain.ExtractionOutcome{
		Fields: make(map[domain.Field]domain.ExtractedField, len(fieldSpecs)),
	}
	if len(text) < e.minTextLen {
		outcome.Warnings = append(outcome.Warnings,
			"report text unusually short; source may be a scanned or image-only document")
	}

	var got, total int
	for _, spec := range fieldSpecs {
		total += spec.weight
		ex, ok := e.extractField(spec, text)
		if !ok {
			outcome.Missing = append(outcome.Missing, spec.field)
			continue
		}
		outcome.Fields[spec.field] = ex
		got += spec.weight
	}

	outcome.Confidence = e.scoreConfidence(outcome, float64(got)/float64(total))

	e.logger.WithFields(logrus.Fields{
		"extracted":  len(outcome.Fields),
		"missing":    len(outcome.Missing),
		"confidence": outcome.Confidence,
	}).Debug("report extraction completed")

	return outcome, nil
}

// extractField walks the field's patterns in priority order and returns
// the first candidate that passes validation. A match that fails
// validation does not stop the search; lower-priority patterns still
// get their turn.
func (e *Extractor) extractField(spec fieldSpec, text string) (domain.ExtractedField, bool) {
	for rank, ep := range spec.enums {
		if ep.pattern.MatchString(text) {
			value, err := e.validator.Validate(spec.field, ep.value)
			if err != nil {
				continue
			}
			return domain.ExtractedField{Value: value, PatternRank: rank}, true
		}
	}

	for rank, pattern := range spec.patterns {
		raw, ok := matchCapture(pattern, text, spec.lastMatch)
		if !ok {
			continue
		}
		value, err := e.validator.Validate(spec.field, normalizeRaw(spec.field, raw))
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"field": spec.field,
				"rank":  rank,
			}).Debug("extracted candidate rejected by validation")
			continue
		}
		return domain.ExtractedField{Value: value, PatternRank: rank}, true
	}
	return domain.ExtractedField{}, false
}

// matchCapture returns the first capture group of a pattern match,
// taking the last document-order match when last is set.
func matchCapture(pattern *regexp.Regexp, text string, last bool) (string, bool) {
	if !last {
		m := pattern.FindStringSubmatch(text)
		if len(m) < 2 {
			return "", false
		}
		return m[1], true
	}
	all := pattern.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return "", false
	}
	m := all[len(all)-1]
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// normalizeRaw converts unit variants into the canonical unit before
// validation. Read counts reported as raw read totals become millions.
func normalizeRaw(field domain.Field, raw string) string {
	if field != domain.FieldReadsM {
		return raw
	}
	n, err := ParseDecimal(raw)
	if err != nil || n <= 100 {
		return raw
	}
	return strconv.FormatFloat(n/1e6, 'f', -1, 64)
}

// scoreConfidence maps weighted field coverage onto a tier. Missing
// core identity (name, MRN, at least one common trisomy Z-score)
// forces LOW regardless of coverage.
func (e *Extractor) scoreConfidence(o *domain.ExtractionOutcome, coverage float64) domain.ConfidenceTier {
	_, hasName := o.Get(domain.FieldPatientName)
	_, hasMRN := o.Get(domain.FieldMRN)
	hasZ := false
	for _, f := range trisomyZFields {
		if _, ok := o.Get(f); ok {
			hasZ = true
			break
		}
	}

	if !hasName || !hasMRN || !hasZ || coverage < e.lowCut {
		return domain.ConfidenceLow
	}
	if coverage >= e.highCut {
		return domain.ConfidenceHigh
	}
	return domain.ConfidenceMedium
}
