package report

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestExtractor() *Extractor {
	return NewExtractor(domain.ExtractionConfig{}, newTestLogger())
}

const fullReportText = `
NIPT LABORATORY REPORT

Patient Name: Jane Doe
MRN: 123456
Maternal Age: 32 years
Weight: 68.5 kg
Height: 165 cm
Gestational Age: 12 weeks
Panel: NIPT Standard

SEQUENCING METRICS
Total Reads: 8.2 M
Fetal Fraction: 9.8 %
GC Content: 41.2 %
Quality Score: 1.2
Unique Rate: 75.0 %
Error Rate: 0.4 %

ANEUPLOIDY ANALYSIS
Trisomy 21 (Z: 1.1)
Trisomy 18 (Z: 0.3)
Trisomy 13 (Z: -0.2)
Fetal Sex: Female
`

func TestExtractFullReport(t *testing.T) {
	extractor := newTestExtractor()

	outcome, err := extractor.Extract(fullReportText)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}

	wantText := map[domain.Field]string{
		domain.FieldPatientName: "Jane Doe",
		domain.FieldMRN:         "123456",
		domain.FieldPanel:       "NIPT Standard",
		domain.FieldSCAType:     "XX",
	}
	for field, want := range wantText {
		if got := outcome.Text(field); got != want {
			t.Errorf("Text(%s) = %q, want %q", field, got, want)
		}
	}

	wantNumber := map[domain.Field]float64{
		domain.FieldAge:              32,
		domain.FieldWeightKg:         68.5,
		domain.FieldHeightCm:         165,
		domain.FieldGestationalWeeks: 12,
		domain.FieldReadsM:           8.2,
		domain.FieldCFF:              9.8,
		domain.FieldGCContent:        41.2,
		domain.FieldQualityScore:     1.2,
		domain.FieldUniqueRate:       75.0,
		domain.FieldErrorRate:        0.4,
		domain.FieldZScoreT21:        1.1,
		domain.FieldZScoreT18:        0.3,
		domain.FieldZScoreT13:        -0.2,
	}
	for field, want := range wantNumber {
		if got := outcome.Number(field); got != want {
			t.Errorf("Number(%s) = %v, want %v", field, got, want)
		}
	}

	if outcome.Confidence != domain.ConfidenceHigh {
		t.Errorf("Confidence = %s, want %s", outcome.Confidence, domain.ConfidenceHigh)
	}
	if len(outcome.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", outcome.Warnings)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	extractor := newTestExtractor()

	tests := []struct {
		name string
		text string
	}{
		{"Empty string", ""},
		{"Invalid UTF-8", "Patient\xff\xfeName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractor.Extract(tt.text)
			if err == nil {
				t.Fatal("Extract() expected error, got nil")
			}
			if !errors.Is(err, domain.ErrEmptyInput) {
				t.Errorf("error does not wrap ErrEmptyInput: %v", err)
			}
			var ierr *domain.ExtractionInputError
			if !errors.As(err, &ierr) {
				t.Errorf("expected *domain.ExtractionInputError, got %T", err)
			}
		})
	}
}

func TestExtractMissingFieldsNeverError(t *testing.T) {
	extractor := newTestExtractor()

	// A report with nothing extractable still yields an outcome.
	outcome, err := extractor.Extract(strings.Repeat("lorem ipsum dolor sit amet ", 10))
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if len(outcome.Fields) != 0 {
		t.Errorf("Fields = %v, want none", outcome.Fields)
	}
	if len(outcome.Missing) != len(fieldSpecs) {
		t.Errorf("Missing covers %d fields, want %d", len(outcome.Missing), len(fieldSpecs))
	}
	if outcome.Confidence != domain.ConfidenceLow {
		t.Errorf("Confidence = %s, want %s", outcome.Confidence, domain.ConfidenceLow)
	}
}

func TestExtractFallbackOrdering(t *testing.T) {
	extractor := newTestExtractor()

	// The MRN pattern matches first but the captured value fails the
	// digits-only rule; the lower-priority patient-ID pattern must
	// still be tried and its value accepted.
	text := fullReportText + "\nextra padding line\n"
	text = strings.Replace(text, "MRN: 123456", "MRN: ABC-99\nPatient ID: 778899", 1)

	outcome, err := extractor.Extract(text)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	ex, ok := outcome.Fields[domain.FieldMRN]
	if !ok {
		t.Fatal("MRN not extracted")
	}
	if ex.Value.Text != "778899" {
		t.Errorf("MRN = %q, want %q", ex.Value.Text, "778899")
	}
	if ex.PatternRank != 1 {
		t.Errorf("MRN pattern rank = %d, want 1", ex.PatternRank)
	}
}

func TestExtractLastMatchWinsForZScores(t *testing.T) {
	extractor := newTestExtractor()

	// Reports repeat the aneuploidy section; the final occurrence of a
	// Z-score is the verified value.
	text := fullReportText + "\nVERIFIED RESULTS\nTrisomy 21 (Z: 7.2)\n"

	outcome, err := extractor.Extract(text)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if got := outcome.Number(domain.FieldZScoreT21); got != 7.2 {
		t.Errorf("z_score_t21 = %v, want 7.2", got)
	}
}

func TestExtractReadsUnitNormalization(t *testing.T) {
	extractor := newTestExtractor()

	text := strings.Replace(fullReportText, "Total Reads: 8.2 M", "Total Reads: 8200000", 1)

	outcome, err := extractor.Extract(text)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if got := outcome.Number(domain.FieldReadsM); got != 8.2 {
		t.Errorf("reads_m = %v, want 8.2", got)
	}
}

func TestExtractShortTextWarning(t *testing.T) {
	extractor := newTestExtractor()

	outcome, err := extractor.Extract("MRN: 123456")
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if len(outcome.Warnings) == 0 {
		t.Fatal("expected a short-text warning")
	}
}

func TestExtractConfidenceTiers(t *testing.T) {
	extractor := newTestExtractor()

	tierRank := map[domain.ConfidenceTier]int{
		domain.ConfidenceLow:    0,
		domain.ConfidenceMedium: 1,
		domain.ConfidenceHigh:   2,
	}

	coreOnly := strings.Repeat("padding line of filler text\n", 5) + `
Patient Name: Jane Doe
MRN: 123456
Trisomy 21 (Z: 1.1)
`

	tests := []struct {
		name string
		text string
		want domain.ConfidenceTier
	}{
		{"Full report is high", fullReportText, domain.ConfidenceHigh},
		{"Core only is low coverage", coreOnly, domain.ConfidenceLow},
		{"Missing MRN forces low", strings.Replace(fullReportText, "MRN: 123456\n", "", 1), domain.ConfidenceLow},
		{"Missing name forces low", strings.Replace(fullReportText, "Patient Name: Jane Doe\n", "", 1), domain.ConfidenceLow},
	}

	outcomes := make(map[string]domain.ConfidenceTier, len(tests))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := extractor.Extract(tt.text)
			if err != nil {
				t.Fatalf("Extract() unexpected error: %v", err)
			}
			if outcome.Confidence != tt.want {
				t.Errorf("Confidence = %s, want %s", outcome.Confidence, tt.want)
			}
			outcomes[tt.name] = outcome.Confidence
		})
	}

	// Extracting strictly more fields never lowers the tier.
	if tierRank[outcomes["Full report is high"]] < tierRank[outcomes["Core only is low coverage"]] {
		t.Error("confidence decreased when more fields were extracted")
	}
}
