package report

import (
	"errors"
	"strconv"
	"testing"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

func trimFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func TestValidateName(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"Simple name", "Jane Doe", "Jane Doe", false},
		{"Hyphenated surname", "Anna Smith-Jones", "Anna Smith-Jones", false},
		{"Apostrophe", "Mary O'Brien", "Mary O'Brien", false},
		{"Initial with period", "J. Doe", "J. Doe", false},
		{"Whitespace collapsed", "  Jane   Doe  ", "Jane Doe", false},
		{"Too short", "J", "", true},
		{"Digits rejected", "Jane D0e", "", true},
		{"Leading punctuation", "-Jane", "", true},
		{"Empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.Validate(domain.FieldPatientName, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Text != tt.want {
				t.Errorf("Validate() = %q, want %q", got.Text, tt.want)
			}
		})
	}
}

func TestValidateMRN(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		alphanumeric bool
		wantErr      bool
	}{
		{"Numeric MRN", "123456", false, false},
		{"Numeric MRN relaxed", "123456", true, false},
		{"Alphanumeric rejected strict", "MRN-12A", false, true},
		{"Alphanumeric accepted relaxed", "MRN-12A", true, false},
		{"Underscore relaxed", "PT_001", true, false},
		{"Empty", "", false, true},
		{"Spaces inside", "12 34", false, true},
		{"Too long", "123456789012345678901234567890123456789012345678901", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewValidatorWithOptions(tt.alphanumeric)
			_, err := validator.Validate(domain.FieldMRN, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNumericRanges(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name    string
		field   domain.Field
		raw     string
		want    float64
		wantErr bool
	}{
		{"Age in range", domain.FieldAge, "32", 32, false},
		{"Age at lower bound", domain.FieldAge, "15", 15, false},
		{"Age at upper bound", domain.FieldAge, "60", 60, false},
		{"Age below range", domain.FieldAge, "14", 0, true},
		{"Age above range", domain.FieldAge, "61", 0, true},
		{"Fractional age rejected", domain.FieldAge, "25.7", 0, true},
		{"Fractional height rejected", domain.FieldHeightCm, "165.5", 0, true},
		{"Fractional weeks rejected", domain.FieldGestationalWeeks, "12,5", 0, true},
		{"Weight in range", domain.FieldWeightKg, "68.5", 68.5, false},
		{"Weight below range", domain.FieldWeightKg, "29", 0, true},
		{"Height in range", domain.FieldHeightCm, "165", 165, false},
		{"Height above range", domain.FieldHeightCm, "230", 0, true},
		{"Weeks in range", domain.FieldGestationalWeeks, "12", 12, false},
		{"Weeks below range", domain.FieldGestationalWeeks, "8", 0, true},
		{"Reads in range", domain.FieldReadsM, "8.2", 8.2, false},
		{"Reads above range", domain.FieldReadsM, "150", 0, true},
		{"CFF in range", domain.FieldCFF, "9.8", 9.8, false},
		{"CFF below range", domain.FieldCFF, "0.4", 0, true},
		{"GC in range", domain.FieldGCContent, "41.2", 41.2, false},
		{"GC above range", domain.FieldGCContent, "85", 0, true},
		{"Comma decimal separator", domain.FieldCFF, "9,8", 9.8, false},
		{"Negative Z-score", domain.FieldZScoreT21, "-1.3", -1.3, false},
		{"Z-score below range", domain.FieldZScoreT21, "-25", 0, true},
		{"Z-score above range", domain.FieldZScoreT21, "55", 0, true},
		{"Not a number", domain.FieldAge, "thirty", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.Validate(tt.field, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%s, %q) error = %v, wantErr %v", tt.field, tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && got.Number != tt.want {
				t.Errorf("Validate(%s, %q) = %v, want %v", tt.field, tt.raw, got.Number, tt.want)
			}
		})
	}
}

func TestValidateEnums(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name    string
		field   domain.Field
		raw     string
		want    string
		wantErr bool
	}{
		{"Known panel", domain.FieldPanel, "NIPT Standard", "NIPT Standard", false},
		{"Panel case-insensitive", domain.FieldPanel, "nipt pro", "NIPT Pro", false},
		{"Unknown panel", domain.FieldPanel, "NIPT Extra", "", true},
		{"Karyotype XX", domain.FieldSCAType, "XX", "XX", false},
		{"Karyotype lowercase", domain.FieldSCAType, "xxy", "XXY", false},
		{"Compound karyotype", domain.FieldSCAType, "XXX + XY", "XXX+XY", false},
		{"Unknown karyotype", domain.FieldSCAType, "XZ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.Validate(tt.field, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%s, %q) error = %v, wantErr %v", tt.field, tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && got.Text != tt.want {
				t.Errorf("Validate(%s, %q) = %q, want %q", tt.field, tt.raw, got.Text, tt.want)
			}
		})
	}
}

func TestValidateIdempotent(t *testing.T) {
	validator := NewValidator()

	inputs := map[domain.Field]string{
		domain.FieldPatientName: "  Jane   Doe ",
		domain.FieldMRN:         "123456",
		domain.FieldAge:         "32",
		domain.FieldCFF:         "9,8",
		domain.FieldPanel:       "nipt standard",
	}

	for field, raw := range inputs {
		first, err := validator.Validate(field, raw)
		if err != nil {
			t.Fatalf("Validate(%s, %q) unexpected error: %v", field, raw, err)
		}

		// Re-validating an accepted value must accept it unchanged.
		canonical := first.Text
		if first.Kind == domain.KindInt || first.Kind == domain.KindFloat {
			canonical = trimFloat(first.Number)
		}
		second, err := validator.Validate(field, canonical)
		if err != nil {
			t.Fatalf("re-Validate(%s, %q) unexpected error: %v", field, canonical, err)
		}
		if second != first {
			t.Errorf("Validate(%s) not idempotent: first %+v, second %+v", field, first, second)
		}
	}
}

func TestValidationErrorDetails(t *testing.T) {
	validator := NewValidator()

	_, err := validator.Validate(domain.FieldAge, "14")
	if err == nil {
		t.Fatal("expected validation error for out-of-range age")
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *domain.ValidationError, got %T", err)
	}
	if verr.Field != string(domain.FieldAge) {
		t.Errorf("ValidationError.Field = %q, want %q", verr.Field, domain.FieldAge)
	}
	if verr.Value != "14" {
		t.Errorf("ValidationError.Value = %q, want %q", verr.Value, "14")
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"Trim and collapse", "  a \t b\n c ", "a b c"},
		{"Non-printable stripped", "a\x00b\x07c", "abc"},
		{"Already clean", "abc", "abc"},
		{"Only whitespace", " \t\n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.raw); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
