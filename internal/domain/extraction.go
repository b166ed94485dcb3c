package domain

// Field identifies one extractable clinical field.
type Field string

const (
	FieldPatientName      Field = "patient_name"
	FieldMRN              Field = "mrn"
	FieldAge              Field = "age"
	FieldWeightKg         Field = "weight_kg"
	FieldHeightCm         Field = "height_cm"
	FieldGestationalWeeks Field = "gestational_weeks"
	FieldPanel            Field = "panel"
	FieldReadsM           Field = "reads_m"
	FieldCFF              Field = "cff"
	FieldGCContent        Field = "gc_content"
	FieldQualityScore     Field = "quality_score"
	FieldUniqueRate       Field = "unique_rate"
	FieldErrorRate        Field = "error_rate"
	FieldZScoreT13        Field = "z_score_t13"
	FieldZScoreT18        Field = "z_score_t18"
	FieldZScoreT21        Field = "z_score_t21"
	FieldZScoreXX         Field = "z_score_xx"
	FieldZScoreXY         Field = "z_score_xy"
	FieldSCAType          Field = "sca_type"
)

func (f Field) String() string { return string(f) }

// ValueKind is the semantic type of a field value.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindInt    ValueKind = "int"
	KindFloat  ValueKind = "float"
	KindEnum   ValueKind = "enum"
)

// FieldValue is one accepted, normalized field value.
type FieldValue struct {
	Field  Field     `json:"field"`
	Kind   ValueKind `json:"kind"`
	Text   string    `json:"text,omitempty"`
	Number float64   `json:"number,omitempty"`
}

// Int returns the numeric value truncated to an integer.
func (v FieldValue) Int() int { return int(v.Number) }

// ExtractedField pairs an accepted value with the rank of the pattern
// that produced it (0 is the highest-priority pattern).
type ExtractedField struct {
	Value       FieldValue `json:"value"`
	PatternRank int        `json:"pattern_rank"`
}

// ExtractionOutcome is the immutable result of one extraction pass.
// Corrections happen by producing a new, user-edited field map
// downstream, never by mutating this value.
type ExtractionOutcome struct {
	Fields     map[Field]ExtractedField `json:"fields"`
	Missing    []Field                  `json:"missing"`
	Confidence ConfidenceTier           `json:"confidence"`
	Warnings   []string                 `json:"warnings,omitempty"`
}

// Get returns the extracted value for a field, if present.
func (o *ExtractionOutcome) Get(f Field) (FieldValue, bool) {
	ex, ok := o.Fields[f]
	return ex.Value, ok
}

// Number returns the numeric value of a field, or 0 when absent.
func (o *ExtractionOutcome) Number(f Field) float64 {
	if ex, ok := o.Fields[f]; ok {
		return ex.Value.Number
	}
	return 0
}

// Text returns the text value of a field, or "" when absent.
func (o *ExtractionOutcome) Text(f Field) string {
	if ex, ok := o.Fields[f]; ok {
		return ex.Value.Text
	}
	return ""
}
