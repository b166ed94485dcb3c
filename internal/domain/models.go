package domain

import (
	"time"
)

// PatientIdentity is one row of the patient registry. Among non-deleted
// patients the MRN is unique; soft deletion relabels the MRN so the
// original number becomes immediately reusable.
type PatientIdentity struct {
	ID               int64     `json:"id"`
	MRN              string    `json:"mrn"`
	FullName         string    `json:"full_name"`
	Age              int       `json:"age"`
	WeightKg         float64   `json:"weight_kg"`
	HeightCm         int       `json:"height_cm"`
	BMI              float64   `json:"bmi"`
	GestationalWeeks int       `json:"gestational_weeks"`
	Notes            string    `json:"notes,omitempty"`
	Deleted          bool      `json:"deleted"`
	CreatedAt        time.Time `json:"created_at"`
}

// Orphan reports whether the identity has no attached results, making
// it eligible for automatic replacement during import.
func Orphan(resultCount int) bool { return resultCount == 0 }

// RATFinding is one rare-autosomal-trisomy observation.
type RATFinding struct {
	Chromosome int     `json:"chromosome"`
	ZScore     float64 `json:"z_score"`
}

// CNVFinding is one copy-number-variant observation.
type CNVFinding struct {
	Region string  `json:"region"`
	SizeMb float64 `json:"size_mb"`
	Ratio  float64 `json:"ratio"`
}

// Metrics holds the validated numeric inputs of one classification call.
type Metrics struct {
	Panel        PanelType `json:"panel"`
	TestNumber   int       `json:"test_number"`
	ReadsM       float64   `json:"reads_m"`
	CFF          float64   `json:"cff"`
	GCContent    float64   `json:"gc_content"`
	QualityScore float64   `json:"quality_score"`
	UniqueRate   float64   `json:"unique_rate"`
	ErrorRate    float64   `json:"error_rate"`

	ZScoreT13 float64 `json:"z_score_t13"`
	ZScoreT18 float64 `json:"z_score_t18"`
	ZScoreT21 float64 `json:"z_score_t21"`
	ZScoreXX  float64 `json:"z_score_xx"`
	ZScoreXY  float64 `json:"z_score_xy"`

	SCAType     SCAType      `json:"sca_type"`
	RATFindings []RATFinding `json:"rat_findings,omitempty"`
	CNVFindings []CNVFinding `json:"cnv_findings,omitempty"`
}

// QCIssue is one failed or flagged quality-control check.
type QCIssue struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Limit  float64 `json:"limit"`
	Hard   bool    `json:"hard"`
	Detail string  `json:"detail"`
	Remedy Action  `json:"remedy"`
}

// AnalyteVerdict is the classification outcome for one analyte channel.
// Every verdict is preserved through aggregation so callers can always
// enumerate which analyte drove a disposition.
type AnalyteVerdict struct {
	Analyte Analyte `json:"analyte"`
	Verdict Verdict `json:"verdict"`
	Action  Action  `json:"action"`
	ZScore  float64 `json:"z_score"`
	Detail  string  `json:"detail,omitempty"`
}

// Disposition is the output of one classification call.
type Disposition struct {
	Category         Category         `json:"category"`
	Reportable       bool             `json:"reportable"`
	QCStatus         QCStatus         `json:"qc_status"`
	QCIssues         []QCIssue        `json:"qc_issues,omitempty"`
	Verdicts         []AnalyteVerdict `json:"verdicts"`
	ThresholdVersion string           `json:"threshold_version"`
}

// ResultRecord is one persisted analysis result. It belongs to exactly
// one PatientIdentity and is immutable once the disposition has been
// computed and saved.
type ResultRecord struct {
	ID          string       `json:"id"`
	PatientID   int64        `json:"patient_id"`
	Metrics     Metrics      `json:"metrics"`
	Disposition *Disposition `json:"disposition"`
	CreatedAt   time.Time    `json:"created_at"`
}
