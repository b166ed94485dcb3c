package domain

// ConfidenceTier represents the confidence level of an extraction pass
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "HIGH"
	ConfidenceMedium ConfidenceTier = "MEDIUM"
	ConfidenceLow    ConfidenceTier = "LOW"
)

// Category represents the overall disposition of a screening result
type Category string

const (
	ScreenNegative Category = "SCREEN_NEGATIVE"
	ScreenPositive Category = "SCREEN_POSITIVE"
	Ambiguous      Category = "AMBIGUOUS"
	Resample       Category = "RESAMPLE"
	Relibrary      Category = "RE_LIBRARY"
	QCFail         Category = "QC_FAIL"
)

// Verdict represents a per-analyte classification outcome
type Verdict string

const (
	VerdictLowRisk   Verdict = "LOW_RISK"
	VerdictAmbiguous Verdict = "AMBIGUOUS"
	VerdictPositive  Verdict = "POSITIVE"
	VerdictResample  Verdict = "RESAMPLE"
)

// Action is the laboratory follow-up an ambiguous verdict requires
type Action string

const (
	ActionNone      Action = "NONE"
	ActionRelibrary Action = "RE_LIBRARY"
	ActionResample  Action = "RESAMPLE"
)

// Analyte identifies one classification channel
type Analyte string

const (
	AnalyteT13 Analyte = "T13"
	AnalyteT18 Analyte = "T18"
	AnalyteT21 Analyte = "T21"
	AnalyteSCA Analyte = "SCA"
	AnalyteRAT Analyte = "RAT"
	AnalyteCNV Analyte = "CNV"
)

// PanelType enumerates the supported sequencing panels
type PanelType string

const (
	PanelBasic    PanelType = "NIPT Basic"
	PanelStandard PanelType = "NIPT Standard"
	PanelPlus     PanelType = "NIPT Plus"
	PanelPro      PanelType = "NIPT Pro"
)

// PanelTypes lists every valid panel, in ascending read-depth order.
var PanelTypes = []PanelType{PanelBasic, PanelStandard, PanelPlus, PanelPro}

// SCAType enumerates recognised sex-chromosome karyotype calls
type SCAType string

const (
	SCAXX    SCAType = "XX"
	SCAXY    SCAType = "XY"
	SCAXO    SCAType = "XO"
	SCAXXX   SCAType = "XXX"
	SCAXXY   SCAType = "XXY"
	SCAXYY   SCAType = "XYY"
	SCAXXXXY SCAType = "XXX+XY"
	SCAXOXY  SCAType = "XO+XY"
)

// SCATypes lists every valid karyotype call.
var SCATypes = []SCAType{SCAXX, SCAXY, SCAXO, SCAXXX, SCAXXY, SCAXYY, SCAXXXXY, SCAXOXY}

// QCStatus is the outcome of the quality-control gate
type QCStatus string

const (
	QCPass    QCStatus = "PASS"
	QCWarning QCStatus = "WARNING"
	QCFailed  QCStatus = "FAIL"
)

func (c ConfidenceTier) String() string { return string(c) }
func (c Category) String() string { return string(c) }
func (v Verdict) String() string { return string(v) }
func (a Analyte) String() string { return string(a) }
func (p PanelType) String() string { return string(p) }
func (s SCAType) String() string { return string(s) }

// ValidPanel reports whether p is a recognised panel type.
func ValidPanel(p PanelType) bool {
	for _, known := range PanelTypes {
		if p == known {
			return true
		}
	}
	return false
}

// ValidSCAType reports whether s is a recognised karyotype call.
func ValidSCAType(s SCAType) bool {
	for _, known := range SCATypes {
		if s == known {
			return true
		}
	}
	return false
}
