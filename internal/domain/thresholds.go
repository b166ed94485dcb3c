package domain

import "fmt"

// QCThresholds holds the quality-control acceptance bands.
type QCThresholds struct {
	MinCFF          float64               `json:"min_cff" mapstructure:"min_cff"`
	MaxCFF          float64               `json:"max_cff" mapstructure:"max_cff"`
	GCMin           float64               `json:"gc_min" mapstructure:"gc_min"`
	GCMax           float64               `json:"gc_max" mapstructure:"gc_max"`
	MinUniqueRate   float64               `json:"min_unique_rate" mapstructure:"min_unique_rate"`
	MaxErrorRate    float64               `json:"max_error_rate" mapstructure:"max_error_rate"`
	QSLimit         float64               `json:"qs_limit" mapstructure:"qs_limit"`
	PanelReadMinima map[PanelType]float64 `json:"panel_read_minima" mapstructure:"panel_read_minima"`
}

// ChannelThresholds is the (low cutoff, high cutoff) pair of one
// analyte channel. Values below Low are low risk, values in
// [Low, High) are ambiguous, values at or above High are positive.
type ChannelThresholds struct {
	Low  float64 `json:"low" mapstructure:"low"`
	High float64 `json:"high" mapstructure:"high"`
}

// SCAThresholds holds the Z-score cutoffs used to confirm
// sex-chromosome-aneuploidy karyotype calls.
type SCAThresholds struct {
	XXThreshold float64 `json:"xx_threshold" mapstructure:"xx_threshold"`
	XYThreshold float64 `json:"xy_threshold" mapstructure:"xy_threshold"`
}

// CNVThresholds maps CNV size bands to the abnormal-ratio percentage
// at which a finding stops being low risk. Larger events are called at
// lower ratios.
type CNVThresholds struct {
	Size10Plus  float64 `json:"size_10_plus" mapstructure:"size_10_plus"`
	Size7Plus   float64 `json:"size_7_plus" mapstructure:"size_7_plus"`
	Size35Plus  float64 `json:"size_3_5_plus" mapstructure:"size_3_5_plus"`
	SizeSmaller float64 `json:"size_smaller" mapstructure:"size_smaller"`
}

// AggregationPolicy captures the severity-ordering policy point: when
// true, non-clean verdicts (resample, re-library, ambiguous) outrank a
// simultaneous positive on another analyte. Flagged for clinical
// sign-off rather than assumed.
type AggregationPolicy struct {
	NonCleanOutranksPositive bool `json:"non_clean_outranks_positive" mapstructure:"non_clean_outranks_positive"`
}

// ThresholdSet is one versioned, immutable snapshot of QC and clinical
// cutoffs. It is supplied by an external provider, consumed read-only,
// and its version is recorded on every disposition it produces.
type ThresholdSet struct {
	Version string            `json:"version" mapstructure:"version"`
	QC      QCThresholds      `json:"qc" mapstructure:"qc"`
	Trisomy ChannelThresholds `json:"trisomy" mapstructure:"trisomy"`
	SCA     SCAThresholds     `json:"sca" mapstructure:"sca"`
	RAT     ChannelThresholds `json:"rat" mapstructure:"rat"`
	CNV     CNVThresholds     `json:"cnv" mapstructure:"cnv"`
	Policy  AggregationPolicy `json:"policy" mapstructure:"policy"`
}

// DefaultThresholdSet returns the laboratory baseline cutoffs.
func DefaultThresholdSet() *ThresholdSet {
	return &ThresholdSet{
		Version: "baseline-v1",
		QC: QCThresholds{
			MinCFF:        3.5,
			MaxCFF:        50.0,
			GCMin:         37.0,
			GCMax:         44.0,
			MinUniqueRate: 68.0,
			MaxErrorRate:  1.0,
			QSLimit:       1.7,
			PanelReadMinima: map[PanelType]float64{
				PanelBasic:    5,
				PanelStandard: 7,
				PanelPlus:     12,
				PanelPro:      20,
			},
		},
		Trisomy: ChannelThresholds{Low: 2.58, High: 6.0},
		SCA:     SCAThresholds{XXThreshold: 4.5, XYThreshold: 6.0},
		RAT:     ChannelThresholds{Low: 4.5, High: 8.0},
		CNV: CNVThresholds{
			Size10Plus:  6.0,
			Size7Plus:   8.0,
			Size35Plus:  10.0,
			SizeSmaller: 12.0,
		},
		Policy: AggregationPolicy{NonCleanOutranksPositive: true},
	}
}

// Validate checks the set for completeness. Classification refuses to
// run against a set that fails validation.
func (ts *ThresholdSet) Validate() error {
	if ts == nil {
		return NewClassificationConfigError("", "threshold set is nil")
	}
	if ts.Version == "" {
		return NewClassificationConfigError("", "version is required")
	}
	if ts.QC.MinCFF <= 0 || ts.QC.MaxCFF <= ts.QC.MinCFF {
		return NewClassificationConfigError(ts.Version, "CFF band is empty or unordered")
	}
	if ts.QC.GCMin <= 0 || ts.QC.GCMax <= ts.QC.GCMin {
		return NewClassificationConfigError(ts.Version, "GC band is empty or unordered")
	}
	if ts.QC.MinUniqueRate <= 0 || ts.QC.MinUniqueRate > 100 {
		return NewClassificationConfigError(ts.Version, "unique-rate minimum out of range")
	}
	if ts.QC.MaxErrorRate <= 0 {
		return NewClassificationConfigError(ts.Version, "error-rate maximum missing")
	}
	if ts.QC.QSLimit <= 0 {
		return NewClassificationConfigError(ts.Version, "quality-score limit missing")
	}
	if len(ts.QC.PanelReadMinima) == 0 {
		return NewClassificationConfigError(ts.Version, "panel read minima missing")
	}
	for _, p := range PanelTypes {
		if _, ok := ts.QC.PanelReadMinima[p]; !ok {
			return NewClassificationConfigError(ts.Version, fmt.Sprintf("no read minimum for panel %q", p))
		}
	}
	if ts.Trisomy.Low <= 0 || ts.Trisomy.High <= ts.Trisomy.Low {
		return NewClassificationConfigError(ts.Version, "trisomy cutoffs empty or unordered")
	}
	if ts.RAT.Low <= 0 || ts.RAT.High <= ts.RAT.Low {
		return NewClassificationConfigError(ts.Version, "RAT cutoffs empty or unordered")
	}
	if ts.SCA.XXThreshold <= 0 || ts.SCA.XYThreshold <= 0 {
		return NewClassificationConfigError(ts.Version, "SCA cutoffs missing")
	}
	if ts.CNV.Size10Plus <= 0 || ts.CNV.Size7Plus <= 0 || ts.CNV.Size35Plus <= 0 || ts.CNV.SizeSmaller <= 0 {
		return NewClassificationConfigError(ts.Version, "CNV ratio cutoffs missing")
	}
	return nil
}

// ReadMinimum returns the minimum read count for a panel.
func (ts *ThresholdSet) ReadMinimum(panel PanelType) float64 {
	if min, ok := ts.QC.PanelReadMinima[panel]; ok {
		return min
	}
	return ts.QC.PanelReadMinima[PanelBasic]
}
