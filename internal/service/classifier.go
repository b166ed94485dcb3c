package service

import (
	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// ClassifierService turns validated sequencing metrics into a clinical
// disposition. Classification is pure and deterministic: the same
// metrics against threshold sets with equal contents always produce
// the same disposition.
type ClassifierService struct {
	logger *logrus.Logger
}

// NewClassifierService creates a new classifier service
func NewClassifierService(logger *logrus.Logger) *ClassifierService {
	return &ClassifierService{logger: logger}
}

// Classify runs the QC gate, the per-analyte channels and severity
// aggregation for one sample. The threshold set is checked for
// completeness first; clinical output is never computed against a
// partial set.
func (c *ClassifierService) Classify(m domain.Metrics, ts *domain.ThresholdSet) (*domain.Disposition, error) {
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	if !domain.ValidPanel(m.Panel) {
		return nil, domain.NewValidationError("panel", "unknown panel type", string(m.Panel))
	}

	issues := evaluateQC(m, ts)
	status := qcStatus(issues)

	if status == domain.QCFailed {
		c.logger.WithFields(logrus.Fields{
			"panel":             m.Panel,
			"qc_issues":         len(issues),
			"threshold_version": ts.Version,
		}).Warn("Sample failed quality control")

		return &domain.Disposition{
			Category:         domain.QCFail,
			Reportable:       false,
			QCStatus:         status,
			QCIssues:         issues,
			ThresholdVersion: ts.Version,
		}, nil
	}

	verdicts := c.classifyAnalytes(m, ts)
	category := aggregate(verdicts, ts.Policy)

	disposition := &domain.Disposition{
		Category:         category,
		Reportable:       category == domain.ScreenPositive || category == domain.ScreenNegative,
		QCStatus:         status,
		QCIssues:         issues,
		Verdicts:         verdicts,
		ThresholdVersion: ts.Version,
	}

	c.logger.WithFields(logrus.Fields{
		"panel":             m.Panel,
		"category":          disposition.Category,
		"reportable":        disposition.Reportable,
		"verdicts":          len(disposition.Verdicts),
		"threshold_version": ts.Version,
	}).Info("Sample classification completed")

	return disposition, nil
}

// classifyAnalytes runs every channel independently. All verdicts are
// kept so callers can enumerate which analyte drove the disposition.
func (c *ClassifierService) classifyAnalytes(m domain.Metrics, ts *domain.ThresholdSet) []domain.AnalyteVerdict {
	verdicts := []domain.AnalyteVerdict{
		classifyTrisomy(domain.AnalyteT13, m.ZScoreT13, ts.Trisomy),
		classifyTrisomy(domain.AnalyteT18, m.ZScoreT18, ts.Trisomy),
		classifyTrisomy(domain.AnalyteT21, m.ZScoreT21, ts.Trisomy),
	}
	if m.SCAType != "" {
		verdicts = append(verdicts, classifySCA(m, ts))
	}
	for _, f := range m.RATFindings {
		verdicts = append(verdicts, classifyRAT(f, ts.RAT))
	}
	for _, f := range m.CNVFindings {
		verdicts = append(verdicts, classifyCNV(f, ts.CNV))
	}
	return verdicts
}

// verdictCategory maps one analyte verdict onto the disposition
// category it argues for.
func verdictCategory(v domain.AnalyteVerdict) domain.Category {
	switch v.Verdict {
	case domain.VerdictResample:
		return domain.Resample
	case domain.VerdictAmbiguous:
		if v.Action == domain.ActionRelibrary {
			return domain.Relibrary
		}
		return domain.Ambiguous
	case domain.VerdictPositive:
		return domain.ScreenPositive
	default:
		return domain.ScreenNegative
	}
}

// aggregate reduces the verdict list to the single most severe
// category. The relative rank of a positive against non-clean verdicts
// on other channels is a policy point carried on the threshold set.
func aggregate(verdicts []domain.AnalyteVerdict, policy domain.AggregationPolicy) domain.Category {
	rank := func(cat domain.Category) int {
		switch cat {
		case domain.Resample:
			if policy.NonCleanOutranksPositive {
				return 4
			}
			return 3
		case domain.Relibrary, domain.Ambiguous:
			if policy.NonCleanOutranksPositive {
				return 3
			}
			return 2
		case domain.ScreenPositive:
			if policy.NonCleanOutranksPositive {
				return 2
			}
			return 4
		default:
			return 1
		}
	}

	overall := domain.ScreenNegative
	for _, v := range verdicts {
		if cat := verdictCategory(v); rank(cat) > rank(overall) {
			overall = cat
		}
	}
	return overall
}
