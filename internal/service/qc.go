package service

import (
	"fmt"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// errorRateAdvisoryFraction is the share of the error-rate limit at
// which a passing sample still gets an advisory issue attached.
const errorRateAdvisoryFraction = 0.8

// evaluateQC runs every quality-control check and returns the issues
// found. Hard issues fail the gate; soft issues are advisories carried
// on a passing disposition.
func evaluateQC(m domain.Metrics, ts *domain.ThresholdSet) []domain.QCIssue {
	var issues []domain.QCIssue

	if min := ts.ReadMinimum(m.Panel); m.ReadsM < min {
		issues = append(issues, domain.QCIssue{
			Metric: "reads_m",
			Value:  m.ReadsM,
			Limit:  min,
			Hard:   true,
			Detail: fmt.Sprintf("%.1fM reads below the %.0fM minimum for %s", m.ReadsM, min, m.Panel),
			Remedy: domain.ActionRelibrary,
		})
	}

	switch {
	case m.CFF < ts.QC.MinCFF:
		issues = append(issues, domain.QCIssue{
			Metric: "cff",
			Value:  m.CFF,
			Limit:  ts.QC.MinCFF,
			Hard:   true,
			Detail: fmt.Sprintf("fetal fraction %.2f%% below minimum %.2f%%", m.CFF, ts.QC.MinCFF),
			Remedy: domain.ActionResample,
		})
	case m.CFF > ts.QC.MaxCFF:
		issues = append(issues, domain.QCIssue{
			Metric: "cff",
			Value:  m.CFF,
			Limit:  ts.QC.MaxCFF,
			Hard:   true,
			Detail: fmt.Sprintf("fetal fraction %.2f%% above maximum %.2f%%", m.CFF, ts.QC.MaxCFF),
			Remedy: domain.ActionResample,
		})
	}

	if m.GCContent < ts.QC.GCMin || m.GCContent > ts.QC.GCMax {
		limit := ts.QC.GCMin
		if m.GCContent > ts.QC.GCMax {
			limit = ts.QC.GCMax
		}
		issues = append(issues, domain.QCIssue{
			Metric: "gc_content",
			Value:  m.GCContent,
			Limit:  limit,
			Hard:   true,
			Detail: fmt.Sprintf("GC content %.1f%% outside [%.1f%%, %.1f%%]", m.GCContent, ts.QC.GCMin, ts.QC.GCMax),
			Remedy: domain.ActionRelibrary,
		})
	}

	if m.UniqueRate < ts.QC.MinUniqueRate {
		issues = append(issues, domain.QCIssue{
			Metric: "unique_rate",
			Value:  m.UniqueRate,
			Limit:  ts.QC.MinUniqueRate,
			Hard:   true,
			Detail: fmt.Sprintf("unique read rate %.1f%% below minimum %.1f%%", m.UniqueRate, ts.QC.MinUniqueRate),
			Remedy: domain.ActionRelibrary,
		})
	}

	switch {
	case m.ErrorRate > ts.QC.MaxErrorRate:
		issues = append(issues, domain.QCIssue{
			Metric: "error_rate",
			Value:  m.ErrorRate,
			Limit:  ts.QC.MaxErrorRate,
			Hard:   true,
			Detail: fmt.Sprintf("error rate %.2f%% above maximum %.2f%%", m.ErrorRate, ts.QC.MaxErrorRate),
			Remedy: domain.ActionRelibrary,
		})
	case m.ErrorRate > ts.QC.MaxErrorRate*errorRateAdvisoryFraction:
		issues = append(issues, domain.QCIssue{
			Metric: "error_rate",
			Value:  m.ErrorRate,
			Limit:  ts.QC.MaxErrorRate,
			Hard:   false,
			Detail: fmt.Sprintf("error rate %.2f%% approaching maximum %.2f%%", m.ErrorRate, ts.QC.MaxErrorRate),
			Remedy: domain.ActionNone,
		})
	}

	if m.QualityScore >= ts.QC.QSLimit {
		issues = append(issues, domain.QCIssue{
			Metric: "quality_score",
			Value:  m.QualityScore,
			Limit:  ts.QC.QSLimit,
			Hard:   true,
			Detail: fmt.Sprintf("quality score %.2f at or above limit %.2f", m.QualityScore, ts.QC.QSLimit),
			Remedy: domain.ActionRelibrary,
		})
	}

	return issues
}

// qcStatus reduces a list of issues to the gate outcome.
func qcStatus(issues []domain.QCIssue) domain.QCStatus {
	status := domain.QCPass
	for _, issue := range issues {
		if issue.Hard {
			return domain.QCFailed
		}
		status = domain.QCWarning
	}
	return status
}
