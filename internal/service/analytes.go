package service

import (
	"fmt"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// classifyTrisomy classifies one common-trisomy channel. Boundary
// values belong to the higher-severity bucket.
func classifyTrisomy(analyte domain.Analyte, z float64, ch domain.ChannelThresholds) domain.AnalyteVerdict {
	v := domain.AnalyteVerdict{Analyte: analyte, ZScore: z, Action: domain.ActionNone}
	switch {
	case z >= ch.High:
		v.Verdict = domain.VerdictPositive
		v.Detail = fmt.Sprintf("z=%.2f at or above positive cutoff %.2f", z, ch.High)
	case z >= ch.Low:
		v.Verdict = domain.VerdictAmbiguous
		v.Action = domain.ActionRelibrary
		v.Detail = fmt.Sprintf("z=%.2f in gray zone [%.2f, %.2f)", z, ch.Low, ch.High)
	default:
		v.Verdict = domain.VerdictLowRisk
	}
	return v
}

// classifySCA classifies the sex-chromosome channel. The verdict is
// driven by the karyotype call; borderline monosomy and trisomy calls
// additionally need Z-score confirmation before being reported
// positive. The fetal-fraction guard keeps the channel safe when it is
// called outside Classify; through Classify the QC gate has already
// failed any sample with a fetal fraction that low.
func classifySCA(m domain.Metrics, ts *domain.ThresholdSet) domain.AnalyteVerdict {
	v := domain.AnalyteVerdict{Analyte: domain.AnalyteSCA, Action: domain.ActionNone}

	if m.CFF < ts.QC.MinCFF {
		v.Verdict = domain.VerdictResample
		v.Action = domain.ActionResample
		v.Detail = fmt.Sprintf("fetal fraction %.2f%% too low for a sex-chromosome call", m.CFF)
		return v
	}

	switch m.SCAType {
	case domain.SCAXX, domain.SCAXY:
		v.Verdict = domain.VerdictLowRisk
		v.Detail = fmt.Sprintf("normal karyotype %s", m.SCAType)
	case domain.SCAXXY, domain.SCAXYY, domain.SCAXXXXY:
		v.Verdict = domain.VerdictPositive
		v.ZScore = m.ZScoreXY
		v.Detail = fmt.Sprintf("karyotype call %s", m.SCAType)
	case domain.SCAXO, domain.SCAXXX:
		v.ZScore = m.ZScoreXX
		if m.ZScoreXX >= ts.SCA.XXThreshold {
			v.Verdict = domain.VerdictPositive
			v.Detail = fmt.Sprintf("karyotype call %s confirmed at z=%.2f", m.SCAType, m.ZScoreXX)
		} else {
			v.Verdict = domain.VerdictAmbiguous
			v.Action = domain.ActionRelibrary
			v.Detail = fmt.Sprintf("karyotype call %s unconfirmed, z=%.2f below %.2f", m.SCAType, m.ZScoreXX, ts.SCA.XXThreshold)
		}
	case domain.SCAXOXY:
		v.ZScore = m.ZScoreXY
		if m.ZScoreXY >= ts.SCA.XYThreshold {
			v.Verdict = domain.VerdictPositive
			v.Detail = fmt.Sprintf("karyotype call %s confirmed at z=%.2f", m.SCAType, m.ZScoreXY)
		} else {
			v.Verdict = domain.VerdictAmbiguous
			v.Action = domain.ActionRelibrary
			v.Detail = fmt.Sprintf("karyotype call %s unconfirmed, z=%.2f below %.2f", m.SCAType, m.ZScoreXY, ts.SCA.XYThreshold)
		}
	default:
		v.Verdict = domain.VerdictAmbiguous
		v.Action = domain.ActionRelibrary
		v.Detail = fmt.Sprintf("unrecognised karyotype call %q", m.SCAType)
	}
	return v
}

// classifyRAT classifies one rare-autosomal-trisomy finding.
func classifyRAT(f domain.RATFinding, ch domain.ChannelThresholds) domain.AnalyteVerdict {
	v := domain.AnalyteVerdict{
		Analyte: domain.AnalyteRAT,
		ZScore:  f.ZScore,
		Action:  domain.ActionNone,
		Detail:  fmt.Sprintf("chromosome %d", f.Chromosome),
	}
	switch {
	case f.ZScore >= ch.High:
		v.Verdict = domain.VerdictPositive
		v.Detail = fmt.Sprintf("chromosome %d, z=%.2f at or above %.2f", f.Chromosome, f.ZScore, ch.High)
	case f.ZScore > ch.Low:
		v.Verdict = domain.VerdictAmbiguous
		v.Action = domain.ActionRelibrary
		v.Detail = fmt.Sprintf("chromosome %d, z=%.2f above screening cutoff %.2f", f.Chromosome, f.ZScore, ch.Low)
	default:
		v.Verdict = domain.VerdictLowRisk
	}
	return v
}

// cnvRatioCutoff returns the abnormal-ratio percentage at which a CNV
// of the given size is flagged. Larger events are called at lower
// ratios.
func cnvRatioCutoff(sizeMb float64, cnv domain.CNVThresholds) float64 {
	switch {
	case sizeMb >= 10:
		return cnv.Size10Plus
	case sizeMb > 7:
		return cnv.Size7Plus
	case sizeMb > 3.5:
		return cnv.Size35Plus
	default:
		return cnv.SizeSmaller
	}
}

// classifyCNV classifies one copy-number finding.
func classifyCNV(f domain.CNVFinding, cnv domain.CNVThresholds) domain.AnalyteVerdict {
	cutoff := cnvRatioCutoff(f.SizeMb, cnv)
	v := domain.AnalyteVerdict{
		Analyte: domain.AnalyteCNV,
		Action:  domain.ActionNone,
		Detail:  fmt.Sprintf("%s, %.1f Mb", f.Region, f.SizeMb),
	}
	if f.Ratio >= cutoff {
		v.Verdict = domain.VerdictAmbiguous
		v.Action = domain.ActionRelibrary
		v.Detail = fmt.Sprintf("%s, %.1f Mb, ratio %.1f%% at or above %.1f%%", f.Region, f.SizeMb, f.Ratio, cutoff)
	} else {
		v.Verdict = domain.VerdictLowRisk
	}
	return v
}
