package domain

import "sort"

// AgeRisk holds the a-priori maternal-age risks for the three common
// trisomies, expressed as probabilities.
type AgeRisk struct {
	T21 float64 `json:"t21"`
	T18 float64 `json:"t18"`
	T13 float64 `json:"t13"`
}

// Published maternal age-specific risk data (Hook EB, 1981 and updated
// studies). Ages between table rows are linearly interpolated.
var ageRiskTable = map[int]AgeRisk{
	20: {T21: 1.0 / 1441, T18: 1.0 / 10000, T13: 1.0 / 14300},
	25: {T21: 1.0 / 1383, T18: 1.0 / 8300, T13: 1.0 / 12500},
	30: {T21: 1.0 / 959, T18: 1.0 / 5900, T13: 1.0 / 9100},
	32: {T21: 1.0 / 659, T18: 1.0 / 4500, T13: 1.0 / 7100},
	34: {T21: 1.0 / 446, T18: 1.0 / 3300, T13: 1.0 / 5200},
	35: {T21: 1.0 / 356, T18: 1.0 / 2700, T13: 1.0 / 4200},
	36: {T21: 1.0 / 280, T18: 1.0 / 2200, T13: 1.0 / 3400},
	37: {T21: 1.0 / 218, T18: 1.0 / 1800, T13: 1.0 / 2700},
	38: {T21: 1.0 / 167, T18: 1.0 / 1400, T13: 1.0 / 2100},
	39: {T21: 1.0 / 128, T18: 1.0 / 1100, T13: 1.0 / 1700},
	40: {T21: 1.0 / 97, T18: 1.0 / 860, T13: 1.0 / 1300},
	41: {T21: 1.0 / 73, T18: 1.0 / 670, T13: 1.0 / 1000},
	42: {T21: 1.0 / 55, T18: 1.0 / 530, T13: 1.0 / 800},
	43: {T21: 1.0 / 41, T18: 1.0 / 410, T13: 1.0 / 630},
	44: {T21: 1.0 / 30, T18: 1.0 / 320, T13: 1.0 / 490},
	45: {T21: 1.0 / 23, T18: 1.0 / 250, T13: 1.0 / 380},
}

// MaternalAgeRisk returns the age-based prior risk for the common
// trisomies. Ages below 20 clamp to the 20-year row, ages at or above
// 45 clamp to the 45-year row.
func MaternalAgeRisk(age int) AgeRisk {
	if age < 20 {
		return ageRiskTable[20]
	}
	if age >= 45 {
		return ageRiskTable[45]
	}
	if r, ok := ageRiskTable[age]; ok {
		return r
	}

	ages := make([]int, 0, len(ageRiskTable))
	for a := range ageRiskTable {
		ages = append(ages, a)
	}
	sort.Ints(ages)

	for i, tableAge := range ages {
		if age < tableAge {
			prev := ages[i-1]
			ratio := float64(age-prev) / float64(tableAge-prev)
			lo, hi := ageRiskTable[prev], ageRiskTable[tableAge]
			return AgeRisk{
				T21: lo.T21 + (hi.T21-lo.T21)*ratio,
				T18: lo.T18 + (hi.T18-lo.T18)*ratio,
				T13: lo.T13 + (hi.T13-lo.T13)*ratio,
			}
		}
	}
	return ageRiskTable[45]
}
