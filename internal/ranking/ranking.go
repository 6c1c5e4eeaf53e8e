package ranking

import (
	"math"
	"sort"

	"github.com/spigell/shortlister/internal/screening"
)

// Band groups match scores for the distribution overview.
type Band string

const (
	BandExcellent Band = "excellent"
	BandGood      Band = "good"
	BandFair      Band = "fair"
	BandPoor      Band = "poor"
)

// Bands lists every band from best to worst.
var Bands = []Band{BandExcellent, BandGood, BandFair, BandPoor}

// BandOf returns the band a score falls into.
func BandOf(score int) Band {
	switch {
	case score >= 85:
		return BandExcellent
	case score >= 70:
		return BandGood
	case score >= 50:
		return BandFair
	default:
		return BandPoor
	}
}

// Summary holds the headline numbers of a batch. Error records count as zeros.
type Summary struct {
	Count             int                          `json:"count"`
	Succeeded         int                          `json:"succeeded"`
	Failed            int                          `json:"failed"`
	AverageScore      int                          `json:"averageScore"`
	AverageExperience int                          `json:"averageExperience"`
	Top               *screening.CandidateAnalysis `json:"top,omitempty"`
	Distribution      map[Band]int                 `json:"distribution"`
}

// Rank returns a new slice ordered by match score, highest first. Equal scores
// keep their submission order. The input is not modified.
func Rank(results []screening.CandidateAnalysis) []screening.CandidateAnalysis {
	ranked := append([]screening.CandidateAnalysis(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MatchScore > ranked[j].MatchScore
	})
	return ranked
}

// Summarize computes the summary over all results.
func Summarize(results []screening.CandidateAnalysis) Summary {
	summary := Summary{
		Count:        len(results),
		Distribution: make(map[Band]int, len(Bands)),
	}
	for _, band := range Bands {
		summary.Distribution[band] = 0
	}

	if len(results) == 0 {
		return summary
	}

	var scores, experience float64
	for _, result := range results {
		scores += float64(result.MatchScore)
		experience += result.ExperienceYears
		summary.Distribution[BandOf(result.MatchScore)]++
		if result.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	n := float64(len(results))
	summary.AverageScore = int(math.Round(scores / n))
	summary.AverageExperience = int(math.Round(experience / n))

	top := Rank(results)[0]
	summary.Top = &top

	return summary
}
