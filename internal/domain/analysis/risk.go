package analysis

import "sort"

// Weights is the injectable scoring table. Flag types absent from the map
// contribute DefaultFlag points each.
type Weights struct {
	Flags       map[FlagType]int
	Patterns    map[Severity]int
	DefaultFlag int
	DefaultPat  int
}

// DefaultWeights returns the documented scoring table.
func DefaultWeights() Weights {
	return Weights{
		Flags: map[FlagType]int{
			FlagTyposquatting:     50,
			FlagSuspiciousAuthor:  40,
			FlagProcessExecution:  30,
			FlagNetworking:        20,
			FlagRecentPublication: 15,
			FlagLowDownloads:      10,
		},
		Patterns: map[Severity]int{
			SeverityHigh:   30,
			SeverityMedium: 15,
			SeverityLow:    5,
		},
		DefaultFlag: 5,
		DefaultPat:  5,
	}
}

// Scorer turns flags and patterns into a risk tier.
type Scorer struct {
	weights Weights
}

func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score sums the weighted contributions of every flag and pattern and maps
// the total onto a tier. Deterministic for fixed inputs.
func (s *Scorer) Score(flags []MetadataFlag, patterns []FlaggedPattern) RiskTier {
	score := 0
	for _, f := range flags {
		if w, ok := s.weights.Flags[f.Type]; ok {
			score += w
		} else {
			score += s.weights.DefaultFlag
		}
	}
	for _, p := range patterns {
		if w, ok := s.weights.Patterns[p.Severity]; ok {
			score += w
		} else {
			score += s.weights.DefaultPat
		}
	}
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 25:
		return RiskMedium
	case score >= 10:
		return RiskLow
	default:
		return RiskClean
	}
}

// SortByRisk orders results highest risk first. The sort is stable so ties
// keep their original input order.
func SortByRisk(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RiskTier.rank() > results[j].RiskTier.rank()
	})
}
