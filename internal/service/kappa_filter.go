package service

import (
	"coding-agreement/internal/models"
	"coding-agreement/internal/state"

	"gonum.org/v1/gonum/stat"
)

// FilterKappaStatistics derives the statistics restricted to pairs whose two
// coders are both active. The original is never modified; the result shares
// no memory with it, so repeated filtering cannot drift. method selects the
// mean reported as AverageKappa, whatever the original carries.
func FilterKappaStatistics(original *models.KappaStatistics, active *state.SourceSelection, comparisons []models.WithinTrainingComparison, method models.WeightingMethod) *models.KappaStatistics {
	if original == nil {
		return nil
	}
	filtered := original.Clone()

	variables := make([]models.KappaVariable, 0, len(filtered.Variables))
	for _, v := range filtered.Variables {
		pairs := make([]models.KappaCoderPair, 0, len(v.CoderPairs))
		for _, p := range v.CoderPairs {
			if active.Contains(p.Coder1ID) && active.Contains(p.Coder2ID) {
				pairs = append(pairs, p)
			}
		}
		if len(pairs) == 0 {
			continue
		}
		v.CoderPairs = pairs
		variables = append(variables, v)
	}
	filtered.Variables = variables

	filtered.WorkspaceSummary = SummarizeKappa(variables, comparisons, active, method)
	return filtered
}

// SummarizeKappa aggregates the pairs of variables into a workspace summary.
// Pairs without valid overlap are ignored; kappa means additionally skip
// pairs whose kappa is undefined.
func SummarizeKappa(variables []models.KappaVariable, comparisons []models.WithinTrainingComparison, active *state.SourceSelection, method models.WeightingMethod) models.WorkspaceSummary {
	var kappas, kappaWeights, agreements, agreementWeights []float64
	pairCount := 0

	for _, v := range variables {
		for _, p := range v.CoderPairs {
			if p.ValidPairs <= 0 {
				continue
			}
			pairCount++
			agreements = append(agreements, p.Agreement)
			agreementWeights = append(agreementWeights, float64(p.ValidPairs))
			if p.Kappa != nil {
				kappas = append(kappas, *p.Kappa)
				kappaWeights = append(kappaWeights, float64(p.ValidPairs))
			}
		}
	}

	weighted := method == models.WeightingWeighted
	return models.WorkspaceSummary{
		TotalDoubleCodedResponses: CountDoubleCoded(comparisons, active),
		TotalCoderPairs:           pairCount,
		AverageKappa:              mean(kappas, kappaWeights, weighted),
		MeanAgreement:             mean(agreements, agreementWeights, weighted),
		VariablesIncluded:         len(variables),
		CodersIncluded:            active.Len(),
		WeightingMethod:           method,
	}
}

// mean returns nil for an empty sample
func mean(values, weights []float64, weighted bool) *float64 {
	if len(values) == 0 {
		return nil
	}
	if !weighted {
		weights = nil
	}
	m := stat.Mean(values, weights)
	return &m
}

// InterpretKappa labels a kappa value on the Landis & Koch scale.
// An undefined kappa yields an empty label.
func InterpretKappa(kappa *float64) string {
	if kappa == nil {
		return ""
	}
	k := *kappa
	switch {
	case k < 0:
		return "poor"
	case k <= 0.20:
		return "slight"
	case k <= 0.40:
		return "fair"
	case k <= 0.60:
		return "moderate"
	case k <= 0.80:
		return "substantial"
	default:
		return "almost perfect"
	}
}
