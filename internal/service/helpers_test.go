package service

import "coding-agreement/internal/models"

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func cross(unit string, codes ...*string) models.CrossSourceComparison {
	rec := models.CrossSourceComparison{UnitName: unit, VariableID: "v1"}
	for i, c := range codes {
		rec.Sources = append(rec.Sources, models.SourceEntry{
			SourceID:    i + 1,
			SourceLabel: string(rune('A' + i)),
			Code:        c,
		})
	}
	return rec
}

func within(unit, variable string, codes map[int]*string, order ...int) models.WithinTrainingComparison {
	rec := models.WithinTrainingComparison{UnitName: unit, VariableID: variable}
	for _, id := range order {
		rec.Coders = append(rec.Coders, models.CoderEntry{CoderJobID: id, Code: codes[id]})
	}
	return rec
}

func pair(c1, c2 int, kappa *float64, agreement float64, valid int) models.KappaCoderPair {
	return models.KappaCoderPair{
		Coder1ID:   c1,
		Coder2ID:   c2,
		Kappa:      kappa,
		Agreement:  agreement,
		TotalItems: valid + 2,
		ValidPairs: valid,
	}
}
