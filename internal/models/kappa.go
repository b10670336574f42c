package models

import "fmt"

// Level selects whether Kappa is computed on codes or on scores
type Level string

const (
	LevelCode  Level = "code"
	LevelScore Level = "score"
)

// ParseLevel validates a level string
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelCode, LevelScore:
		return Level(s), nil
	}
	return "", fmt.Errorf("invalid level %q: must be %q or %q", s, LevelCode, LevelScore)
}

// WeightingMethod selects which mean populates WorkspaceSummary.AverageKappa
type WeightingMethod string

const (
	WeightingWeighted   WeightingMethod = "weighted"
	WeightingUnweighted WeightingMethod = "unweighted"
)

// WeightingFor maps the weighted flag to its method name
func WeightingFor(weighted bool) WeightingMethod {
	if weighted {
		return WeightingWeighted
	}
	return WeightingUnweighted
}

// KappaCoderPair is the externally computed agreement of two coders on one variable.
// Kappa is nil when undefined (e.g. zero variance).
type KappaCoderPair struct {
	Coder1ID   int      `json:"coder1Id"`
	Coder1Name string   `json:"coder1Name"`
	Coder2ID   int      `json:"coder2Id"`
	Coder2Name string   `json:"coder2Name"`
	Kappa      *float64 `json:"kappa"`
	Agreement  float64  `json:"agreement"`
	TotalItems int      `json:"totalItems"`
	ValidPairs int      `json:"validPairs"`
}

// KappaVariable holds all coder pairs computed for one variable
type KappaVariable struct {
	UnitName   string           `json:"unitName"`
	VariableID string           `json:"variableId"`
	CoderPairs []KappaCoderPair `json:"coderPairs"`
}

// WorkspaceSummary aggregates pair statistics across the workspace
type WorkspaceSummary struct {
	TotalDoubleCodedResponses int             `json:"totalDoubleCodedResponses"`
	TotalCoderPairs           int             `json:"totalCoderPairs"`
	AverageKappa              *float64        `json:"averageKappa"`
	MeanAgreement             *float64        `json:"meanAgreement"`
	VariablesIncluded         int             `json:"variablesIncluded"`
	CodersIncluded            int             `json:"codersIncluded"`
	WeightingMethod           WeightingMethod `json:"weightingMethod"`
}

// KappaStatistics is a full pairwise Kappa result
type KappaStatistics struct {
	Variables        []KappaVariable  `json:"variables"`
	WorkspaceSummary WorkspaceSummary `json:"workspaceSummary"`
}

// Clone returns a deep copy that shares no memory with s
func (s *KappaStatistics) Clone() *KappaStatistics {
	if s == nil {
		return nil
	}
	out := &KappaStatistics{
		Variables:        make([]KappaVariable, len(s.Variables)),
		WorkspaceSummary: s.WorkspaceSummary,
	}
	out.WorkspaceSummary.AverageKappa = cloneFloat(s.WorkspaceSummary.AverageKappa)
	out.WorkspaceSummary.MeanAgreement = cloneFloat(s.WorkspaceSummary.MeanAgreement)
	for i, v := range s.Variables {
		pairs := make([]KappaCoderPair, len(v.CoderPairs))
		for j, p := range v.CoderPairs {
			pairs[j] = p
			pairs[j].Kappa = cloneFloat(p.Kappa)
		}
		out.Variables[i] = KappaVariable{
			UnitName:   v.UnitName,
			VariableID: v.VariableID,
			CoderPairs: pairs,
		}
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
