package models

// CrossTrainingRequest is the body of POST .../comparisons/cross-training
type CrossTrainingRequest struct {
	TrainingIDs []int `json:"trainingIds"`
}

// WithinTrainingRequest is the body of POST .../comparisons/within-training
type WithinTrainingRequest struct {
	TrainingID int `json:"trainingId"`
}

// SourceIDsRequest replaces the active sources of the current mode
type SourceIDsRequest struct {
	IDs []int `json:"ids"`
}

// WeightingRequest for PUT .../weighting
type WeightingRequest struct {
	Weighted *bool `json:"weighted"`
}

// LevelRequest for PUT .../level
type LevelRequest struct {
	Level string `json:"level"`
}

// ToggleResponse reports the state of a source after a toggle
type ToggleResponse struct {
	SourceID int  `json:"sourceId"`
	Active   bool `json:"active"`
}

// InterpretedCoderPair adds the Landis & Koch label to a coder pair
type InterpretedCoderPair struct {
	KappaCoderPair
	Interpretation string `json:"interpretation"`
}

// InterpretedVariable is a KappaVariable with labelled pairs
type InterpretedVariable struct {
	UnitName   string                 `json:"unitName"`
	VariableID string                 `json:"variableId"`
	CoderPairs []InterpretedCoderPair `json:"coderPairs"`
}

// KappaResponse is the filtered Kappa result as shown to the user
type KappaResponse struct {
	Variables                  []InterpretedVariable `json:"variables"`
	WorkspaceSummary           WorkspaceSummary      `json:"workspaceSummary"`
	AverageKappaInterpretation string                `json:"averageKappaInterpretation"`
}
