package models

// SourceEntry is one training's code/score for a scored item
type SourceEntry struct {
	SourceID    int      `json:"sourceId"`
	SourceLabel string   `json:"sourceLabel"`
	Code        *string  `json:"code"`
	Score       *float64 `json:"score"`
}

// CoderEntry is one coder's code/score for a scored item inside a training
type CoderEntry struct {
	CoderJobID int      `json:"coderJobId"`
	CoderName  string   `json:"coderName"`
	Code       *string  `json:"code"`
	Score      *float64 `json:"score"`
}

// SourceCode is the id/code projection shared by both comparison shapes
type SourceCode struct {
	SourceID int
	Code     *string
}

// Comparison is implemented by both record shapes so the match and
// double-coding rules can be written once.
type Comparison interface {
	SourceCodes() []SourceCode
}

// CrossSourceComparison compares the codes several trainings gave to one item
type CrossSourceComparison struct {
	UnitName   string        `json:"unitName"`
	VariableID string        `json:"variableId"`
	TestPerson *string       `json:"testPerson,omitempty"`
	Sources    []SourceEntry `json:"sources"`
}

// SourceCodes implements Comparison
func (c CrossSourceComparison) SourceCodes() []SourceCode {
	codes := make([]SourceCode, len(c.Sources))
	for i, s := range c.Sources {
		codes[i] = SourceCode{SourceID: s.SourceID, Code: s.Code}
	}
	return codes
}

// WithinTrainingComparison compares the codes of every coder of one training
type WithinTrainingComparison struct {
	UnitName    string       `json:"unitName"`
	VariableID  string       `json:"variableId"`
	TestPerson  *string      `json:"testPerson,omitempty"`
	PersonLogin *string      `json:"personLogin,omitempty"`
	PersonCode  *string      `json:"personCode,omitempty"`
	PersonGroup *string      `json:"personGroup,omitempty"`
	Coders      []CoderEntry `json:"coders"`
}

// SourceCodes implements Comparison
func (c WithinTrainingComparison) SourceCodes() []SourceCode {
	codes := make([]SourceCode, len(c.Coders))
	for i, e := range c.Coders {
		codes[i] = SourceCode{SourceID: e.CoderJobID, Code: e.Code}
	}
	return codes
}

// MatchStatistics summarises agreement of double-coded records
type MatchStatistics struct {
	TotalComparisons    int `json:"totalComparisons"`
	MatchingComparisons int `json:"matchingComparisons"`
	MatchingPercentage  int `json:"matchingPercentage"`
}

// RecordOutcome classifies a single record under the active selection
type RecordOutcome struct {
	DoubleCoded bool `json:"doubleCoded"`
	Matching    bool `json:"matching"`
}
