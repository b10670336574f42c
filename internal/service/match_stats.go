package service

import (
	"math"

	"coding-agreement/internal/models"
	"coding-agreement/internal/state"
)

// selectedCodes returns the non-null codes of the active sources of c
func selectedCodes(c models.Comparison, active *state.SourceSelection) []string {
	codes := []string{}
	for _, sc := range c.SourceCodes() {
		if sc.Code != nil && active.Contains(sc.SourceID) {
			codes = append(codes, *sc.Code)
		}
	}
	return codes
}

// IsDoubleCoded reports whether at least two active sources coded c
func IsDoubleCoded(c models.Comparison, active *state.SourceSelection) bool {
	return len(selectedCodes(c, active)) >= 2
}

// ClassifyRecord reports whether c is double coded and whether its active
// codes agree. Records with fewer than two codes always count as matching.
func ClassifyRecord(c models.Comparison, active *state.SourceSelection) models.RecordOutcome {
	codes := selectedCodes(c, active)
	outcome := models.RecordOutcome{DoubleCoded: len(codes) >= 2, Matching: true}
	for i := 1; i < len(codes); i++ {
		if codes[i] != codes[0] {
			outcome.Matching = false
			break
		}
	}
	return outcome
}

// ClassifyRecords classifies every record, in input order
func ClassifyRecords[T models.Comparison](records []T, active *state.SourceSelection) []models.RecordOutcome {
	out := make([]models.RecordOutcome, len(records))
	for i, rec := range records {
		out[i] = ClassifyRecord(rec, active)
	}
	return out
}

// CalculateMatchStatistics counts double-coded records and how many of them
// agree. Only double-coded records enter the denominator.
func CalculateMatchStatistics[T models.Comparison](records []T, active *state.SourceSelection) models.MatchStatistics {
	stats := models.MatchStatistics{}
	for _, rec := range records {
		outcome := ClassifyRecord(rec, active)
		if !outcome.DoubleCoded {
			continue
		}
		stats.TotalComparisons++
		if outcome.Matching {
			stats.MatchingComparisons++
		}
	}
	if stats.TotalComparisons > 0 {
		stats.MatchingPercentage = int(math.Round(float64(stats.MatchingComparisons) / float64(stats.TotalComparisons) * 100))
	}
	return stats
}

// CountDoubleCoded counts the records coded by at least two active sources
func CountDoubleCoded[T models.Comparison](records []T, active *state.SourceSelection) int {
	n := 0
	for _, rec := range records {
		if IsDoubleCoded(rec, active) {
			n++
		}
	}
	return n
}
