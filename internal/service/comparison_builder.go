package service

import "coding-agreement/internal/models"

// HasAnyCode reports whether at least one source produced a non-null code
func HasAnyCode(c models.Comparison) bool {
	for _, sc := range c.SourceCodes() {
		if sc.Code != nil {
			return true
		}
	}
	return false
}

// BuildCrossTrainingComparisons keeps the rows that carry at least one code.
// Record and source order are preserved.
func BuildCrossTrainingComparisons(rows []models.CrossSourceComparison) []models.CrossSourceComparison {
	out := make([]models.CrossSourceComparison, 0, len(rows))
	for _, row := range rows {
		if !HasAnyCode(row) {
			continue
		}
		rec := row
		rec.Sources = append([]models.SourceEntry(nil), row.Sources...)
		out = append(out, rec)
	}
	return out
}

// BuildWithinTrainingComparisons keeps the rows that carry at least one code.
// Record and coder order are preserved.
func BuildWithinTrainingComparisons(rows []models.WithinTrainingComparison) []models.WithinTrainingComparison {
	out := make([]models.WithinTrainingComparison, 0, len(rows))
	for _, row := range rows {
		if !HasAnyCode(row) {
			continue
		}
		rec := row
		rec.Coders = append([]models.CoderEntry(nil), row.Coders...)
		out = append(out, rec)
	}
	return out
}

// DiscoverCoders returns the distinct coder job ids in first-seen order
func DiscoverCoders(records []models.WithinTrainingComparison) []int {
	seen := make(map[int]bool)
	ids := []int{}
	for _, rec := range records {
		for _, c := range rec.Coders {
			if !seen[c.CoderJobID] {
				seen[c.CoderJobID] = true
				ids = append(ids, c.CoderJobID)
			}
		}
	}
	return ids
}
