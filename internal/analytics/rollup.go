package analytics

import (
	"math"

	"studypulse-backend/internal/models"
)

// Rollup thresholds on the comprehension score.
const (
	strugglingBelow = 40
	topPerformerAt  = 70
)

// ComputeRollup builds the class-wide summary for one room from the current
// set of session aggregates. Patterns are recomputed per session so the
// rollup never reflects a stale snapshot. The result is ephemeral.
func ComputeRollup(roomID string, aggs []*models.SessionAggregate) models.RoomRollup {
	rollup := models.RoomRollup{
		RoomID:             roomID,
		TotalStudents:      len(aggs),
		StrugglingStudents: []models.StudentSummary{},
		TopPerformers:      []models.StudentSummary{},
		Students:           []models.StudentSummary{},
	}

	var sumScore, sumSpeed float64
	for _, agg := range aggs {
		patterns := ComputePatterns(agg)

		summary := models.StudentSummary{
			SessionID:          agg.SessionID,
			UserID:             agg.UserID,
			ComprehensionScore: patterns.ComprehensionScore,
			EngagementLevel:    patterns.EngagementLevel,
			ReadingSpeed:       patterns.ReadingSpeed,
			Highlights:         len(agg.Highlights),
			Annotations:        len(agg.Annotations),
			LastUpdated:        agg.UpdatedAt,
		}
		rollup.Students = append(rollup.Students, summary)

		sumScore += float64(patterns.ComprehensionScore)
		sumSpeed += patterns.ReadingSpeed

		switch patterns.EngagementLevel {
		case models.EngagementHigh:
			rollup.EngagementDistribution.High++
		case models.EngagementMedium:
			rollup.EngagementDistribution.Medium++
		default:
			rollup.EngagementDistribution.Low++
		}

		if patterns.ComprehensionScore < strugglingBelow {
			rollup.StrugglingStudents = append(rollup.StrugglingStudents, summary)
		}
		if patterns.ComprehensionScore >= topPerformerAt {
			rollup.TopPerformers = append(rollup.TopPerformers, summary)
		}
	}

	denom := float64(len(aggs))
	if denom == 0 {
		denom = 1
	}
	rollup.AvgComprehensionScore = math.Round(sumScore/denom*100) / 100
	rollup.AvgReadingSpeed = math.Round(sumSpeed/denom*100) / 100

	return rollup
}
