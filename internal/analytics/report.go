package analytics

import "studypulse-backend/internal/models"

// BuildReport assembles the read-only export projection of one session:
// summary, engagement, insights, plus the raw highlight and annotation
// records (already truncated on append).
func BuildReport(agg *models.SessionAggregate) models.SessionReport {
	patterns := ComputePatterns(agg)

	report := models.SessionReport{
		SessionID:   agg.SessionID,
		RoomID:      agg.RoomID,
		UserID:      agg.UserID,
		SessionDate: agg.CreatedAt,
	}

	report.Summary.TotalPages = agg.TotalPages
	report.Summary.PagesVisited = len(agg.PagesVisited)
	report.Summary.TotalReadingTime = patterns.TotalReadingTime
	report.Summary.AvgTimePerPage = patterns.AvgTimePerPage
	report.Summary.ReadingSpeed = patterns.ReadingSpeed

	report.Engagement.ComprehensionScore = patterns.ComprehensionScore
	report.Engagement.EngagementLevel = patterns.EngagementLevel
	report.Engagement.FocusQuality = patterns.FocusQuality
	report.Engagement.Highlights = len(agg.Highlights)
	report.Engagement.Annotations = len(agg.Annotations)
	report.Engagement.TextSelections = len(agg.TextSelections)

	report.Insights.MostVisitedPages = patterns.MostVisitedPages
	report.Insights.DifficultPages = patterns.DifficultPages
	report.Insights.MostHighlightedPages = patterns.MostHighlightedPages
	report.Insights.ActiveReadingIndicators = patterns.ActiveReadingIndicators

	report.RawHighlights = agg.Highlights
	report.RawAnnotations = agg.Annotations

	return report
}
