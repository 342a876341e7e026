// Package analytics derives behavioral reading metrics from session
// aggregates. Every function here is pure: identical input yields identical
// output, so snapshots can be recomputed at any time.
package analytics

import (
	"math"
	"sort"

	"studypulse-backend/internal/models"
)

const topPages = 5

// ComputePatterns derives the full reading-pattern snapshot from an
// aggregate. With no recorded page time, every score defaults to zero rather
// than dividing by zero.
func ComputePatterns(agg *models.SessionAggregate) models.ReadingPatterns {
	pagesWithTime := len(agg.PageTimeSpent)

	var totalMs int64
	for _, ms := range agg.PageTimeSpent {
		totalMs += ms
	}
	totalSeconds := float64(totalMs) / 1000

	var avgSeconds float64
	if pagesWithTime > 0 {
		avgSeconds = totalSeconds / float64(pagesWithTime)
	}

	var readingSpeed float64 // pages per minute
	if totalSeconds > 0 {
		readingSpeed = float64(pagesWithTime) / totalSeconds * 60
	}

	highlightsByPage := map[int]int{}
	for _, h := range agg.Highlights {
		highlightsByPage[h.Page]++
	}
	annotationsByPage := map[int]int{}
	for _, a := range agg.Annotations {
		annotationsByPage[a.Page]++
	}

	// Difficult pages: revisited often and well above the average dwell time.
	difficult := []int{}
	for page, visits := range agg.PagesVisited {
		if visits > 2 && float64(agg.PageTimeSpent[page]) > avgSeconds*1000*1.5 {
			difficult = append(difficult, page)
		}
	}
	sort.Ints(difficult)

	var highlightScore, annotationScore, timeScore float64
	if pagesWithTime > 0 {
		highlightScore = math.Min(float64(len(agg.Highlights))/float64(pagesWithTime)*20, 30)
		annotationScore = math.Min(float64(len(agg.Annotations))/float64(pagesWithTime)*30, 40)
		timeScore = math.Min(avgSeconds/60*30, 30) // 2 min per page = full score
	}
	comprehension := int(math.Round(highlightScore + annotationScore + timeScore))

	engagement := models.EngagementLow
	switch {
	case comprehension >= 70:
		engagement = models.EngagementHigh
	case comprehension >= 40:
		engagement = models.EngagementMedium
	}

	var variance float64
	if pagesWithTime > 0 {
		for _, ms := range agg.PageTimeSpent {
			d := float64(ms) - avgSeconds*1000
			variance += d * d
		}
		variance /= float64(pagesWithTime)
	}
	consistency := math.Max(0, 100-math.Sqrt(variance)/1000)

	focus := models.FocusPoor
	switch {
	case consistency >= 75:
		focus = models.FocusExcellent
	case consistency >= 50:
		focus = models.FocusGood
	case consistency >= 25:
		focus = models.FocusFair
	}

	indicators := models.ActiveReadingIndicators{}
	if pagesWithTime > 0 {
		indicators.HighlightRate = float64(len(agg.Highlights)) / float64(pagesWithTime)
		indicators.AnnotationRate = float64(len(agg.Annotations)) / float64(pagesWithTime)
		indicators.SelectionRate = float64(len(agg.TextSelections)) / float64(pagesWithTime)
	}

	return models.ReadingPatterns{
		AvgTimePerPage:          int(math.Round(avgSeconds)),
		TotalReadingTime:        int(math.Round(totalSeconds)),
		ReadingSpeed:            math.Round(readingSpeed*100) / 100,
		MostVisitedPages:        topByCount(agg.PagesVisited, false),
		LeastVisitedPages:       topByCount(agg.PagesVisited, true),
		MostHighlightedPages:    topByCount(highlightsByPage, false),
		MostAnnotatedPages:      topByCount(annotationsByPage, false),
		ComprehensionScore:      comprehension,
		EngagementLevel:         engagement,
		FocusQuality:            focus,
		DifficultPages:          difficult,
		ReadingConsistency:      int(math.Round(consistency)),
		ActiveReadingIndicators: indicators,
	}
}

// topByCount returns up to five pages ordered by count (descending, or
// ascending for the least-visited list). Ties break on natural page order so
// the result is deterministic regardless of map iteration.
func topByCount(counts map[int]int, ascending bool) []int {
	type pageCount struct {
		page, count int
	}
	entries := make([]pageCount, 0, len(counts))
	for page, count := range counts {
		entries = append(entries, pageCount{page, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			if ascending {
				return entries[i].count < entries[j].count
			}
			return entries[i].count > entries[j].count
		}
		return entries[i].page < entries[j].page
	})

	n := len(entries)
	if n > topPages {
		n = topPages
	}
	pages := make([]int, 0, n)
	for _, e := range entries[:n] {
		pages = append(pages, e.page)
	}
	return pages
}
