package models

import "time"

// Engagement levels derived from the comprehension score.
const (
	EngagementLow    = "low"
	EngagementMedium = "medium"
	EngagementHigh   = "high"
)

// Focus quality buckets derived from reading consistency.
const (
	FocusPoor      = "poor"
	FocusFair      = "fair"
	FocusGood      = "good"
	FocusExcellent = "excellent"
)

type ActiveReadingIndicators struct {
	HighlightRate  float64 `json:"highlightRate"`
	AnnotationRate float64 `json:"annotationRate"`
	SelectionRate  float64 `json:"selectionRate"`
}

// ReadingPatterns is a derived snapshot: a pure function of the aggregate's
// accumulated fields at the moment of computation. Recomputing from the same
// input yields identical output.
type ReadingPatterns struct {
	AvgTimePerPage   int     `json:"avgTimePerPage"`   // seconds, rounded
	TotalReadingTime int     `json:"totalReadingTime"` // seconds, rounded
	ReadingSpeed     float64 `json:"readingSpeed"`     // pages per minute, 2 decimals

	MostVisitedPages  []int `json:"mostVisitedPages"`
	LeastVisitedPages []int `json:"leastVisitedPages"`

	MostHighlightedPages []int `json:"mostHighlightedPages"`
	MostAnnotatedPages   []int `json:"mostAnnotatedPages"`

	ComprehensionScore int    `json:"comprehensionScore"` // 0-100
	EngagementLevel    string `json:"engagementLevel"`

	FocusQuality string `json:"focusQuality"`

	DifficultPages []int `json:"difficultPages"`

	ReadingConsistency      int                     `json:"readingConsistency"` // 0-100
	ActiveReadingIndicators ActiveReadingIndicators `json:"activeReadingIndicators"`
}

// StudentSummary is one session's entry inside a room rollup.
type StudentSummary struct {
	SessionID          string    `json:"session_id"`
	UserID             string    `json:"user_id"`
	ComprehensionScore int       `json:"comprehension_score"`
	EngagementLevel    string    `json:"engagement_level"`
	ReadingSpeed       float64   `json:"reading_speed"`
	Highlights         int       `json:"highlights"`
	Annotations        int       `json:"annotations"`
	LastUpdated        time.Time `json:"last_updated"`
}

type EngagementDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// RoomRollup is computed on demand from the current aggregates of a room and
// never persisted.
type RoomRollup struct {
	RoomID                 string                 `json:"room_id"`
	TotalStudents          int                    `json:"totalStudents"`
	AvgComprehensionScore  float64                `json:"avgComprehensionScore"`
	AvgReadingSpeed        float64                `json:"avgReadingSpeed"`
	EngagementDistribution EngagementDistribution `json:"engagementDistribution"`
	StrugglingStudents     []StudentSummary       `json:"strugglingStudents"`
	TopPerformers          []StudentSummary       `json:"topPerformers"`
	Students               []StudentSummary       `json:"students"`
}

// SessionReport is the read-only export projection of an aggregate plus its
// freshest patterns, for archival or printing by the reporting collaborator.
type SessionReport struct {
	SessionID   string    `json:"session_id"`
	RoomID      string    `json:"room_id"`
	UserID      string    `json:"user_id"`
	SessionDate time.Time `json:"session_date"`

	Summary struct {
		TotalPages       *int    `json:"total_pages,omitempty"`
		PagesVisited     int     `json:"pages_visited"`
		TotalReadingTime int     `json:"total_reading_time"`
		AvgTimePerPage   int     `json:"avg_time_per_page"`
		ReadingSpeed     float64 `json:"reading_speed"`
	} `json:"summary"`

	Engagement struct {
		ComprehensionScore int    `json:"comprehension_score"`
		EngagementLevel    string `json:"engagement_level"`
		FocusQuality       string `json:"focus_quality"`
		Highlights         int    `json:"highlights"`
		Annotations        int    `json:"annotations"`
		TextSelections     int    `json:"text_selections"`
	} `json:"engagement"`

	Insights struct {
		MostVisitedPages        []int                   `json:"most_visited_pages"`
		DifficultPages          []int                   `json:"difficult_pages"`
		MostHighlightedPages    []int                   `json:"most_highlighted_pages"`
		ActiveReadingIndicators ActiveReadingIndicators `json:"active_reading_indicators"`
	} `json:"insights"`

	RawHighlights  []Highlight  `json:"raw_highlights"`
	RawAnnotations []Annotation `json:"raw_annotations"`
}
