package models

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	WSAnalyticsUpdate   = "analytics_update"
	WSStudentHighlight  = "student_highlight"
	WSStudentAnnotation = "student_annotation"
	WSStrugglingAlert   = "student_struggling_alert"
)

// AnalyticsUpdate is pushed to room observers after a qualifying event.
type AnalyticsUpdate struct {
	SessionID       string          `json:"session_id"`
	UserID          string          `json:"user_id"`
	ReadingPatterns ReadingPatterns `json:"reading_patterns"`
	Event           EventType       `json:"event"`
}

// HighlightNotice is the lightweight real-time notice emitted on highlight
// events, independent of the full analytics push.
type HighlightNotice struct {
	StudentID string `json:"student_id"`
	Page      int    `json:"page"`
	Text      string `json:"text"` // preview, capped at 100 characters
}

// AnnotationNotice is emitted on annotation events.
type AnnotationNotice struct {
	StudentID   string `json:"student_id"`
	Page        int    `json:"page"`
	NotePreview string `json:"note_preview"` // capped at 50 characters
}

// StrugglingAlert is raised when a session's comprehension score drops below
// the alert threshold while engagement is low.
type StrugglingAlert struct {
	SessionID          string `json:"session_id"`
	UserID             string `json:"user_id"`
	ComprehensionScore int    `json:"comprehension_score"`
	DifficultPages     []int  `json:"difficult_pages"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
