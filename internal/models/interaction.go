package models

import (
	"encoding/json"
	"time"
)

// EventType identifies one kind of client interaction.
type EventType string

const (
	EventDocumentLoaded EventType = "document_loaded"
	EventPageTime       EventType = "page_time"
	EventPageNavigation EventType = "page_navigation"
	EventTextSelection  EventType = "text_selection"
	EventHighlight      EventType = "highlight"
	EventAnnotation     EventType = "annotation"
	EventScrollPattern  EventType = "scroll_pattern"
	EventZoom           EventType = "zoom"
)

// ValidEventType reports whether t is a recognized event kind.
func ValidEventType(t EventType) bool {
	switch t {
	case EventDocumentLoaded, EventPageTime, EventPageNavigation,
		EventTextSelection, EventHighlight, EventAnnotation,
		EventScrollPattern, EventZoom:
		return true
	}
	return false
}

// InteractionEvent is one immutable client action. Events are append-only:
// once ingested they are retained verbatim in the session's interaction log.
type InteractionEvent struct {
	EventID   string          `json:"event_id,omitempty"`
	SessionID string          `json:"session_id"`
	RoomID    string          `json:"room_id"`
	UserID    string          `json:"user_id"`
	EventType EventType       `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Typed payloads, one per event kind. The reducer decodes Data into the
// payload matching EventType and skips the field-level update when the
// payload does not decode; the raw event is kept in the log either way.

type DocumentLoadedPayload struct {
	TotalPages int `json:"totalPages"`
}

type PageTimePayload struct {
	Page      int   `json:"page"`
	TimeSpent int64 `json:"timeSpent"` // milliseconds
}

type TextSelectionPayload struct {
	Text      string    `json:"text"`
	Page      int       `json:"page"`
	Length    int       `json:"length"`
	Timestamp time.Time `json:"timestamp"`
}

type HighlightPayload struct {
	Text      string    `json:"text"`
	Page      int       `json:"page"`
	Color     string    `json:"color"`
	Timestamp time.Time `json:"timestamp"`
}

type AnnotationPayload struct {
	Text      string    `json:"text"`
	Note      string    `json:"note"`
	Page      int       `json:"page"`
	Timestamp time.Time `json:"timestamp"`
}

type ScrollPayload struct {
	Page            int     `json:"page"`
	AvgScrollSpeed  float64 `json:"avgScrollSpeed"`
	ScrollDirection string  `json:"scrollDirection"`
}

type ZoomPayload struct {
	Page   int     `json:"page"`
	Scale  float64 `json:"scale"`
	Action string  `json:"action"`
}

type NavigationPayload struct {
	From      int    `json:"from"`
	To        int    `json:"to"`
	Direction string `json:"direction"`
}

// Stored sub-records. Text fields are capped at 200 characters on append;
// exports rely on that bound.

type Highlight struct {
	Text      string    `json:"text"`
	Page      int       `json:"page"`
	Color     string    `json:"color"`
	Timestamp time.Time `json:"timestamp"`
}

type Annotation struct {
	Text      string    `json:"text"`
	Note      string    `json:"note"`
	Page      int       `json:"page"`
	Timestamp time.Time `json:"timestamp"`
}

type TextSelection struct {
	Text      string    `json:"text"`
	Page      int       `json:"page"`
	Length    int       `json:"length"`
	Timestamp time.Time `json:"timestamp"`
}

type ScrollEvent struct {
	Page            int       `json:"page"`
	ScrollSpeed     float64   `json:"scroll_speed"`
	ScrollDirection string    `json:"scroll_direction"`
	Timestamp       time.Time `json:"timestamp"`
}

type ZoomEvent struct {
	Page      int       `json:"page"`
	Scale     float64   `json:"scale"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionAggregate is the accumulated state for one session. Exactly one
// exists per session id; it is created lazily on first event and only the
// ingestion pipeline writes it.
type SessionAggregate struct {
	SessionID string `json:"session_id"`
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`

	Interactions []InteractionEvent `json:"interactions"`

	TotalPages    *int          `json:"total_pages,omitempty"`
	PagesVisited  map[int]int   `json:"pages_visited"`
	PageTimeSpent map[int]int64 `json:"page_time_spent"` // page -> milliseconds

	Highlights     []Highlight     `json:"highlights"`
	Annotations    []Annotation    `json:"annotations"`
	TextSelections []TextSelection `json:"text_selections"`
	ScrollEvents   []ScrollEvent   `json:"scroll_events"`
	ZoomEvents     []ZoomEvent     `json:"zoom_events"`

	ReadingPatterns *ReadingPatterns `json:"reading_patterns,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSessionAggregate returns an empty aggregate with maps initialized so the
// reducer never touches a nil map.
func NewSessionAggregate(sessionID, roomID, userID string) *SessionAggregate {
	now := time.Now().UTC()
	return &SessionAggregate{
		SessionID:      sessionID,
		RoomID:         roomID,
		UserID:         userID,
		Interactions:   []InteractionEvent{},
		PagesVisited:   map[int]int{},
		PageTimeSpent:  map[int]int64{},
		Highlights:     []Highlight{},
		Annotations:    []Annotation{},
		TextSelections: []TextSelection{},
		ScrollEvents:   []ScrollEvent{},
		ZoomEvents:     []ZoomEvent{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
