// Package aggregator applies interaction events to session aggregates. Apply
// is a pure reducer: it mutates only the aggregate it is given and performs
// no I/O, so callers control persistence and serialization.
package aggregator

import (
	"encoding/json"
	"time"

	"studypulse-backend/internal/models"
)

// Stored text is capped so exports and notices stay bounded.
const maxStoredText = 200

// Apply folds one event into the aggregate. The raw event is always appended
// to the interaction log; the typed field update is keyed on the event type.
// A payload that fails to decode for a known type skips the field update but
// keeps the log append, so no event is silently lost.
func Apply(agg *models.SessionAggregate, event models.InteractionEvent) {
	agg.Interactions = append(agg.Interactions, event)
	agg.UpdatedAt = time.Now().UTC()

	switch event.EventType {
	case models.EventDocumentLoaded:
		var p models.DocumentLoadedPayload
		if decode(event.Data, &p) {
			total := p.TotalPages
			agg.TotalPages = &total
		}

	case models.EventPageTime:
		var p models.PageTimePayload
		if decode(event.Data, &p) {
			agg.PageTimeSpent[p.Page] += p.TimeSpent
			agg.PagesVisited[p.Page]++
		}

	case models.EventTextSelection:
		var p models.TextSelectionPayload
		if decode(event.Data, &p) {
			agg.TextSelections = append(agg.TextSelections, models.TextSelection{
				Text:      Truncate(p.Text, maxStoredText),
				Page:      p.Page,
				Length:    p.Length,
				Timestamp: orNow(p.Timestamp),
			})
		}

	case models.EventHighlight:
		var p models.HighlightPayload
		if decode(event.Data, &p) {
			agg.Highlights = append(agg.Highlights, models.Highlight{
				Text:      Truncate(p.Text, maxStoredText),
				Page:      p.Page,
				Color:     p.Color,
				Timestamp: orNow(p.Timestamp),
			})
		}

	case models.EventAnnotation:
		var p models.AnnotationPayload
		if decode(event.Data, &p) {
			agg.Annotations = append(agg.Annotations, models.Annotation{
				Text:      Truncate(p.Text, maxStoredText),
				Note:      p.Note,
				Page:      p.Page,
				Timestamp: orNow(p.Timestamp),
			})
		}

	case models.EventScrollPattern:
		var p models.ScrollPayload
		if decode(event.Data, &p) {
			agg.ScrollEvents = append(agg.ScrollEvents, models.ScrollEvent{
				Page:            p.Page,
				ScrollSpeed:     p.AvgScrollSpeed,
				ScrollDirection: p.ScrollDirection,
				Timestamp:       time.Now().UTC(),
			})
		}

	case models.EventZoom:
		var p models.ZoomPayload
		if decode(event.Data, &p) {
			agg.ZoomEvents = append(agg.ZoomEvents, models.ZoomEvent{
				Page:      p.Page,
				Scale:     p.Scale,
				Action:    p.Action,
				Timestamp: time.Now().UTC(),
			})
		}

	case models.EventPageNavigation:
		// Recorded in the interaction log only.
	}
}

// Truncate caps s at max characters, counting runes so multi-byte text is
// never split mid-character.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func decode(data json.RawMessage, v interface{}) bool {
	if len(data) == 0 {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
