// Package ingest is the per-connection entry point for interaction events:
// it validates, serializes processing per session, applies the reducer,
// persists, and fans derived metrics out to room observers.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"studypulse-backend/internal/aggregator"
	"studypulse-backend/internal/analytics"
	"studypulse-backend/internal/models"
)

// Alert firing modes for the struggling-student predicate.
const (
	AlertModeEdge  = "edge"  // fire once when the threshold is crossed
	AlertModeLevel = "level" // fire on every qualifying event while below
)

// Struggling predicate thresholds.
const (
	alertScoreBelow = 30
	dedupeKeyTTL    = 24 * time.Hour
)

// Store is the session aggregate store the service reads and writes.
type Store interface {
	GetOrCreate(ctx context.Context, sessionID, roomID, userID string) (*models.SessionAggregate, error)
	Get(ctx context.Context, sessionID string) (*models.SessionAggregate, error)
	Save(ctx context.Context, agg *models.SessionAggregate) error
	ListByRoom(ctx context.Context, roomID string) ([]*models.SessionAggregate, error)
}

// Publisher delivers observer messages for a room. The websocket hub's redis
// bridge is the production implementation.
type Publisher interface {
	Publish(ctx context.Context, roomID string, msg models.WSMessage) error
}

type Options struct {
	AlertMode      string
	PersistTimeout time.Duration
	PersistRetries int
}

func (o *Options) defaults() {
	if o.AlertMode == "" {
		o.AlertMode = AlertModeEdge
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 5 * time.Second
	}
	if o.PersistRetries <= 0 {
		o.PersistRetries = 3
	}
}

type Service struct {
	store     Store
	publisher Publisher
	dedupe    *redis.Client // nil disables event-id dedupe
	opts      Options
	log       zerolog.Logger

	locks *sessionLocks

	alertMu sync.Mutex
	alerted map[string]bool // session id -> alert currently latched
}

func NewService(store Store, publisher Publisher, dedupe *redis.Client, opts Options, log zerolog.Logger) *Service {
	opts.defaults()
	return &Service{
		store:     store,
		publisher: publisher,
		dedupe:    dedupe,
		opts:      opts,
		log:       log.With().Str("component", "ingest").Logger(),
		locks:     newSessionLocks(),
		alerted:   make(map[string]bool),
	}
}

// Ingest applies one event and returns the freshly computed reading
// patterns. Events for the same session are applied strictly one at a time
// in arrival order; events for different sessions run in parallel.
func (s *Service) Ingest(ctx context.Context, event models.InteractionEvent) (models.ReadingPatterns, error) {
	if err := validate(event); err != nil {
		return models.ReadingPatterns{}, err
	}

	lock := s.locks.acquire(event.SessionID)
	defer s.locks.release(event.SessionID, lock)

	agg, err := s.store.GetOrCreate(ctx, event.SessionID, event.RoomID, event.UserID)
	if err != nil {
		return models.ReadingPatterns{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Exactly-once at the ingestion boundary: a redelivered event id acks
	// with the current snapshot instead of double-counting.
	if s.seenBefore(ctx, event) {
		s.log.Debug().
			Str("session_id", event.SessionID).
			Str("event_id", event.EventID).
			Msg("duplicate event acknowledged without reapplying")
		return analytics.ComputePatterns(agg), nil
	}

	aggregator.Apply(agg, event)
	patterns := analytics.ComputePatterns(agg)
	agg.ReadingPatterns = &patterns

	if err := s.persist(ctx, agg); err != nil {
		return models.ReadingPatterns{}, err
	}
	s.markSeen(ctx, event)

	s.notify(ctx, event, patterns)

	return patterns, nil
}

func validate(event models.InteractionEvent) error {
	if event.SessionID == "" {
		return fmt.Errorf("%w: missing session_id", ErrMalformedEvent)
	}
	if event.RoomID == "" {
		return fmt.Errorf("%w: missing room_id", ErrMalformedEvent)
	}
	if !models.ValidEventType(event.EventType) {
		return fmt.Errorf("%w: unknown event_type %q", ErrMalformedEvent, event.EventType)
	}
	return nil
}

// persist writes the aggregate with a bounded per-attempt timeout and a
// short backoff between attempts. The caller's reducer result is discarded
// on failure; a client retry recomputes from the last durable state.
func (s *Service) persist(ctx context.Context, agg *models.SessionAggregate) error {
	var lastErr error
	for attempt := 0; attempt < s.opts.PersistRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrPersistence, ctx.Err())
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.PersistTimeout)
		lastErr = s.store.Save(attemptCtx, agg)
		cancel()
		if lastErr == nil {
			return nil
		}

		s.log.Warn().Err(lastErr).
			Str("session_id", agg.SessionID).
			Int("attempt", attempt+1).
			Msg("aggregate persist failed")
	}
	return fmt.Errorf("%w: %v", ErrPersistence, lastErr)
}

// notify runs only after a fully successful reduce-and-persist cycle, so
// observers never see a partial snapshot.
func (s *Service) notify(ctx context.Context, event models.InteractionEvent, patterns models.ReadingPatterns) {
	switch event.EventType {
	case models.EventHighlight:
		var p models.HighlightPayload
		if err := decodeInto(event, &p); err == nil {
			s.publish(ctx, event.RoomID, models.WSMessage{
				Type: models.WSStudentHighlight,
				Payload: models.HighlightNotice{
					StudentID: event.UserID,
					Page:      p.Page,
					Text:      aggregator.Truncate(p.Text, 100),
				},
			})
		}
	case models.EventAnnotation:
		var p models.AnnotationPayload
		if err := decodeInto(event, &p); err == nil {
			s.publish(ctx, event.RoomID, models.WSMessage{
				Type: models.WSStudentAnnotation,
				Payload: models.AnnotationNotice{
					StudentID:   event.UserID,
					Page:        p.Page,
					NotePreview: aggregator.Truncate(p.Note, 50),
				},
			})
		}
	}

	switch event.EventType {
	case models.EventPageTime, models.EventHighlight, models.EventAnnotation:
	default:
		return
	}

	s.publish(ctx, event.RoomID, models.WSMessage{
		Type: models.WSAnalyticsUpdate,
		Payload: models.AnalyticsUpdate{
			SessionID:       event.SessionID,
			UserID:          event.UserID,
			ReadingPatterns: patterns,
			Event:           event.EventType,
		},
	})

	s.evaluateAlert(ctx, event, patterns)
}

// evaluateAlert raises the struggling alert when a session's comprehension
// drops below the threshold while engagement is low. In edge mode the alert
// latches and re-arms once the session recovers; level mode re-fires on
// every qualifying event, matching the dashboard's original behavior.
func (s *Service) evaluateAlert(ctx context.Context, event models.InteractionEvent, patterns models.ReadingPatterns) {
	below := patterns.ComprehensionScore < alertScoreBelow &&
		patterns.EngagementLevel == models.EngagementLow

	s.alertMu.Lock()
	wasAlerted := s.alerted[event.SessionID]
	if below {
		s.alerted[event.SessionID] = true
	} else {
		delete(s.alerted, event.SessionID)
	}
	s.alertMu.Unlock()

	if !below {
		return
	}
	if s.opts.AlertMode == AlertModeEdge && wasAlerted {
		return
	}

	s.log.Info().
		Str("session_id", event.SessionID).
		Str("user_id", event.UserID).
		Int("comprehension_score", patterns.ComprehensionScore).
		Msg("student struggling alert")

	s.publish(ctx, event.RoomID, models.WSMessage{
		Type: models.WSStrugglingAlert,
		Payload: models.StrugglingAlert{
			SessionID:          event.SessionID,
			UserID:             event.UserID,
			ComprehensionScore: patterns.ComprehensionScore,
			DifficultPages:     patterns.DifficultPages,
		},
	})
}

func (s *Service) publish(ctx context.Context, roomID string, msg models.WSMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, roomID, msg); err != nil {
		s.log.Warn().Err(err).Str("room_id", roomID).Str("type", msg.Type).
			Msg("observer publish failed")
	}
}

// seenBefore / markSeen implement best-effort event-id dedupe over redis.
// Events without an id are always applied; a redis outage degrades to
// at-least-once with a warning rather than blocking ingestion.

func (s *Service) seenBefore(ctx context.Context, event models.InteractionEvent) bool {
	if s.dedupe == nil || event.EventID == "" {
		return false
	}
	n, err := s.dedupe.Exists(ctx, dedupeKey(event)).Result()
	if err != nil {
		s.log.Warn().Err(err).Msg("event dedupe check failed")
		return false
	}
	return n > 0
}

func (s *Service) markSeen(ctx context.Context, event models.InteractionEvent) {
	if s.dedupe == nil || event.EventID == "" {
		return
	}
	if err := s.dedupe.SetNX(ctx, dedupeKey(event), 1, dedupeKeyTTL).Err(); err != nil {
		s.log.Warn().Err(err).Msg("event dedupe mark failed")
	}
}

func dedupeKey(event models.InteractionEvent) string {
	return "event_seen:" + event.SessionID + ":" + event.EventID
}

func decodeInto(event models.InteractionEvent, v interface{}) error {
	if len(event.Data) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(event.Data, v)
}
