package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studypulse-backend/internal/models"
)

// ErrNotFound is returned by Get when no aggregate exists for a session.
var ErrNotFound = errors.New("session aggregate not found")

// InteractionRepo stores one aggregate document per session, keyed by
// session id. It is plain CRUD: read-modify-write exclusivity belongs to the
// ingestion service's per-session locks.
type InteractionRepo struct {
	pool *pgxpool.Pool
}

func NewInteractionRepo(pool *pgxpool.Pool) *InteractionRepo {
	return &InteractionRepo{pool: pool}
}

// GetOrCreate returns the aggregate for sessionID, lazily creating an empty
// one on first sight. Accepting events for sessions we have not seen yet is
// deliberate: the ingestion service never fails on an unknown session.
func (r *InteractionRepo) GetOrCreate(ctx context.Context, sessionID, roomID, userID string) (*models.SessionAggregate, error) {
	fresh := models.NewSessionAggregate(sessionID, roomID, userID)
	doc, err := json.Marshal(fresh)
	if err != nil {
		return nil, fmt.Errorf("marshal aggregate: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO pdf_interactions (session_id, room_id, user_id, aggregate)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO NOTHING
	`, sessionID, roomID, userID, doc)
	if err != nil {
		return nil, fmt.Errorf("insert aggregate: %w", err)
	}

	return r.Get(ctx, sessionID)
}

// Get returns the aggregate for sessionID, or ErrNotFound.
func (r *InteractionRepo) Get(ctx context.Context, sessionID string) (*models.SessionAggregate, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `
		SELECT aggregate FROM pdf_interactions WHERE session_id = $1
	`, sessionID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query aggregate: %w", err)
	}

	return unmarshalAggregate(doc)
}

// Save replaces the stored document for the aggregate's session.
func (r *InteractionRepo) Save(ctx context.Context, agg *models.SessionAggregate) error {
	doc, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("marshal aggregate: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE pdf_interactions
		SET aggregate = $2, updated_at = NOW()
		WHERE session_id = $1
	`, agg.SessionID, doc)
	if err != nil {
		return fmt.Errorf("save aggregate: %w", err)
	}
	return nil
}

// ListByRoom returns every session aggregate recorded for a room.
func (r *InteractionRepo) ListByRoom(ctx context.Context, roomID string) ([]*models.SessionAggregate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT aggregate FROM pdf_interactions
		WHERE room_id = $1
		ORDER BY created_at
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []*models.SessionAggregate
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		agg, err := unmarshalAggregate(doc)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, agg)
	}
	return aggs, rows.Err()
}

func unmarshalAggregate(doc []byte) (*models.SessionAggregate, error) {
	var agg models.SessionAggregate
	if err := json.Unmarshal(doc, &agg); err != nil {
		return nil, fmt.Errorf("unmarshal aggregate: %w", err)
	}
	// Older documents may predate some fields; the reducer expects maps.
	if agg.PagesVisited == nil {
		agg.PagesVisited = map[int]int{}
	}
	if agg.PageTimeSpent == nil {
		agg.PageTimeSpent = map[int]int64{}
	}
	return &agg, nil
}
