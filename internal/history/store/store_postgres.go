package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	appmodels "licensure/internal/application/models"
	"licensure/internal/history/models"
	id "licensure/pkg/domain"
	txcontext "licensure/pkg/platform/tx"
)

// Postgres persists history entries in the verification_history table.
// The table is append-only; seq is a BIGSERIAL so insertion order is always
// recoverable even when created_at collides. This store is pure I/O — the
// services own when and what gets appended.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts an entry, joining the surrounding transaction when one is in
// context so the history write commits atomically with the state mutation.
func (s *Postgres) Append(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO verification_history (
			id, application_id, actor_id, action, entity_type, entity_id,
			old_status, new_status, notes, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`
	var oldStatus, newStatus *string
	if entry.OldStatus != nil {
		v := string(*entry.OldStatus)
		oldStatus = &v
	}
	if entry.NewStatus != nil {
		v := string(*entry.NewStatus)
		newStatus = &v
	}

	err := s.execer(ctx).QueryRowContext(ctx, query,
		entry.ID,
		uuid.UUID(entry.ApplicationID),
		uuid.UUID(entry.ActorID),
		string(entry.Action),
		string(entry.EntityType),
		entry.EntityID,
		oldStatus,
		newStatus,
		entry.Notes,
		entry.CreatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// ListByApplication returns entries ordered by (created_at, seq) ascending.
func (s *Postgres) ListByApplication(ctx context.Context, appID id.ApplicationID) ([]models.Entry, error) {
	query := `
		SELECT id, seq, application_id, actor_id, action, entity_type, entity_id,
		       old_status, new_status, notes, created_at
		FROM verification_history
		WHERE application_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(appID))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var (
			entry                models.Entry
			appUUID, actorUUID   uuid.UUID
			oldStatus, newStatus sql.NullString
		)
		err := rows.Scan(
			&entry.ID,
			&entry.Seq,
			&appUUID,
			&actorUUID,
			&entry.Action,
			&entry.EntityType,
			&entry.EntityID,
			&oldStatus,
			&newStatus,
			&entry.Notes,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.ApplicationID = id.ApplicationID(appUUID)
		entry.ActorID = id.UserID(actorUUID)
		if oldStatus.Valid {
			v := appmodels.Status(oldStatus.String)
			entry.OldStatus = &v
		}
		if newStatus.Valid {
			v := appmodels.Status(newStatus.String)
			entry.NewStatus = &v
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// CountByApplication returns the number of entries recorded for an application.
func (s *Postgres) CountByApplication(ctx context.Context, appID id.ApplicationID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verification_history WHERE application_id = $1`,
		uuid.UUID(appID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}
