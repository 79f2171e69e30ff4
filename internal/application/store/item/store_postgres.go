package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"licensure/internal/application/models"
	id "licensure/pkg/domain"
	"licensure/pkg/platform/sentinel"
	txcontext "licensure/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists verifiable items in PostgreSQL. Pure I/O; the
// verification service owns idempotence and history bookkeeping.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const itemColumns = `
	id, application_id, kind, file_ref,
	is_verified, verified_by, verification_date, verification_notes,
	created_at
`

func (s *PostgresStore) Create(ctx context.Context, item *models.VerifiableItem) error {
	query := `
		INSERT INTO verifiable_items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(item.ID),
		uuid.UUID(item.ApplicationID),
		string(item.Kind),
		item.FileRef,
		item.IsVerified,
		verifierOrNil(item.VerifiedBy),
		item.VerificationDate,
		item.VerificationNotes,
		item.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, itemID id.ItemID) (*models.VerifiableItem, error) {
	query := `SELECT ` + itemColumns + ` FROM verifiable_items WHERE id = $1`
	item, err := scanItem(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(itemID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find item: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListByApplication(ctx context.Context, appID id.ApplicationID) ([]*models.VerifiableItem, error) {
	query := `SELECT ` + itemColumns + ` FROM verifiable_items WHERE application_id = $1 ORDER BY created_at ASC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(appID))
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []*models.VerifiableItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

// Execute locks the item row, validates, mutates, and writes back. Runs
// inside the transaction carried by context so the history append commits
// with the item mutation.
func (s *PostgresStore) Execute(
	ctx context.Context,
	itemID id.ItemID,
	validate func(item *models.VerifiableItem) error,
	mutate func(item *models.VerifiableItem),
) (*models.VerifiableItem, error) {
	execer := s.execer(ctx)

	query := `SELECT ` + itemColumns + ` FROM verifiable_items WHERE id = $1 FOR UPDATE`
	item, err := scanItem(execer.QueryRowContext(ctx, query, uuid.UUID(itemID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock item: %w", err)
	}

	if err := validate(item); err != nil {
		return nil, err
	}
	mutate(item)

	update := `
		UPDATE verifiable_items SET
			is_verified = $2, verified_by = $3, verification_date = $4, verification_notes = $5
		WHERE id = $1
	`
	_, err = execer.ExecContext(ctx, update,
		uuid.UUID(item.ID),
		item.IsVerified,
		verifierOrNil(item.VerifiedBy),
		item.VerificationDate,
		item.VerificationNotes,
	)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return item, nil
}

type itemRow interface {
	Scan(dest ...any) error
}

func scanItem(row itemRow) (*models.VerifiableItem, error) {
	var (
		item              models.VerifiableItem
		itemUUID, appUUID uuid.UUID
		kind              string
		verifiedBy        *uuid.UUID
	)
	err := row.Scan(
		&itemUUID,
		&appUUID,
		&kind,
		&item.FileRef,
		&item.IsVerified,
		&verifiedBy,
		&item.VerificationDate,
		&item.VerificationNotes,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.ID = id.ItemID(itemUUID)
	item.ApplicationID = id.ApplicationID(appUUID)
	item.Kind = models.ItemKind(kind)
	if verifiedBy != nil {
		v := id.UserID(*verifiedBy)
		item.VerifiedBy = &v
	}
	return &item, nil
}

func verifierOrNil(userID *id.UserID) *uuid.UUID {
	if userID == nil {
		return nil
	}
	u := uuid.UUID(*userID)
	return &u
}
