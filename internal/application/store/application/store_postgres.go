package application

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

// uniqueViolation is the postgres error code for duplicate keys.
const uniqueViolation = "23505"

// PostgresStore persists applications in PostgreSQL. This store is pure I/O;
// transition legality, role and gating rules belong to the models and service.
//
// Execute must run inside a transaction started by the service's StoreTx so
// the row lock and the history append commit together.
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

const applicationColumns = `
	id, applicant_id, status, version,
	submitted_at, reviewed_at, approved_at, rejected_at,
	rejection_reason, reviewer_id, registrar_id,
	created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(app.ID),
		uuid.UUID(app.ApplicantID),
		string(app.Status),
		app.Version,
		app.SubmittedAt,
		app.ReviewedAt,
		app.ApprovedAt,
		app.RejectedAt,
		app.RejectionReason,
		userIDOrNil(app.ReviewerID),
		userIDOrNil(app.RegistrarID),
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	app, err := scanApplication(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(appID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return app, nil
}

func (s *PostgresStore) ListByApplicant(ctx context.Context, applicantID id.UserID) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE applicant_id = $1 ORDER BY created_at ASC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(applicantID))
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

// Execute locks the application row, validates, mutates, and writes back
// guarded by the optimistic version check. A version mismatch between read
// and write surfaces sentinel.ErrVersionMismatch so the service can report
// ConcurrentModification.
func (s *PostgresStore) Execute(
	ctx context.Context,
	appID id.ApplicationID,
	validate func(app *models.Application) error,
	mutate func(app *models.Application),
) (*models.Application, error) {
	execer := s.execer(ctx)

	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1 FOR UPDATE`
	app, err := scanApplication(execer.QueryRowContext(ctx, query, uuid.UUID(appID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock application: %w", err)
	}

	priorVersion := app.Version
	if err := validate(app); err != nil {
		return nil, err
	}
	mutate(app)

	update := `
		UPDATE applications SET
			status = $2, version = $3,
			submitted_at = $4, reviewed_at = $5, approved_at = $6, rejected_at = $7,
			rejection_reason = $8, reviewer_id = $9, registrar_id = $10,
			updated_at = $11
		WHERE id = $1 AND version = $12
	`
	result, err := execer.ExecContext(ctx, update,
		uuid.UUID(app.ID),
		string(app.Status),
		app.Version,
		app.SubmittedAt,
		app.ReviewedAt,
		app.ApprovedAt,
		app.RejectedAt,
		app.RejectionReason,
		userIDOrNil(app.ReviewerID),
		userIDOrNil(app.RegistrarID),
		app.UpdatedAt,
		priorVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update application rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, sentinel.ErrVersionMismatch
	}
	return app, nil
}

type applicationRow interface {
	Scan(dest ...any) error
}

func scanApplication(row applicationRow) (*models.Application, error) {
	var (
		app                    models.Application
		appUUID, applicantUUID uuid.UUID
		status                 string
		reviewerID             *uuid.UUID
		registrarID            *uuid.UUID
	)
	err := row.Scan(
		&appUUID,
		&applicantUUID,
		&status,
		&app.Version,
		&app.SubmittedAt,
		&app.ReviewedAt,
		&app.ApprovedAt,
		&app.RejectedAt,
		&app.RejectionReason,
		&reviewerID,
		&registrarID,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	app.ID = id.ApplicationID(appUUID)
	app.ApplicantID = id.UserID(applicantUUID)
	app.Status = models.Status(status)
	if reviewerID != nil {
		v := id.UserID(*reviewerID)
		app.ReviewerID = &v
	}
	if registrarID != nil {
		v := id.UserID(*registrarID)
		app.RegistrarID = &v
	}
	return &app, nil
}

func userIDOrNil(userID *id.UserID) *uuid.UUID {
	if userID == nil {
		return nil
	}
	u := uuid.UUID(*userID)
	return &u
}
