// Package service implements the verification ledger: reviewers mark the
// items attached to an application as verified, one at a time, each mark
// producing exactly one audit entry.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	appmodels "licensure/internal/application/models"
	histmodels "licensure/internal/history/models"
	vmetrics "licensure/internal/verification/metrics"
	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
	"licensure/pkg/platform/sentinel"
	"licensure/pkg/requestcontext"
)

// ItemStore is the persistence contract for verifiable items. Execute holds
// the row lock across both callbacks.
type ItemStore interface {
	FindByID(ctx context.Context, itemID id.ItemID) (*appmodels.VerifiableItem, error)
	Execute(
		ctx context.Context,
		itemID id.ItemID,
		validate func(item *appmodels.VerifiableItem) error,
		mutate func(item *appmodels.VerifiableItem),
	) (*appmodels.VerifiableItem, error)
}

// HistoryStore appends audit entries inside the verification's transaction.
type HistoryStore interface {
	Append(ctx context.Context, entry *histmodels.Entry) error
}

// StoreTx serializes ledger writes per application, matching the lifecycle
// module's transactional boundary. The same concrete boundary satisfies both.
type StoreTx interface {
	RunInTx(ctx context.Context, appID id.ApplicationID, fn func(ctx context.Context) error) error
}

// Service owns the verification ledger.
type Service struct {
	items   ItemStore
	history HistoryStore
	tx      StoreTx
	logger  *slog.Logger
	metrics *vmetrics.Metrics
	tracer  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *vmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service. tx must be the same transactional boundary the
// lifecycle service uses so ledger writes and transitions share serialization.
func New(items ItemStore, history HistoryStore, tx StoreTx, opts ...Option) *Service {
	s := &Service{
		items:   items,
		history: history,
		tx:      tx,
		tracer:  otel.Tracer("licensure/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// errAlreadyVerified signals the idempotent repeat path out of the Execute
// callback without committing a mutation or an audit entry.
var errAlreadyVerified = errors.New("item already verified")

// VerifyItem marks one item verified and appends the audit entry atomically.
// kind must match the stored item; a mismatch reads as not found so callers
// cannot probe which kinds exist under an ID. Verifying an already-verified
// item succeeds without touching the ledger: first reviewer wins, the stored
// verifier and date never change.
func (s *Service) VerifyItem(ctx context.Context, kind appmodels.ItemKind, itemID id.ItemID, actor id.Actor, notes string) (*appmodels.VerifiableItem, error) {
	ctx, span := s.tracer.Start(ctx, "verification.VerifyItem")
	defer span.End()

	if !actor.CanVerify() {
		return nil, dErrors.New(dErrors.CodeForbidden, "role "+string(actor.Role)+" may not verify items")
	}

	// Read outside the boundary only to learn which application serializes
	// this write; the authoritative read happens under the lock.
	located, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, wrapItemErr(err)
	}
	if located.Kind != kind {
		return nil, dErrors.New(dErrors.CodeNotFound, "item not found")
	}
	appID := located.ApplicationID

	var result *appmodels.VerifiableItem
	var repeated bool
	err = s.tx.RunInTx(ctx, appID, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		item, err := s.items.Execute(txCtx, itemID,
			func(item *appmodels.VerifiableItem) error {
				if item.Kind != kind {
					return dErrors.New(dErrors.CodeNotFound, "item not found")
				}
				if item.IsVerified {
					return errAlreadyVerified
				}
				return nil
			},
			func(item *appmodels.VerifiableItem) {
				item.ApplyVerification(actor.ID, notes, now)
			},
		)
		if err != nil {
			if errors.Is(err, errAlreadyVerified) {
				repeated = true
				result, err = s.items.FindByID(txCtx, itemID)
				if err != nil {
					return wrapItemErr(err)
				}
				return nil
			}
			return wrapItemErr(err)
		}

		entry := histmodels.NewVerificationEntry(appID, actor.ID, kind, itemID, notes, now)
		if err := s.history.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record verification")
		}
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	if repeated {
		if s.metrics != nil {
			s.metrics.RepeatedVerifys.Inc()
		}
		return result, nil
	}

	s.logAudit(ctx, "item_verified",
		"application_id", appID.String(),
		"item_id", itemID.String(),
		"kind", string(kind),
	)
	if s.metrics != nil {
		s.metrics.ItemsVerified.WithLabelValues(string(kind)).Inc()
	}
	return result, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func wrapItemErr(err error) error {
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "item not found")
	case errors.Is(err, sentinel.ErrVersionMismatch), errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConcurrentModification, "item was modified concurrently, retry after re-reading")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update item")
	}
}
