// Package service orchestrates the application lifecycle: creation, item
// attachment, and the status state machine. All transition legality, role and
// gating rules are enforced here and in the models; handlers stay thin.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	appmetrics "licensure/internal/application/metrics"
	"licensure/internal/application/models"
	histmodels "licensure/internal/history/models"
	"licensure/internal/notify"
	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
	"licensure/pkg/platform/sentinel"
	"licensure/pkg/requestcontext"
)

// ApplicationStore is the persistence contract for Application aggregates.
// Execute holds the row lock (mutex or FOR UPDATE) across both callbacks so
// validation and mutation are atomic per application.
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	ListByApplicant(ctx context.Context, applicantID id.UserID) ([]*models.Application, error)
	Execute(
		ctx context.Context,
		appID id.ApplicationID,
		validate func(app *models.Application) error,
		mutate func(app *models.Application),
	) (*models.Application, error)
}

// ItemStore is the persistence contract for verifiable items, read here to
// evaluate the approval gating rule.
type ItemStore interface {
	Create(ctx context.Context, item *models.VerifiableItem) error
	ListByApplication(ctx context.Context, appID id.ApplicationID) ([]*models.VerifiableItem, error)
}

// HistoryStore appends audit entries inside the transition's transaction.
type HistoryStore interface {
	Append(ctx context.Context, entry *histmodels.Entry) error
}

// StatusCache is the optional read-side cache consulted by Get and
// invalidated on every transition. Never a durability layer.
type StatusCache interface {
	Get(ctx context.Context, appID id.ApplicationID) (*models.Application, bool)
	Set(ctx context.Context, app *models.Application)
	Invalidate(ctx context.Context, appID id.ApplicationID)
}

// Service owns the application state machine.
type Service struct {
	apps       ApplicationStore
	items      ItemStore
	history    HistoryStore
	tx         StoreTx
	cache      StatusCache
	dispatcher notify.Dispatcher
	logger     *slog.Logger
	metrics    *appmetrics.Metrics
	tracer     trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *appmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithDispatcher(d notify.Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

func WithStatusCache(c StatusCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

// New constructs a Service. Without WithTx it uses the in-memory sharded
// boundary, matching the memory stores.
func New(apps ApplicationStore, items ItemStore, history HistoryStore, opts ...Option) *Service {
	s := &Service{
		apps:    apps,
		items:   items,
		history: history,
		tracer:  otel.Tracer("licensure/application"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Create opens a new draft application for the applicant.
func (s *Service) Create(ctx context.Context, applicantID id.UserID) (*models.Application, error) {
	now := requestcontext.Now(ctx)
	app, err := models.NewApplication(id.NewApplicationID(), applicantID, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, "applicant id is required")
		}
		return nil, err
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create application")
	}
	s.logAudit(ctx, "application_created", "application_id", app.ID.String())
	if s.metrics != nil {
		s.metrics.ApplicationsOpened.Inc()
	}
	return app, nil
}

// Get returns an application, preferring the read-side cache.
func (s *Service) Get(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	if s.cache != nil {
		if app, ok := s.cache.Get(ctx, appID); ok {
			return app, nil
		}
	}
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		return nil, wrapStoreErr(err, "application")
	}
	if s.cache != nil {
		s.cache.Set(ctx, app)
	}
	return app, nil
}

// ListByApplicant returns all applications owned by the applicant.
func (s *Service) ListByApplicant(ctx context.Context, applicantID id.UserID) ([]*models.Application, error) {
	apps, err := s.apps.ListByApplicant(ctx, applicantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return apps, nil
}

// AttachItem adds a verifiable item to an application. Only the owning
// applicant or an admin may attach, and only while the application is still
// in play (not approved, rejected or registered).
func (s *Service) AttachItem(ctx context.Context, appID id.ApplicationID, kind models.ItemKind, fileRef string, actor id.Actor) (*models.VerifiableItem, error) {
	var item *models.VerifiableItem
	err := s.tx.RunInTx(ctx, appID, func(txCtx context.Context) error {
		app, err := s.apps.FindByID(txCtx, appID)
		if err != nil {
			return wrapStoreErr(err, "application")
		}
		if actor.Role != id.RoleAdmin && actor.ID != app.ApplicantID {
			return dErrors.New(dErrors.CodeForbidden, "only the owning applicant may attach items")
		}
		if app.Status.IsTerminal() || app.Status == models.StatusApproved {
			return dErrors.New(dErrors.CodeConflict, "cannot attach items to a closed application")
		}

		now := requestcontext.Now(txCtx)
		item, err = models.NewVerifiableItem(id.NewItemID(), appID, kind, fileRef, now)
		if err != nil {
			return err
		}
		if err := s.items.Create(txCtx, item); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to attach item")
		}

		entry := &histmodels.Entry{
			ID:            uuid.New(),
			ApplicationID: appID,
			ActorID:       actor.ID,
			Action:        histmodels.ActionUpdate,
			EntityType:    histmodels.EntityForItemKind(kind),
			EntityID:      item.ID.String(),
			Notes:         "item attached",
			CreatedAt:     now,
		}
		if err := s.history.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record item attachment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "item_attached",
		"application_id", appID.String(),
		"item_id", item.ID.String(),
		"kind", string(kind),
	)
	return item, nil
}

// errAlreadyInTarget signals the idempotent no-op path out of the Execute
// callback without committing a mutation.
var errAlreadyInTarget = errors.New("already in target status")

// Transition moves an application into target, enforcing the transition
// table, the role rule, and the approval gating rule as one atomic unit with
// the history append. Repeating a transition an application has already taken
// is a no-op success: the current state is returned and no duplicate history
// entry is written.
func (s *Service) Transition(ctx context.Context, appID id.ApplicationID, target models.Status, actor id.Actor, reason string) (*models.Application, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "application.Transition")
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveTransition(start)
	}

	var oldStatus models.Status
	var result *models.Application

	err := s.tx.RunInTx(ctx, appID, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		app, err := s.apps.Execute(txCtx, appID,
			func(app *models.Application) error {
				if app.Status == target {
					return errAlreadyInTarget
				}
				oldStatus = app.Status
				if err := app.CanTransition(target, actor); err != nil {
					return err
				}
				if target == models.StatusApproved {
					return s.requireAllItemsVerified(txCtx, appID)
				}
				return nil
			},
			func(app *models.Application) {
				app.ApplyTransition(target, actor, reason, now)
			},
		)
		if err != nil {
			if errors.Is(err, errAlreadyInTarget) {
				result, err = s.apps.FindByID(txCtx, appID)
				if err != nil {
					return wrapStoreErr(err, "application")
				}
				return nil
			}
			return wrapStoreErr(err, "application")
		}

		entry := histmodels.NewTransitionEntry(appID, actor.ID, oldStatus, target, reason, now)
		if err := s.history.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record transition")
		}
		result = app
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.TransitionsRefused.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
		}
		return nil, err
	}

	if result.Status == target && oldStatus != "" {
		s.afterTransition(ctx, appID, oldStatus, target)
	}
	return result, nil
}

// afterTransition runs the post-commit side effects: cache invalidation,
// audit logging, metrics, and the fire-and-forget notification.
func (s *Service) afterTransition(ctx context.Context, appID id.ApplicationID, oldStatus, newStatus models.Status) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, appID)
	}
	s.logAudit(ctx, "application_transitioned",
		"application_id", appID.String(),
		"old_status", string(oldStatus),
		"new_status", string(newStatus),
	)
	if s.metrics != nil {
		s.metrics.TransitionsApplied.WithLabelValues(string(newStatus)).Inc()
	}
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, notify.Event{
			ApplicationID: appID,
			OldStatus:     oldStatus,
			NewStatus:     newStatus,
			OccurredAt:    requestcontext.Now(ctx),
		})
	}
}

// requireAllItemsVerified is the approval gating rule: every attached item
// must be verified before an application may be approved. Evaluated lazily at
// approval time, under the transition's lock.
func (s *Service) requireAllItemsVerified(ctx context.Context, appID id.ApplicationID) error {
	items, err := s.items.ListByApplication(ctx, appID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load items for gating check")
	}
	unverified := 0
	for _, item := range items {
		if !item.IsVerified {
			unverified++
		}
	}
	if unverified > 0 {
		return dErrors.New(dErrors.CodeIncompleteVerification, "cannot approve: unverified items remain")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

// wrapStoreErr translates store sentinels into coded domain errors, passing
// already-coded errors through untouched.
func wrapStoreErr(err error, entity string) error {
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrVersionMismatch), errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConcurrentModification, entity+" was modified concurrently, retry after re-reading")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update "+entity)
	}
}
