package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"licensure/internal/application/models"
	appstore "licensure/internal/application/store/application"
	itemstore "licensure/internal/application/store/item"
	histmodels "licensure/internal/history/models"
	histstore "licensure/internal/history/store"
	"licensure/internal/notify"
	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
	"licensure/pkg/requestcontext"
)

type ApplicationServiceSuite struct {
	suite.Suite

	ctx     context.Context
	apps    *appstore.InMemory
	items   *itemstore.InMemory
	history *histstore.InMemory
	events  *notify.ChannelDispatcher
	service *Service

	applicant id.Actor
	reviewer  id.Actor
	registrar id.Actor
}

func TestApplicationServiceSuite(t *testing.T) {
	suite.Run(t, new(ApplicationServiceSuite))
}

func (s *ApplicationServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC))
	s.apps = appstore.NewInMemory()
	s.items = itemstore.NewInMemory()
	s.history = histstore.NewInMemory()
	s.events = notify.NewChannelDispatcher(64, logger)
	s.service = New(s.apps, s.items, s.history,
		WithLogger(logger),
		WithDispatcher(s.events),
	)

	s.applicant = id.Actor{ID: id.NewUserID(), Role: id.RoleApplicant}
	s.reviewer = id.Actor{ID: id.NewUserID(), Role: id.RoleReviewer}
	s.registrar = id.Actor{ID: id.NewUserID(), Role: id.RoleRegistrar}
}

func (s *ApplicationServiceSuite) createDraft() *models.Application {
	app, err := s.service.Create(s.ctx, s.applicant.ID)
	s.Require().NoError(err)
	return app
}

func (s *ApplicationServiceSuite) attachVerifiedItem(appID id.ApplicationID, kind models.ItemKind) *models.VerifiableItem {
	item, err := s.service.AttachItem(s.ctx, appID, kind, "", s.applicant)
	s.Require().NoError(err)
	_, err = s.items.Execute(s.ctx, item.ID,
		func(*models.VerifiableItem) error { return nil },
		func(i *models.VerifiableItem) {
			i.ApplyVerification(s.reviewer.ID, "checked", time.Now().UTC())
		},
	)
	s.Require().NoError(err)
	return item
}

func (s *ApplicationServiceSuite) TestCreate_StartsAsDraftWithEmptyHistory() {
	app := s.createDraft()

	s.Equal(models.StatusDraft, app.Status)
	count, err := s.history.CountByApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Zero(count)
}

// TestFullLifecycle walks the happy path end to end and checks every
// intermediate state and the resulting audit trail.
func (s *ApplicationServiceSuite) TestFullLifecycle() {
	app := s.createDraft()
	s.attachVerifiedItem(app.ID, models.ItemKindEducation)

	app, err := s.service.Transition(s.ctx, app.ID, models.StatusSubmitted, s.applicant, "")
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, app.Status)
	s.NotNil(app.SubmittedAt)

	app, err = s.service.Transition(s.ctx, app.ID, models.StatusUnderReview, s.reviewer, "")
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, app.Status)

	app, err = s.service.Transition(s.ctx, app.ID, models.StatusApproved, s.reviewer, "")
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, app.Status)

	app, err = s.service.Transition(s.ctx, app.ID, models.StatusRegistered, s.registrar, "")
	s.Require().NoError(err)
	s.Equal(models.StatusRegistered, app.Status)
	s.Require().NotNil(app.RegistrarID)
	s.Equal(s.registrar.ID, *app.RegistrarID)

	entries, err := s.history.ListByApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	// One per transition plus the item attachment.
	s.Len(entries, 5)
	last := entries[len(entries)-1]
	s.Equal(histmodels.ActionRegister, last.Action)
}

func (s *ApplicationServiceSuite) TestTransition_IllegalEdgeRefused() {
	app := s.createDraft()

	_, err := s.service.Transition(s.ctx, app.ID, models.StatusApproved, s.reviewer, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))

	// No history entry for a refused transition.
	count, err := s.history.CountByApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ApplicationServiceSuite) TestTransition_RoleRefused() {
	app := s.createDraft()
	_, err := s.service.Transition(s.ctx, app.ID, models.StatusSubmitted, s.applicant, "")
	s.Require().NoError(err)

	_, err = s.service.Transition(s.ctx, app.ID, models.StatusUnderReview, s.applicant, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ApplicationServiceSuite) TestTransition_OtherApplicantCannotSubmit() {
	app := s.createDraft()
	stranger := id.Actor{ID: id.NewUserID(), Role: id.RoleApplicant}

	_, err := s.service.Transition(s.ctx, app.ID, models.StatusSubmitted, stranger, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ApplicationServiceSuite) TestTransition_UnknownApplication() {
	_, err := s.service.Transition(s.ctx, id.NewApplicationID(), models.StatusSubmitted, s.applicant, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// TestApprovalGating exercises the gating rule: approval is refused while any
// item is unverified and succeeds once all are verified, with no partial
// effects from the refused attempt.
func (s *ApplicationServiceSuite) TestApprovalGating() {
	app := s.createDraft()
	item, err := s.service.AttachItem(s.ctx, app.ID, models.ItemKindExperience, "", s.applicant)
	s.Require().NoError(err)

	_, err = s.service.Transition(s.ctx, app.ID, models.StatusSubmitted, s.applicant, "")
	s.Require().NoError(err)
	_, err = s.service.Transition(s.ctx, app.ID, models.StatusUnderReview, s.reviewer, "")
	s.Require().NoError(err)

	historyBefore, err := s.history.CountByApplication(s.ctx, app.ID)
	s.Require().NoError(err)

	_, err = s.service.Transition(s.ctx, app.ID, models.StatusApproved, s.reviewer, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIncompleteVerification))

	// Status and history untouched by the refused approval.
	current, err := s.service.Get(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, current.Status)
	historyAfter, err := s.history.CountByApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(historyBefore, historyAfter)

	// Verify the item, approval now passes.
	_, err = s.items.Execute(s.ctx, item.ID,
		func(*models.VerifiableItem) error { return nil },
		func(i *models.VerifiableItem) {
			i.ApplyVerification(s.reviewer.ID, "", time.Now().UTC())
		},
	)
	s.Require().NoError(err)

	approved, err := s.service.Transition(s.ctx, app.ID, models.StatusApproved, s.reviewer, "")
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, approved.Status)
}

func (s *ApplicationServiceSuite) TestApproval_NoItemsApproves() {
	app := s.createDraft()
	_, err := s.service.Transition(s.ctx, app.ID, models.StatusSubmitted, s.applicant, "")
	s.Require().NoError(err)
	_, err = s.service.Transition(s.ctx, app.ID, models.StatusUnderReview, s.reviewer, "")
	s.Require().NoError(err)

	approved, err := s.service.Transition(s.ctx, app.ID, models.StatusApproved, s.reviewer, "")
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, approved.Status)
}

// TestTransition_Idempotent repeats a transition the application already
// took: the call succeeds, returns current state, and appends nothing.
func (s *ApplicationServiceSuite) TestTransition_Idempotent() {
	app := s.createDraft()
	first, err := s.service.Transition(s.ctx, app.ID, models.StatusSubmitted, s.applicant, "")
	s.Require().NoError(err)

	countAfterFirst, err := s.history.CountByApplication(s.ctx, app.ID)
	s.Require().NoError(err)

	second, err := s.service.Transition(s.ctx, app.ID, models.StatusSubmitted, s.applicant, "")
	s.Require().NoError(err)
	s.Equal(first.Status, second.Status)
	s.Equal(first.Version, second.Version)

	countAfterSecond, err := s.history.CountByApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(countAfterFirst, countAfterSecond)
}

// TestTransition_ConcurrentSingleWinner fires N identical transitions at one
// application. Exactly one thread of effects must win: the final history
// holds a single submitted entry no matter how the calls interleave.
func (s *ApplicationServiceSuite) TestTransition_ConcurrentSingleWinner() {
	app := s.createDraft()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.service.Transition(s.ctx, app.ID, models.StatusSubmitted, s.applicant, "")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		s.Require().NoError(err)
	}

	current, err := s.service.Get(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, current.Status)

	count, err := s.history.CountByApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(1, count, "exactly one transition must be recorded")
}

func (s *ApplicationServiceSuite) TestTransition_DispatchesNotification() {
	app := s.createDraft()
	_, err := s.service.Transition(s.ctx, app.ID, models.StatusSubmitted, s.applicant, "")
	s.Require().NoError(err)

	select {
	case event := <-s.events.Inbox():
		s.Equal(app.ID, event.ApplicationID)
		s.Equal(models.StatusDraft, event.OldStatus)
		s.Equal(models.StatusSubmitted, event.NewStatus)
	default:
		s.Fail("expected a notification event")
	}
}

func (s *ApplicationServiceSuite) TestTransition_NoNotificationOnRepeat() {
	app := s.createDraft()
	_, err := s.service.Transition(s.ctx, app.ID, models.StatusSubmitted, s.applicant, "")
	s.Require().NoError(err)
	<-s.events.Inbox()

	_, err = s.service.Transition(s.ctx, app.ID, models.StatusSubmitted, s.applicant, "")
	s.Require().NoError(err)

	select {
	case <-s.events.Inbox():
		s.Fail("repeat transition must not emit an event")
	default:
	}
}

func (s *ApplicationServiceSuite) TestTransition_TerminalStatesFrozen() {
	app := s.createDraft()
	steps := []struct {
		target models.Status
		actor  id.Actor
	}{
		{models.StatusSubmitted, s.applicant},
		{models.StatusUnderReview, s.reviewer},
		{models.StatusRejected, s.reviewer},
	}
	for _, step := range steps {
		_, err := s.service.Transition(s.ctx, app.ID, step.target, step.actor, "reason")
		s.Require().NoError(err)
	}

	_, err := s.service.Transition(s.ctx, app.ID, models.StatusUnderReview, s.reviewer, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
}

func (s *ApplicationServiceSuite) TestPendingDocumentsLoop() {
	app := s.createDraft()
	_, err := s.service.Transition(s.ctx, app.ID, models.StatusSubmitted, s.applicant, "")
	s.Require().NoError(err)
	_, err = s.service.Transition(s.ctx, app.ID, models.StatusUnderReview, s.reviewer, "")
	s.Require().NoError(err)

	// The review loop may bounce any number of times.
	for i := 0; i < 3; i++ {
		_, err = s.service.Transition(s.ctx, app.ID, models.StatusPendingDocuments, s.reviewer, "need transcripts")
		s.Require().NoError(err)
		_, err = s.service.Transition(s.ctx, app.ID, models.StatusUnderReview, s.reviewer, "")
		s.Require().NoError(err)
	}

	current, err := s.service.Get(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, current.Status)
}

func (s *ApplicationServiceSuite) TestAttachItem_OnlyOwnerOrAdmin() {
	app := s.createDraft()

	_, err := s.service.AttachItem(s.ctx, app.ID, models.ItemKindDocument, "s3://bucket/key", s.reviewer)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	item, err := s.service.AttachItem(s.ctx, app.ID, models.ItemKindDocument, "s3://bucket/key", s.applicant)
	s.Require().NoError(err)
	s.Equal("s3://bucket/key", item.FileRef)
	s.False(item.IsVerified)

	admin := id.Actor{ID: id.NewUserID(), Role: id.RoleAdmin}
	_, err = s.service.AttachItem(s.ctx, app.ID, models.ItemKindTraining, "", admin)
	s.Require().NoError(err)
}

func (s *ApplicationServiceSuite) TestGet_NotFound() {
	_, err := s.service.Get(s.ctx, id.NewApplicationID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ApplicationServiceSuite) TestListByApplicant() {
	first := s.createDraft()
	second := s.createDraft()

	apps, err := s.service.ListByApplicant(s.ctx, s.applicant.ID)
	s.Require().NoError(err)
	s.Len(apps, 2)
	ids := map[id.ApplicationID]bool{apps[0].ID: true, apps[1].ID: true}
	s.True(ids[first.ID])
	s.True(ids[second.ID])
}

// TestShardedTx_LockTimeout pins a shard and checks that a competing caller
// fails with a timeout instead of blocking forever.
func TestShardedTx_LockTimeout(t *testing.T) {
	tx := NewShardedTx()
	appID := id.NewApplicationID()

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = tx.RunInTx(context.Background(), appID, func(context.Context) error {
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := tx.RunInTx(ctx, appID, func(context.Context) error { return nil })
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

// TestShardedTx_DifferentApplicationsProceed checks cross-application
// parallelism: holding one application's boundary must not block another's.
func TestShardedTx_DifferentApplicationsProceed(t *testing.T) {
	tx := NewShardedTx()
	first := id.NewApplicationID()
	second := id.NewApplicationID()
	// Shards are hashed; pick a second ID on a different shard.
	for shardFor(second) == shardFor(first) {
		second = id.NewApplicationID()
	}

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = tx.RunInTx(context.Background(), first, func(context.Context) error {
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ran := false
	err := tx.RunInTx(ctx, second, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
}
