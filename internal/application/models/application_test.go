package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
)

func newDraft(t *testing.T) *Application {
	t.Helper()
	app, err := NewApplication(id.NewApplicationID(), id.NewUserID(), time.Now().UTC())
	require.NoError(t, err)
	return app
}

func TestNewApplication(t *testing.T) {
	app := newDraft(t)
	assert.Equal(t, StatusDraft, app.Status)
	assert.EqualValues(t, 1, app.Version)
	assert.Nil(t, app.SubmittedAt)

	_, err := NewApplication(id.NewApplicationID(), id.UserID{}, time.Now())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestCanTransition_IllegalEdge(t *testing.T) {
	app := newDraft(t)
	reviewer := id.Actor{ID: id.NewUserID(), Role: id.RoleReviewer}

	err := app.CanTransition(StatusApproved, reviewer)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIllegalTransition))
}

func TestCanTransition_RoleRefused(t *testing.T) {
	app := newDraft(t)
	app.Status = StatusUnderReview
	applicant := id.Actor{ID: app.ApplicantID, Role: id.RoleApplicant}

	err := app.CanTransition(StatusApproved, applicant)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestCanTransition_OnlyOwnerSubmits(t *testing.T) {
	app := newDraft(t)

	stranger := id.Actor{ID: id.NewUserID(), Role: id.RoleApplicant}
	err := app.CanTransition(StatusSubmitted, stranger)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	owner := id.Actor{ID: app.ApplicantID, Role: id.RoleApplicant}
	require.NoError(t, app.CanTransition(StatusSubmitted, owner))

	// Admin may submit on the applicant's behalf.
	admin := id.Actor{ID: id.NewUserID(), Role: id.RoleAdmin}
	require.NoError(t, app.CanTransition(StatusSubmitted, admin))
}

func TestApplyTransition_Timestamps(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	app := newDraft(t)
	owner := id.Actor{ID: app.ApplicantID, Role: id.RoleApplicant}
	reviewer := id.Actor{ID: id.NewUserID(), Role: id.RoleReviewer}
	registrar := id.Actor{ID: id.NewUserID(), Role: id.RoleRegistrar}

	app.ApplyTransition(StatusSubmitted, owner, "", now)
	require.NotNil(t, app.SubmittedAt)
	assert.Equal(t, now, *app.SubmittedAt)
	assert.EqualValues(t, 2, app.Version)

	app.ApplyTransition(StatusUnderReview, reviewer, "", now)
	require.NotNil(t, app.ReviewedAt)
	require.NotNil(t, app.ReviewerID)
	assert.Equal(t, reviewer.ID, *app.ReviewerID)

	app.ApplyTransition(StatusApproved, reviewer, "", now)
	require.NotNil(t, app.ApprovedAt)
	assert.Nil(t, app.RejectedAt)

	app.ApplyTransition(StatusRegistered, registrar, "", now)
	require.NotNil(t, app.RegistrarID)
	assert.Equal(t, registrar.ID, *app.RegistrarID)
	assert.EqualValues(t, 5, app.Version)
}

func TestApplyTransition_RejectionReason(t *testing.T) {
	app := newDraft(t)
	app.Status = StatusUnderReview
	reviewer := id.Actor{ID: id.NewUserID(), Role: id.RoleReviewer}

	app.ApplyTransition(StatusRejected, reviewer, "incomplete education records", time.Now().UTC())
	assert.Equal(t, StatusRejected, app.Status)
	assert.Equal(t, "incomplete education records", app.RejectionReason)
	require.NotNil(t, app.RejectedAt)
	assert.Nil(t, app.ApprovedAt)
}

func TestClone_Isolated(t *testing.T) {
	app := newDraft(t)
	reviewer := id.Actor{ID: id.NewUserID(), Role: id.RoleReviewer}
	app.ApplyTransition(StatusSubmitted, id.Actor{ID: app.ApplicantID, Role: id.RoleApplicant}, "", time.Now().UTC())
	app.ApplyTransition(StatusUnderReview, reviewer, "", time.Now().UTC())

	clone := app.Clone()
	*clone.ReviewerID = id.NewUserID()
	clone.Status = StatusRejected

	assert.Equal(t, reviewer.ID, *app.ReviewerID)
	assert.Equal(t, StatusUnderReview, app.Status)
}
