package models

import (
	"time"

	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
)

// Application is the aggregate root for a licensing application.
//
// Invariants:
//   - Status changes only through the transition table in status.go
//   - exactly one of ApprovedAt/RejectedAt is set once a terminal review
//     outcome is reached
//   - RejectionReason is set iff Status is rejected
//   - Version increments on every mutation; stores use it for optimistic
//     concurrency checks
//
// Applications are never deleted, only superseded by new statuses.
type Application struct {
	ID          id.ApplicationID `json:"id"`
	ApplicantID id.UserID        `json:"applicant_id"`
	Status      Status           `json:"status"`
	Version     int64            `json:"version"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`

	RejectionReason string     `json:"rejection_reason,omitempty"`
	ReviewerID      *id.UserID `json:"reviewer_id,omitempty"`
	RegistrarID     *id.UserID `json:"registrar_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewApplication creates a draft application for an applicant.
func NewApplication(appID id.ApplicationID, applicantID id.UserID, now time.Time) (*Application, error) {
	if applicantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "applicant id is required")
	}
	return &Application{
		ID:          appID,
		ApplicantID: applicantID,
		Status:      StatusDraft,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanTransition checks the legality and role rules for moving the application
// into target. It does not check the verification gating rule; that needs the
// attached items and is the service's responsibility.
// Use with ApplyTransition in store Execute callbacks.
func (a *Application) CanTransition(target Status, actor id.Actor) error {
	if !a.Status.CanTransitionTo(target) {
		return dErrors.New(dErrors.CodeIllegalTransition,
			"cannot transition from "+string(a.Status)+" to "+string(target))
	}
	if !RoleMayTransition(actor.Role, target) {
		return dErrors.New(dErrors.CodeForbidden,
			"role "+string(actor.Role)+" may not transition an application to "+string(target))
	}
	if target == StatusSubmitted && actor.Role == id.RoleApplicant && actor.ID != a.ApplicantID {
		return dErrors.New(dErrors.CodeForbidden, "only the owning applicant may submit this application")
	}
	return nil
}

// ApplyTransition moves the application into target and records the terminal
// timestamp fields. Call CanTransition first to validate.
func (a *Application) ApplyTransition(target Status, actor id.Actor, reason string, now time.Time) {
	a.Status = target
	a.Version++
	a.UpdatedAt = now

	switch target {
	case StatusSubmitted:
		t := now
		a.SubmittedAt = &t
	case StatusUnderReview:
		t := now
		a.ReviewedAt = &t
		actorID := actor.ID
		a.ReviewerID = &actorID
	case StatusApproved:
		t := now
		a.ApprovedAt = &t
	case StatusRejected:
		t := now
		a.RejectedAt = &t
		a.RejectionReason = reason
	case StatusRegistered:
		actorID := actor.ID
		a.RegistrarID = &actorID
	}
}

// Clone returns a deep copy so in-memory stores never hand out shared state.
func (a *Application) Clone() *Application {
	clone := *a
	clone.SubmittedAt = cloneTime(a.SubmittedAt)
	clone.ReviewedAt = cloneTime(a.ReviewedAt)
	clone.ApprovedAt = cloneTime(a.ApprovedAt)
	clone.RejectedAt = cloneTime(a.RejectedAt)
	clone.ReviewerID = cloneUserID(a.ReviewerID)
	clone.RegistrarID = cloneUserID(a.RegistrarID)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneUserID(u *id.UserID) *id.UserID {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
