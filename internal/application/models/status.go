package models

import (
	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
)

// Status is the authoritative lifecycle state of an application.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusSubmitted        Status = "submitted"
	StatusUnderReview      Status = "under_review"
	StatusPendingDocuments Status = "pending_documents"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusRegistered       Status = "registered"
)

// ParseStatus validates a status received at a trust boundary.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusPendingDocuments,
		StatusApproved, StatusRejected, StatusRegistered:
		return Status(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown status: "+s)
}

// transitions is the single source of truth for legal status changes.
// pending_documents may cycle back to under_review without bound.
var transitions = map[Status][]Status{
	StatusDraft:            {StatusSubmitted},
	StatusSubmitted:        {StatusUnderReview},
	StatusUnderReview:      {StatusPendingDocuments, StatusApproved, StatusRejected},
	StatusPendingDocuments: {StatusUnderReview},
	StatusApproved:         {StatusRegistered},
	StatusRejected:         {},
	StatusRegistered:       {},
}

// CanTransitionTo reports whether target appears in the transition table for s.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are legal from s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// allowedRoles is the single capability table consulted for every transition.
// submitted is special-cased: the owning applicant (or an admin) submits.
var allowedRoles = map[Status][]id.Role{
	StatusSubmitted:        {id.RoleApplicant, id.RoleAdmin},
	StatusUnderReview:      {id.RoleReviewer, id.RoleRegistrar, id.RoleAdmin},
	StatusPendingDocuments: {id.RoleReviewer, id.RoleRegistrar, id.RoleAdmin},
	StatusApproved:         {id.RoleReviewer, id.RoleRegistrar, id.RoleAdmin},
	StatusRejected:         {id.RoleReviewer, id.RoleRegistrar, id.RoleAdmin},
	StatusRegistered:       {id.RoleRegistrar, id.RoleAdmin},
}

// RoleMayTransition reports whether the role is permitted to move an
// application into target. Ownership for draft→submitted is checked by the
// aggregate, which knows the applicant.
func RoleMayTransition(role id.Role, target Status) bool {
	for _, allowed := range allowedRoles[target] {
		if allowed == role {
			return true
		}
	}
	return false
}
