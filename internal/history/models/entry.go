// Package models defines the verification-history audit record.
package models

import (
	"time"

	"github.com/google/uuid"

	appmodels "licensure/internal/application/models"
	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
)

// Action classifies what an actor did to an entity.
type Action string

const (
	ActionVerify   Action = "verify"
	ActionReject   Action = "reject"
	ActionApprove  Action = "approve"
	ActionUpdate   Action = "update"
	ActionComment  Action = "comment"
	ActionRegister Action = "register"
)

// ParseAction validates an action received at a trust boundary.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionVerify, ActionReject, ActionApprove, ActionUpdate, ActionComment, ActionRegister:
		return Action(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown action: "+s)
}

// ActionForTransition maps a target status onto the audit action recorded for
// the transition into it.
func ActionForTransition(target appmodels.Status) Action {
	switch target {
	case appmodels.StatusApproved:
		return ActionApprove
	case appmodels.StatusRejected:
		return ActionReject
	case appmodels.StatusRegistered:
		return ActionRegister
	default:
		return ActionUpdate
	}
}

// EntityType names the table the denormalized EntityID points into.
type EntityType string

const (
	EntityApplication EntityType = "application"
	EntityEducation   EntityType = "education"
	EntityExperience  EntityType = "experience"
	EntityTraining    EntityType = "training"
	EntityDocument    EntityType = "document"
)

// EntityForItemKind maps an item kind onto its history entity type.
func EntityForItemKind(kind appmodels.ItemKind) EntityType {
	return EntityType(kind)
}

// Entry is one immutable audit record. Entries are created exactly once, in
// the same logical transaction as the state mutation they document, and are
// never updated or deleted.
//
// Seq is assigned by the store and is strictly increasing per application; it
// breaks CreatedAt ties so history order is always reconstructible.
type Entry struct {
	ID            uuid.UUID        `json:"id"`
	Seq           int64            `json:"seq"`
	ApplicationID id.ApplicationID `json:"application_id"`
	ActorID       id.UserID        `json:"actor_id"`
	Action        Action           `json:"action"`
	EntityType    EntityType       `json:"entity_type"`
	EntityID      string           `json:"entity_id"`

	OldStatus *appmodels.Status `json:"old_status,omitempty"`
	NewStatus *appmodels.Status `json:"new_status,omitempty"`
	Notes     string            `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewTransitionEntry builds the audit record for a status transition.
func NewTransitionEntry(appID id.ApplicationID, actorID id.UserID, oldStatus, newStatus appmodels.Status, notes string, now time.Time) *Entry {
	o, n := oldStatus, newStatus
	return &Entry{
		ID:            uuid.New(),
		ApplicationID: appID,
		ActorID:       actorID,
		Action:        ActionForTransition(newStatus),
		EntityType:    EntityApplication,
		EntityID:      appID.String(),
		OldStatus:     &o,
		NewStatus:     &n,
		Notes:         notes,
		CreatedAt:     now,
	}
}

// NewVerificationEntry builds the audit record for an item verification.
func NewVerificationEntry(appID id.ApplicationID, actorID id.UserID, kind appmodels.ItemKind, itemID id.ItemID, notes string, now time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		ApplicationID: appID,
		ActorID:       actorID,
		Action:        ActionVerify,
		EntityType:    EntityForItemKind(kind),
		EntityID:      itemID.String(),
		Notes:         notes,
		CreatedAt:     now,
	}
}
