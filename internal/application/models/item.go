package models

import (
	"time"

	id "licensure/pkg/domain"
	dErrors "licensure/pkg/domain-errors"
)

// ItemKind distinguishes the four sorts of supporting evidence.
type ItemKind string

const (
	ItemKindEducation  ItemKind = "education"
	ItemKindExperience ItemKind = "experience"
	ItemKindTraining   ItemKind = "training"
	ItemKindDocument   ItemKind = "document"
)

// ParseItemKind validates an item kind received at a trust boundary.
func ParseItemKind(s string) (ItemKind, error) {
	switch ItemKind(s) {
	case ItemKindEducation, ItemKindExperience, ItemKindTraining, ItemKindDocument:
		return ItemKind(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown item kind: "+s)
}

// VerifiableItem is a discrete piece of supporting evidence attached to an
// application.
//
// Invariant: VerifiedBy and VerificationDate are set iff IsVerified is true.
// Document items carry an opaque FileRef owned by the file-storage
// collaborator; the service never reads file bytes.
type VerifiableItem struct {
	ID            id.ItemID        `json:"id"`
	ApplicationID id.ApplicationID `json:"application_id"`
	Kind          ItemKind         `json:"kind"`
	FileRef       string           `json:"file_ref,omitempty"`

	IsVerified        bool       `json:"is_verified"`
	VerifiedBy        *id.UserID `json:"verified_by,omitempty"`
	VerificationDate  *time.Time `json:"verification_date,omitempty"`
	VerificationNotes string     `json:"verification_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewVerifiableItem attaches a new, unverified item to an application.
func NewVerifiableItem(itemID id.ItemID, appID id.ApplicationID, kind ItemKind, fileRef string, now time.Time) (*VerifiableItem, error) {
	if appID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application id is required")
	}
	if _, err := ParseItemKind(string(kind)); err != nil {
		return nil, err
	}
	return &VerifiableItem{
		ID:            itemID,
		ApplicationID: appID,
		Kind:          kind,
		FileRef:       fileRef,
		CreatedAt:     now,
	}, nil
}

// ApplyVerification marks the item verified. Re-verifying an already verified
// item is a no-op by policy, so callers may invoke this unconditionally.
func (i *VerifiableItem) ApplyVerification(verifier id.UserID, notes string, now time.Time) {
	if i.IsVerified {
		return
	}
	i.IsVerified = true
	v := verifier
	i.VerifiedBy = &v
	t := now
	i.VerificationDate = &t
	i.VerificationNotes = notes
}

// Clone returns a deep copy so in-memory stores never hand out shared state.
func (i *VerifiableItem) Clone() *VerifiableItem {
	clone := *i
	clone.VerifiedBy = cloneUserID(i.VerifiedBy)
	clone.VerificationDate = cloneTime(i.VerificationDate)
	return &clone
}
