// Package domain holds the typed identifiers and actor model shared by every
// module. IDs are distinct named UUID types so an ItemID can never be passed
// where an ApplicationID is expected.
//
// Construct IDs from external input via the Parse functions; direct casting
// bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "licensure/pkg/domain-errors"
)

type (
	// UserID identifies an account in any role.
	UserID uuid.UUID
	// ApplicationID identifies a licensing application.
	ApplicationID uuid.UUID
	// ItemID identifies a verifiable item attached to an application.
	ItemID uuid.UUID
)

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

func NewUserID() UserID               { return UserID(uuid.New()) }
func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }
func NewItemID() ItemID               { return ItemID(uuid.New()) }

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseApplicationID constructs an ApplicationID from external input.
func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseUUID(s, "application id")
	return ApplicationID(u), err
}

// ParseItemID constructs an ItemID from external input.
func ParseItemID(s string) (ItemID, error) {
	u, err := parseUUID(s, "item id")
	return ItemID(u), err
}

func (i UserID) String() string        { return uuid.UUID(i).String() }
func (i ApplicationID) String() string { return uuid.UUID(i).String() }
func (i ItemID) String() string        { return uuid.UUID(i).String() }

func (i UserID) IsNil() bool        { return uuid.UUID(i) == uuid.Nil }
func (i ApplicationID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }
func (i ItemID) IsNil() bool        { return uuid.UUID(i) == uuid.Nil }

func (i UserID) UUID() uuid.UUID        { return uuid.UUID(i) }
func (i ApplicationID) UUID() uuid.UUID { return uuid.UUID(i) }
func (i ItemID) UUID() uuid.UUID        { return uuid.UUID(i) }

// MarshalText/UnmarshalText make typed IDs transparent in JSON payloads.

func (i UserID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }
func (i *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

func (i ApplicationID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }
func (i *ApplicationID) UnmarshalText(b []byte) error {
	parsed, err := ParseApplicationID(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

func (i ItemID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }
func (i *ItemID) UnmarshalText(b []byte) error {
	parsed, err := ParseItemID(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
