package domain

import dErrors "licensure/pkg/domain-errors"

// Role is the authenticated capability of an actor. Roles are flat; an admin
// is not "also" a reviewer, it simply passes every role check.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleReviewer  Role = "reviewer"
	RoleRegistrar Role = "registrar"
	RoleAdmin     Role = "admin"
)

// validRoles is the single source of truth for supported roles.
var validRoles = map[Role]bool{
	RoleApplicant: true,
	RoleReviewer:  true,
	RoleRegistrar: true,
	RoleAdmin:     true,
}

// ParseRole constructs a Role from external input, typically a token claim.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

func (r Role) String() string { return string(r) }

// Actor is the authenticated principal attached to a request.
type Actor struct {
	ID   UserID
	Role Role
}

// CanVerify reports whether the actor may verify items on the ledger.
func (a Actor) CanVerify() bool {
	return a.Role == RoleReviewer || a.Role == RoleRegistrar || a.Role == RoleAdmin
}
