package models

import "time"

// Role is a member's permission level within a group.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Group represents a set of people sharing expenses.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Goa Trip", "Flat 4B").
	Name string

	// CreatedBy is the user ID of the group's creator, who is its first admin.
	CreatedBy string

	// IsFinalized flips false -> true exactly once. While false, expenses can be
	// added, edited and deleted and no settlements exist. Once true, expenses are
	// frozen and the group's settlements exist.
	IsFinalized bool

	// FinalizedAt is set together with IsFinalized.
	FinalizedAt *time.Time

	// CreatedAt is when the group was created.
	CreatedAt time.Time
}

// Member is one user's membership in a group.
type Member struct {
	UserID string
	Name   string
	Role   Role
}
