package models

import "time"

// User represents a registered user as seen by this service.
//
// Identity (login, passwords, sessions) belongs to the external identity provider.
// This record only holds what settlement needs: a display name, the UPI id other
// members pay into, and the running points score.
type User struct {
	// ID is the identity provider's user ID.
	ID string

	// Name is the display name shown to other group members.
	Name string

	// UPI is the user's UPI virtual payment address (e.g. "alice@okbank").
	// Empty when the user has not linked one.
	UPI string

	// Points is the damped reputation score for prompt settlement.
	// Only updated when a debt owed by this user is confirmed received.
	Points int

	// CreatedAt is when the profile was first stored.
	CreatedAt time.Time
}
