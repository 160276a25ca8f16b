// Package models defines the core domain models for FairShare.
//
// # Models
//
//   - User: a person known to the identity provider, with a UPI id and a points score
//   - Group: a set of members sharing expenses, finalized exactly once
//   - Member: a user's membership in a group, with a role (admin or member)
//   - Expense: an amount paid by one member on behalf of the group
//   - Partition: one member's share of one expense
//   - Settlement: a persisted debt from one member to another, created at finalization
//
// # Conventions
//
//  1. Money is decimal.Decimal, never float64
//  2. Relationships are ID strings, not pointers
//  3. Optional values (paid time, earned points) are pointers; a nil pointer is "not set"
//
// # Lifecycle
//
// A group's expenses are mutable until the group is finalized. Finalization turns the
// group's net balances into Settlement rows, which then move through
//
//	CREATED -> MODE_SELECTED -> RECEIVED
//
// and never go back.
package models
