package domain

import "time"

// DefaultMembership is the tag granted to every newly created user. Nothing
// enforces it; tokens and lookups simply carry it along.
const DefaultMembership = "COOL"

// User is the stored account record for a gateway caller.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity returns the principal view of the user, as carried in tokens.
func (u *User) Identity() Identity {
	return Identity{Username: u.Username, Roles: u.Roles}
}
