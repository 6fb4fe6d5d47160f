package entity

import (
	"time"
)

// User is the account record this service reads for ownership checks,
// reply snapshots and the follow graph. Accounts are managed elsewhere.
//
// Passwords are stored as bcrypt hashes in Password field
type User struct {
	ID         string
	Email      string
	Password   string
	Name       string
	Username   string
	ProfilePic string
	Following  []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
