package domain

import "time"

// Role names used across the service. Stored as plain strings on the user
// record; the token carries a snapshot of them.
const (
	RoleAdmin = "Admin"
	RoleDev   = "Dev"
	RoleUser  = "User"
)

type User struct {
	ID           string
	Username     string
	PasswordHash string // argon2id, PHC encoded
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Roles returns the user's role set as carried in token claims.
func (u User) Roles() []string {
	if u.Role == "" {
		return nil
	}
	return []string{u.Role}
}
