package auth

import (
	"database/sql"
	"time"
)

// Role represents user permission levels
type Role string

const (
	RoleStudent Role = "student"
	RoleCook    Role = "cook"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleCook || r == RoleAdmin
}

// User represents an authenticated user
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Token represents an API token (never includes the raw token value)
type Token struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"userId"`
	TokenHash string     `json:"-"`
	Label     string     `json:"label"`
	ExpiresAt *time.Time `json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// TokenWithRaw is returned only once, right after creation
type TokenWithRaw struct {
	Token
	RawToken string `json:"token"`
}

// ValidatedToken is a live token together with its owner
type ValidatedToken struct {
	Token *Token
	User  *User
}

// ScanNullableTime converts sql.NullTime to *time.Time
func ScanNullableTime(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}
