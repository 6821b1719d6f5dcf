package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type User struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Username      string         `json:"username" gorm:"uniqueIndex;not null"`
	Email         string         `json:"email" gorm:"uniqueIndex;not null"`
	FullName      string         `json:"fullName" gorm:"not null"`
	AvatarURL     string         `json:"avatarUrl" gorm:"not null"`
	CoverImageURL string         `json:"coverImageUrl"`
	PasswordHash  string         `json:"-" gorm:"not null"`
	RefreshToken  *string        `json:"-"` // nil means no active session
	WatchHistory  datatypes.JSON `json:"watchHistory" gorm:"type:jsonb;default:'[]'"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Sanitized returns a copy safe to hand to callers outside the core:
// the password hash and the stored refresh token are cleared.
func (u User) Sanitized() *User {
	u.PasswordHash = ""
	u.RefreshToken = nil
	return &u
}

// HasSession reports whether the user currently holds an active refresh session.
func (u *User) HasSession() bool {
	return u.RefreshToken != nil && *u.RefreshToken != ""
}
