package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity anchor. Email, phone and password are all optional;
// OTP-created users have only a phone.
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email        *string   `json:"email" gorm:"uniqueIndex"`
	Phone        *string   `json:"phone" gorm:"uniqueIndex"`
	PasswordHash *string   `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasPassword reports whether the user can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// UserRole assigns one role to one user; unique per (user, role).
type UserRole struct {
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;primaryKey"`
	Role      Role      `json:"role" gorm:"type:varchar(20);primaryKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// RefreshToken stores the hash of an issued refresh secret. The plaintext is
// only ever returned to the client.
type RefreshToken struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID  `json:"userId" gorm:"type:uuid;not null;index"`
	TokenHash string     `json:"-" gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time  `json:"expiresAt" gorm:"not null;index"`
	RevokedAt *time.Time `json:"revokedAt" gorm:"index"`
	CreatedAt time.Time  `json:"createdAt"`
}

// IsActive reports whether the token is unrevoked and unexpired at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// PhoneOtp is a hashed one-time code issued to a phone number.
type PhoneOtp struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Phone      string     `json:"phone" gorm:"not null;index"`
	CodeHash   string     `json:"-" gorm:"not null"`
	ExpiresAt  time.Time  `json:"expiresAt" gorm:"not null;index"`
	Attempts   int        `json:"attempts" gorm:"not null;default:0"`
	ConsumedAt *time.Time `json:"consumedAt"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"index"`
}

// IsLive reports whether the code is unconsumed and unexpired at now.
func (o *PhoneOtp) IsLive(now time.Time) bool {
	return o.ConsumedAt == nil && o.ExpiresAt.After(now)
}
