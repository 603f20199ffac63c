package models

import "time"

// Account represents a backend login identity.
type Account struct {
	ID string `gorm:"primaryKey;type:varchar(36)"` // Public account ID.

	Name     string `gorm:"type:text"`                      // Display name.
	Email    string `gorm:"type:text;not null;uniqueIndex"` // Login email address.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Session represents an issued login session.
type Session struct {
	ID string `gorm:"primaryKey;type:varchar(36)"` // Session ID carried in the signed secret.

	AccountID string   `gorm:"type:varchar(36);not null;index"` // Owning account ID.
	Account   *Account `gorm:"foreignKey:AccountID"`            // Owning account.

	ExpiresAt time.Time  `gorm:"not null"` // Hard expiry.
	RevokedAt *time.Time // Set when the session is deleted.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// RecoveryToken represents a pending password reset.
type RecoveryToken struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AccountID  string `gorm:"type:varchar(36);not null;index"` // Account being recovered.
	SecretHash string `gorm:"type:text;not null"`              // Hashed recovery secret.

	ExpiresAt time.Time  `gorm:"not null"` // Token expiry.
	UsedAt    *time.Time // Set once the token has been redeemed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
