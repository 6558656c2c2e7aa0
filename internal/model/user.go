// Package model defines database models
package model

import "time"

type User struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email             string     `gorm:"uniqueIndex;not null" json:"email"`
	Name              string     `json:"name"`
	Slug              string     `gorm:"uniqueIndex;not null" json:"slug"`
	PasswordHash      *string    `json:"-"` // nil for invited users that never set one
	RecoveryHash      *string    `gorm:"uniqueIndex" json:"-"`
	RecoveryExpiresAt *time.Time `json:"-"`
	IsAdmin           bool       `gorm:"default:false" json:"isAdmin"`

	BirthDate *time.Time `json:"birthDate,omitempty"`
	TaxID     string     `json:"taxId,omitempty"`
	PayoutKey string     `json:"payoutKey,omitempty"`
	BillingID string     `gorm:"index" json:"billingId,omitempty"` // external billing customer id
	AvatarKey string     `json:"avatarKey,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	SessionTokens []SessionToken `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// HasPassword reports whether a local password was ever set
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
