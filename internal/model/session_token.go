package model

import "time"

// SessionToken is an issued bearer credential. Rows are never deleted on
// expiry, lookups compare ExpireAt instead.
type SessionToken struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64     `gorm:"index;not null" json:"userId"`
	Token        string    `gorm:"uniqueIndex;not null" json:"token"`
	Fingerprint  string    `gorm:"not null" json:"fingerprint"`
	IPAddress    string    `gorm:"not null" json:"ipAddress"`
	UserAgent    string    `gorm:"size:512;not null" json:"userAgent"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
	LastAccessAt time.Time `json:"lastAccessAt"`
	ExpireAt     time.Time `gorm:"index;not null" json:"expireAt"`
}
