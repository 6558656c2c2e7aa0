package model

type Role struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug string `gorm:"uniqueIndex;not null" json:"slug"`
	Name string `json:"name"`
}

// UserRole is the user_roles join row
type UserRole struct {
	UserID int64 `gorm:"primaryKey"`
	RoleID int64 `gorm:"primaryKey"`
}
