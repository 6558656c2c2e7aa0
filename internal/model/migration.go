package model

import "time"

// SeedStep records a data seed that ran against this database. Steps are
// keyed by name and never run twice.
type SeedStep struct {
	Name      string    `gorm:"primaryKey;size:64"`
	AppliedAt time.Time `gorm:"not null"`
}

func (SeedStep) TableName() string {
	return "seed_steps"
}
