// Package db opens the relational store and applies migrations
package db

import (
	"bitwise74/marketplace-auth/internal/model"
	"bitwise74/marketplace-auth/pkg/util"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Roles every deployment expects to exist
var builtinRoles = []model.Role{
	{Slug: "role-manager", Name: "Role manager"},
	{Slug: "network-manager", Name: "Network manager"},
}

type Options struct {
	Driver string
	DSN    string
	Debug  bool
}

func New(o Options) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch o.Driver {
	case DriverSQLite, "":
		dsn := o.DSN
		if dsn == "" {
			dsn = "database.db"
		}

		// If running in a docker container don't allow the sqlite file to be created.
		// The host should instead mount it using volumes
		if util.IsRunningInDocker() && dsn == "database.db" {
			if _, err := os.Stat(dsn); errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("SQLite database file not mounted, please use docker volumes to mount it to /app/database.db")
			}
		}

		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if o.DSN == "" {
			return nil, errors.New("postgres driver needs a dsn")
		}

		dialector = postgres.Open(o.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", o.Driver)
	}

	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
	if o.Debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database, %w", o.Driver, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates the tables and seeds the built-in roles once
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(model.User{}, model.SessionToken{}, model.Role{}, model.UserRole{}, model.SeedStep{})
	if err != nil {
		return fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return seedOnce(db, "0001_builtin_roles", func(tx *gorm.DB) error {
		roles := slices.Clone(builtinRoles)
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&roles).Error
	})
}

// seedOnce runs fn and records name in the same transaction. Deleted seed
// rows, such as a dropped built-in role, are not brought back.
func seedOnce(db *gorm.DB, name string, fn func(tx *gorm.DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.SeedStep{}).Where("name = ?", name).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check seed step %s, %w", name, err)
		}

		if n > 0 {
			return nil
		}

		if err := fn(tx); err != nil {
			return fmt.Errorf("failed to apply seed step %s, %w", name, err)
		}

		return tx.Create(&model.SeedStep{Name: name, AppliedAt: time.Now().UTC()}).Error
	})
}

// WithTx runs fn inside a transaction bound to ctx. It commits when fn returns
// nil and rolls back on error or panic.
func WithTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}
