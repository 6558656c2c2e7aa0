// Package testutil has fixtures shared by the package tests
package testutil

import (
	"context"
	"testing"

	"bitwise74/marketplace-auth/db"
	"bitwise74/marketplace-auth/internal/model"
	"bitwise74/marketplace-auth/pkg/util"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB returns a migrated in-memory sqlite database private to t
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := db.New(db.Options{
		Driver: db.DriverSQLite,
		DSN:    "file:" + util.RandID(12) + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)

	// A single connection avoids SQLITE_LOCKED inside transactions
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return conn
}

// CreateUser inserts a user with the given email and optional password hash
func CreateUser(t testing.TB, conn *gorm.DB, email string, hash *string) *model.User {
	t.Helper()

	u := &model.User{
		Email:        email,
		Name:         email,
		Slug:         util.RandID(10),
		PasswordHash: hash,
	}
	require.NoError(t, conn.WithContext(context.Background()).Create(u).Error)

	return u
}
