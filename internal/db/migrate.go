package db

import (
	"fmt"

	"github.com/router-for-me/Storefront/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the embedded backend schema.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.Account{},
		&models.Session{},
		&models.RecoveryToken{},
		&models.Document{},
		&models.File{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	return nil
}
