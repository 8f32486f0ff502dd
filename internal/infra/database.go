package infra

import (
	"fmt"

	"factumovil/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the Postgres pool and brings the schema up to date.
// Unique violations surface as gorm.ErrDuplicatedKey.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table. Shared by the server and by tests
// running on SQLite.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Emisor{},
		&model.Producto{},
		&model.Cliente{},
		&model.Comprobante{},
		&model.ComprobanteItem{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return nil
}
