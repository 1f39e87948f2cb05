package db

import (
	"github.com/easel-cloud/easel/internal/models"
	"github.com/pkg/errors"
)

// Migrate applies the schema for every model easel persists.
func Migrate() error {
	if err := Connection().AutoMigrate(
		&models.Generation{},
		&models.GenerationInput{},
	); err != nil {
		return errors.Wrap(err, "failed to migrate database schema")
	}

	return nil
}
