package database

import "marquee/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Poster{},
		&models.RequestRecord{},
		&models.Subscriber{},
		&models.SubmissionLog{},
		&models.IntegrityLog{},
	}
}
