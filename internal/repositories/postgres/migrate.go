package postgres

import (
	"github.com/yoockh/formdesk/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or extends the postulaciones and quejas tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.JobApplication{}, &models.Complaint{})
}
