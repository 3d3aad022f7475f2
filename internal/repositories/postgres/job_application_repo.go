package postgres

import (
	"context"

	"github.com/yoockh/formdesk/internal/models"
	"gorm.io/gorm"
)

type JobApplicationRepository interface {
	Insert(ctx context.Context, a *models.JobApplication) error
	// ListAll returns every job application, newest first.
	ListAll(ctx context.Context) ([]models.JobApplication, error)
}

type jobApplicationRepo struct {
	db *gorm.DB
}

func NewJobApplicationRepo(db *gorm.DB) JobApplicationRepository {
	return &jobApplicationRepo{db: db}
}

func (r *jobApplicationRepo) Insert(ctx context.Context, a *models.JobApplication) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *jobApplicationRepo) ListAll(ctx context.Context) ([]models.JobApplication, error) {
	var rows []models.JobApplication
	err := r.db.WithContext(ctx).
		Order("submitted_at DESC").
		Find(&rows).Error
	return rows, err
}
