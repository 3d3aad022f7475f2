package postgres

import (
	"context"

	"github.com/yoockh/formdesk/internal/models"
	"gorm.io/gorm"
)

type ComplaintRepository interface {
	Insert(ctx context.Context, c *models.Complaint) error
	ListAll(ctx context.Context) ([]models.Complaint, error)
}

type complaintRepo struct {
	db *gorm.DB
}

func NewComplaintRepo(db *gorm.DB) ComplaintRepository {
	return &complaintRepo{db: db}
}

func (r *complaintRepo) Insert(ctx context.Context, c *models.Complaint) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *complaintRepo) ListAll(ctx context.Context) ([]models.Complaint, error) {
	var rows []models.Complaint
	err := r.db.WithContext(ctx).
		Order("submitted_at DESC").
		Find(&rows).Error
	return rows, err
}
