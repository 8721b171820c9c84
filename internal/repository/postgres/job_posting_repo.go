package postgres

import (
	"context"

	"github.com/dom/jober-auth/internal/domain"
	"gorm.io/gorm"
)

type jobPostingRepository struct {
	db *gorm.DB
}

func NewJobPostingRepository(db *gorm.DB) *jobPostingRepository {
	return &jobPostingRepository{db: db}
}

func (r *jobPostingRepository) Create(ctx context.Context, job *domain.JobPosting) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobPostingRepository) List(ctx context.Context, limit, offset int) ([]*domain.JobPosting, error) {
	var jobs []*domain.JobPosting
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
