package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/repository"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const defaultJobPageSize = 50

type JobService struct {
	jobRepo repository.JobPostingRepository
}

func NewJobService(jobRepo repository.JobPostingRepository) *JobService {
	return &JobService{jobRepo: jobRepo}
}

func (s *JobService) List(ctx context.Context, limit, offset int) ([]*domain.JobPosting, error) {
	if limit <= 0 || limit > defaultJobPageSize {
		limit = defaultJobPageSize
	}
	if offset < 0 {
		offset = 0
	}
	jobs, err := s.jobRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, domain.Internal("list jobs", err)
	}
	return jobs, nil
}

// Create stores a posting. body is the raw JSON object submitted by the recruiter.
func (s *JobService) Create(ctx context.Context, recruiterID uuid.UUID, title string, body json.RawMessage) (*domain.JobPosting, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.Validation("title is required")
	}

	job := &domain.JobPosting{
		ID:          uuid.New(),
		RecruiterID: recruiterID,
		Title:       title,
		Details:     datatypes.JSON(body),
		CreatedAt:   time.Now(),
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, domain.Internal("create job", err)
	}
	return job, nil
}
