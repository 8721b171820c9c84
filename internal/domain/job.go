package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobPosting is a recruiter-owned listing. Details holds the free-form
// posting body as submitted.
type JobPosting struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	RecruiterID uuid.UUID      `json:"recruiterId" gorm:"type:uuid;not null;index"`
	Title       string         `json:"title" gorm:"not null"`
	Details     datatypes.JSON `json:"details" gorm:"type:jsonb"`
	CreatedAt   time.Time      `json:"createdAt"`
}
