package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dom/jober-auth/internal/api/middleware"
	"github.com/dom/jober-auth/internal/api/respond"
	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/service"
	"go.uber.org/zap"
)

type JobHandler struct {
	jobService *service.JobService
	logger     *zap.Logger
}

func NewJobHandler(jobService *service.JobService, logger *zap.Logger) *JobHandler {
	return &JobHandler{jobService: jobService, logger: logger}
}

type CreateJobRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

var jobMessages = map[string]string{
	"title.required": "title is required",
	"title":          "title must be at most 200 characters",
}

type JobResponse struct {
	ID          string          `json:"id"`
	RecruiterID string          `json:"recruiterId"`
	Title       string          `json:"title"`
	Details     json.RawMessage `json:"details"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type ListJobsResponse struct {
	Jobs   []JobResponse `json:"jobs"`
	UserID string        `json:"userId"`
	Roles  []string      `json:"roles"`
}

type CreateJobResponse struct {
	Job         JobResponse `json:"job"`
	RecruiterID string      `json:"recruiterId"`
}

func newJobResponse(job *domain.JobPosting) JobResponse {
	details := json.RawMessage(job.Details)
	if len(details) == 0 {
		details = json.RawMessage("{}")
	}
	return JobResponse{
		ID:          job.ID.String(),
		RecruiterID: job.RecruiterID.String(),
		Title:       job.Title,
		Details:     details,
		CreatedAt:   job.CreatedAt,
	}
}

// List returns postings newest first. Accepts limit and offset query parameters.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		respond.Error(w, h.logger, "job.List", domain.ErrUnauthenticated)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	jobs, err := h.jobService.List(r.Context(), limit, offset)
	if err != nil {
		respond.Error(w, h.logger, "job.List", err)
		return
	}

	resp := ListJobsResponse{
		Jobs:   make([]JobResponse, 0, len(jobs)),
		UserID: identity.UserID.String(),
		Roles:  domain.RoleStrings(identity.Roles),
	}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, newJobResponse(job))
	}
	respond.JSON(w, http.StatusOK, resp)
}

// Create stores the whole JSON object body as the posting details.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		respond.Error(w, h.logger, "job.Create", domain.ErrUnauthenticated)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || !isJSONObject(raw) {
		respond.Error(w, h.logger, "job.Create", errInvalidJSON)
		return
	}

	var req CreateJobRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		respond.Error(w, h.logger, "job.Create", errInvalidJSON)
		return
	}
	if err := validateRequest(&req, jobMessages); err != nil {
		respond.Error(w, h.logger, "job.Create", err)
		return
	}

	job, err := h.jobService.Create(r.Context(), identity.UserID, req.Title, raw)
	if err != nil {
		respond.Error(w, h.logger, "job.Create", err)
		return
	}

	respond.JSON(w, http.StatusCreated, CreateJobResponse{
		Job:         newJobResponse(job),
		RecruiterID: identity.UserID.String(),
	})
}

func isJSONObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}
