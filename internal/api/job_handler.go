package api

import (
	"context"
	"net/http"

	"github.com/phrazzld/digest-api/internal/api/shared"
	"github.com/phrazzld/digest-api/internal/domain"
)

// JobService submits and reads summarization jobs.
type JobService interface {
	Submit(ctx context.Context, userID int64, text string) (*domain.Job, error)
	Get(ctx context.Context, userID, jobID int64) (*domain.Job, error)
	List(ctx context.Context, userID int64, limit, offset int) ([]*domain.Job, error)
}

// JobHandler handles the job endpoints.
type JobHandler struct {
	jobs JobService
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(jobs JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// Create handles POST /api/jobs. The job is processed asynchronously, so a
// successful submission answers 202 with the pending job.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req CreateJobRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	job, err := h.jobs.Submit(r.Context(), userID, req.Text)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse(job))
}

// List handles GET /api/jobs.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid pagination parameters", err)
		return
	}

	jobs, err := h.jobs.List(r.Context(), userID, limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobToResponse(j))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// Get handles GET /api/jobs/{id}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	jobID, err := getPathID(r, "id")
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid job ID", err)
		return
	}

	job, err := h.jobs.Get(r.Context(), userID, jobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}
