package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/timesheet-backend-go/internal/domain/syncjob"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/handler/http/response"
	"github.com/cmlabs-hris/timesheet-backend-go/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type SyncJobHandler interface {
	Start(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
}

type syncJobHandlerImpl struct {
	syncJobService syncjob.SyncJobService
}

func NewSyncJobHandler(syncJobService syncjob.SyncJobService) SyncJobHandler {
	return &syncJobHandlerImpl{
		syncJobService: syncJobService,
	}
}

// Start implements SyncJobHandler. The job runs in the background; the
// response carries its id for polling.
func (h *syncJobHandlerImpl) Start(w http.ResponseWriter, r *http.Request) {
	var req syncjob.StartJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.syncJobService.StartJob(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/jobs/"+result.ID)
	response.Created(w, "Sync job started", result)
}

// List implements SyncJobHandler.
func (h *syncJobHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	filter := syncjob.JobFilter{}

	if kind := r.URL.Query().Get("kind"); kind != "" {
		filter.Kind = &kind
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if limitNum, err := strconv.Atoi(l); err == nil && limitNum > 0 {
			filter.Limit = limitNum
		}
	}

	result, err := h.syncJobService.ListJobs(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Get implements SyncJobHandler.
func (h *syncJobHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.BadRequest(w, "Invalid job ID", nil)
		return
	}

	result, err := h.syncJobService.GetJob(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
