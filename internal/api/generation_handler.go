package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/api/shared"
	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/platform/metrics"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// GenerationService is the submission-side surface the handler needs.
// Satisfied by jobqueue.Manager.
type GenerationService interface {
	Submit(ctx context.Context, lessonID, userID uuid.UUID, opts domain.GenerationOptions) (*domain.Job, bool, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Job, error)
}

// GenerationHandler serves the generation job endpoints: submission,
// status, cancellation, and result retrieval.
type GenerationHandler struct {
	manager GenerationService
	cache   store.ResultCache
	logger  *slog.Logger
}

// NewGenerationHandler creates a GenerationHandler.
func NewGenerationHandler(manager GenerationService, cache store.ResultCache, logger *slog.Logger) *GenerationHandler {
	return &GenerationHandler{
		manager: manager,
		cache:   cache,
		logger:  logger.With("component", "generation_handler"),
	}
}

// Submit handles POST /api/generations. A new job answers 202; joining
// an existing job for the same content answers 200 with that job.
func (h *GenerationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitGenerationRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request")
		return
	}

	job, created, err := h.manager.Submit(r.Context(), req.LessonID, req.UserID, req.Options)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, NewJobResponse(job))
}

// GetStatus handles GET /api/generations/{id}.
func (h *GenerationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	job, err := h.manager.GetStatus(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewJobResponse(job))
}

// Cancel handles DELETE /api/generations/{id}.
func (h *GenerationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	job, err := h.manager.Cancel(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, NewJobResponse(job))
}

// GetJobResult handles GET /api/generations/{id}/result: the bundle a
// completed job produced, looked up under the submitting user's key.
func (h *GenerationHandler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	job, err := h.manager.GetStatus(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if job.State != domain.JobStateCompleted {
		shared.RespondWithError(w, r, http.StatusNotFound, "Job has not produced a result")
		return
	}

	bundle, err := h.lookup(r.Context(), store.ResultKey{ContentKey: job.ContentKey, UserID: job.UserID}, false)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, bundle)
}

// GetLessonResult handles GET /api/lessons/{lessonID}/result. The query
// carries the user, the option set that identifies the content, and the
// explicit allow_any_user flag that opts into serving another user's
// bundle for the same content.
func (h *GenerationHandler) GetLessonResult(w http.ResponseWriter, r *http.Request) {
	lessonID, err := uuid.Parse(chi.URLParam(r, "lessonID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid lesson ID")
		return
	}
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid user ID")
		return
	}

	opts, err := optionsFromQuery(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid generation options")
		return
	}

	allowAnyUser := r.URL.Query().Get("allow_any_user") == "true"
	key := store.ResultKey{ContentKey: domain.ContentKey(lessonID, opts), UserID: userID}

	bundle, err := h.lookup(r.Context(), key, allowAnyUser)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, bundle)
}

// lookup fetches the user's own bundle, falling back to the latest
// bundle for the content only when the caller opted in.
func (h *GenerationHandler) lookup(ctx context.Context, key store.ResultKey, allowAnyUser bool) (*domain.ArtifactBundle, error) {
	bundle, err := h.cache.Get(ctx, key)
	if err == nil {
		metrics.CacheLookup("hit")
		return bundle, nil
	}
	if allowAnyUser {
		if bundle, err = h.cache.GetLatest(ctx, key.ContentKey); err == nil {
			metrics.CacheLookup("hit")
			return bundle, nil
		}
	}
	metrics.CacheLookup("miss")
	return nil, err
}

func (h *GenerationHandler) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return uuid.Nil, false
	}
	return id, true
}

// optionsFromQuery rebuilds the option set that identifies the content
// from query parameters.
func optionsFromQuery(r *http.Request) (domain.GenerationOptions, error) {
	slideCount, err := strconv.Atoi(r.URL.Query().Get("slide_count"))
	if err != nil {
		return domain.GenerationOptions{}, err
	}

	opts := domain.GenerationOptions{
		SlideCount: slideCount,
		Voice:      r.URL.Query().Get("voice"),
		Style:      r.URL.Query().Get("style"),
		Language:   r.URL.Query().Get("language"),
	}
	opts.Normalize()
	if err := shared.ValidateRequest(opts); err != nil {
		return domain.GenerationOptions{}, err
	}
	return opts, nil
}
