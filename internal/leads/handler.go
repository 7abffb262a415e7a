package leads

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-crm/meridian-crm/internal/platform/httpx"
	"github.com/meridian-crm/meridian-crm/internal/rbac"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler exposes the lead engine over JSON. Services are constructed per
// request so no state can leak between actors.
type Handler struct {
	logger    *slog.Logger
	repo      Repository
	publisher Publisher
	tasks     TaskEnqueuer
	audit     *shared.AuditLogger
	redis     *redis.Client
	validate  *validator.Validate
}

// NewHandler constructs the lead HTTP handler.
func NewHandler(logger *slog.Logger, repo Repository, publisher Publisher, tasks TaskEnqueuer, audit *shared.AuditLogger, redisClient *redis.Client) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		repo:      repo,
		publisher: publisher,
		tasks:     tasks,
		audit:     audit,
		redis:     redisClient,
		validate:  validator.New(),
	}
}

func (h *Handler) serviceFor(actor rbac.Actor) *Service {
	return NewService(h.logger, h.repo, h.publisher, h.tasks, h.audit, actor)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (rbac.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return rbac.Actor{}, false
	}
	return actor, true
}

type listResponse struct {
	Leads      []Lead            `json:"leads"`
	Total      int               `json:"total"`
	Pagination shared.Pagination `json:"pagination"`
}

func pageOf(offset, limit int) int {
	if limit <= 0 {
		return 1
	}
	return offset/limit + 1
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	req, err := parseListRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	rows, total, err := h.serviceFor(actor).List(r.Context(), req)
	if err != nil {
		h.logger.Error("list leads", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Leads:      rows,
		Total:      total,
		Pagination: shared.NewPagination(pageOf(req.Offset, req.Limit), req.Limit, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	lead, err := h.serviceFor(actor).Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req CreateLeadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	lead, err := h.serviceFor(actor).Create(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lead)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req UpdateLeadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	lead, err := h.serviceFor(actor).Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	if err := h.serviceFor(actor).Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req AssignLeadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	lead, err := h.serviceFor(actor).Assign(r.Context(), chi.URLParam(r, "id"), req.AssignedTo)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	stats, err := h.serviceFor(actor).Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

// Events streams permission-filtered lead changes over SSE. The relay is
// torn down when the client disconnects.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusNotImplemented, "Streaming Unsupported", "")
		return
	}

	relay := NewRelay(h.logger, h.redis, actor)
	events, err := relay.Subscribe(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer relay.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			h.logger.Warn("encode lead event", slog.Any("error", err))
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

func parseListRequest(r *http.Request) (ListLeadsRequest, error) {
	q := r.URL.Query()
	req := ListLeadsRequest{Limit: 50}

	if v := q.Get("status"); v != "" {
		status, err := ParseStatus(v)
		if err != nil {
			return req, fmt.Errorf("%v: %w", err, shared.ErrValidation)
		}
		req.Status = &status
	}
	if v := q.Get("search"); v != "" {
		req.Search = &v
	}
	if v := q.Get("company"); v != "" {
		req.Company = &v
	}
	if v := q.Get("state"); v != "" {
		req.State = &v
	}
	if v := q.Get("consent"); v != "" {
		consent := v == "true"
		req.Consent = &consent
	}
	if v := q.Get("assigned_to"); v != "" {
		req.AssignedTo = &v
	}
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 1000 {
			req.Limit = parsed
		}
	}
	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			req.Offset = parsed
		}
	}
	return req, nil
}
