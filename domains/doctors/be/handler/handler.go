package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clinica-io/clinica-backend/domains/doctors/be/service"
	platformlogging "github.com/clinica-io/clinica-backend/platform/go/logging"
	"github.com/clinica-io/clinica-backend/platform/go/persistence"
)

// Handler exposes clinic doctors over HTTP. All routes require a tenant
// selection; the access guard runs upstream.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("doctors service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the doctor endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{doctorID}", h.get)
	r.Patch("/{doctorID}", h.update)
}

type doctorPayload struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Specialty string    `json:"specialty,omitempty"`
	BranchID  *int64    `json:"branch_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type createRequest struct {
	FullName  string `json:"full_name"`
	Specialty string `json:"specialty"`
	BranchID  *int64 `json:"branch_id"`
}

type updateRequest struct {
	FullName  *string `json:"full_name"`
	Specialty *string `json:"specialty"`
	BranchID  *int64  `json:"branch_id"`
	IsActive  *bool   `json:"is_active"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))

	result, err := h.svc.List(r.Context(), service.ListOptions{Page: page, PageSize: size})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]doctorPayload, 0, len(result.Doctors))
	for _, d := range result.Doctors {
		items = append(items, toPayload(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"page":        result.Page,
		"page_size":   result.PageSize,
		"total_items": result.TotalItems,
		"total_pages": result.TotalPages,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateInput{
		FullName:  req.FullName,
		Specialty: req.Specialty,
		BranchID:  req.BranchID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayload(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "doctorID"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid doctor id")
		return
	}
	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(d))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "doctorID"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid doctor id")
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.svc.Update(r.Context(), id, service.UpdateInput{
		FullName:  req.FullName,
		Specialty: req.Specialty,
		BranchID:  req.BranchID,
		IsActive:  req.IsActive,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(updated))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "doctor not found")
	case errors.Is(err, persistence.ErrNoTenantSelected):
		// The guard should make this unreachable; report loudly.
		platformlogging.FromRequest(r, h.logger).Error("doctors handler reached without tenant", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "no clinic selected")
	case errors.Is(err, persistence.ErrDatabaseUnreachable):
		writeProblem(w, http.StatusServiceUnavailable, "clinic temporarily unavailable")
	default:
		platformlogging.FromRequest(r, h.logger).Error("doctors handler failure", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "internal error")
	}
}

func toPayload(d service.Doctor) doctorPayload {
	return doctorPayload{
		ID:        d.ID,
		FullName:  d.FullName,
		Specialty: d.Specialty,
		BranchID:  d.BranchID,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"status": status, "detail": detail})
}
