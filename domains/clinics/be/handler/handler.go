package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clinica-io/clinica-backend/domains/clinics/be/service"
	platformlogging "github.com/clinica-io/clinica-backend/platform/go/logging"
)

// Handler exposes the clinic registry over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("clinics service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the clinic admin endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{clinicID}", h.get)
	r.Post("/{clinicID}/deactivate", h.deactivate)
	r.Post("/{clinicID}/activate", h.activate)
}

type clinicPayload struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	DatabaseName string    `json:"database_name"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type createRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type listResponse struct {
	Items      []clinicPayload `json:"items"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalItems int             `json:"total_items"`
	TotalPages int             `json:"total_pages"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	activeOnly := q.Get("active") == "true"

	result, err := h.svc.List(r.Context(), service.ListOptions{
		Page:       page,
		PageSize:   size,
		ActiveOnly: activeOnly,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]clinicPayload, 0, len(result.Clinics))
	for _, c := range result.Clinics {
		items = append(items, toPayload(c))
	}
	writeJSON(w, http.StatusOK, listResponse{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateInput{Name: req.Name, Slug: req.Slug})
	if err != nil {
		// The record may exist with provisioning incomplete; surface that
		// distinctly so the operator retries provisioning, not creation.
		if created.ID != 0 {
			logger := platformlogging.FromRequest(r, h.logger)
			logger.Error("clinic registered but provisioning failed",
				zap.Int64("clinic_id", created.ID), zap.Error(err))
			writeProblem(w, http.StatusAccepted, "clinic registered, provisioning incomplete")
			return
		}
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/admin/clinics/"+strconv.FormatInt(created.ID, 10))
	writeJSON(w, http.StatusCreated, toPayload(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := clinicID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid clinic id")
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(c))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := clinicID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid clinic id")
		return
	}
	var c service.Clinic
	if active {
		c, err = h.svc.Activate(r.Context(), id)
	} else {
		c, err = h.svc.Deactivate(r.Context(), id)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(c))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "clinic not found")
	case errors.Is(err, service.ErrConflictSlug):
		writeProblem(w, http.StatusConflict, "clinic slug already exists")
	default:
		logger := platformlogging.FromRequest(r, h.logger)
		logger.Error("clinics handler failure", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "internal error")
	}
}

func clinicID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "clinicID"), 10, 64)
}

func toPayload(c service.Clinic) clinicPayload {
	return clinicPayload{
		ID:           c.ID,
		Name:         c.Name,
		Slug:         c.Slug,
		DatabaseName: c.DatabaseName,
		IsActive:     c.IsActive,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
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
