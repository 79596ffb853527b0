package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinica-io/clinica-backend/domains/reservations/be/service"
	platformlogging "github.com/clinica-io/clinica-backend/platform/go/logging"
	"github.com/clinica-io/clinica-backend/platform/go/persistence"
)

// Handler exposes clinic reservations over HTTP. All routes require a tenant
// selection.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("reservations service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the reservation endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{publicID}", h.get)
	r.Post("/{publicID}/cancel", h.cancel)
	r.Post("/{publicID}/complete", h.complete)
}

type reservationPayload struct {
	PublicID     uuid.UUID `json:"id"`
	PatientName  string    `json:"patient_name"`
	PatientPhone string    `json:"patient_phone,omitempty"`
	BranchID     int64     `json:"branch_id"`
	DoctorID     int64     `json:"doctor_id"`
	ServiceID    *int64    `json:"service_id,omitempty"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type createRequest struct {
	PatientName  string    `json:"patient_name"`
	PatientPhone string    `json:"patient_phone"`
	BranchID     int64     `json:"branch_id"`
	DoctorID     int64     `json:"doctor_id"`
	ServiceID    *int64    `json:"service_id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))

	opts := service.ListOptions{Page: page, PageSize: size}
	if raw := q.Get("doctor_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			opts.DoctorID = &id
		}
	}
	if raw := q.Get("day"); raw != "" {
		if day, err := time.Parse("2006-01-02", raw); err == nil {
			opts.Day = &day
		}
	}

	result, err := h.svc.List(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]reservationPayload, 0, len(result.Reservations))
	for _, res := range result.Reservations {
		items = append(items, toPayload(res))
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
		PatientName:  req.PatientName,
		PatientPhone: req.PatientPhone,
		BranchID:     req.BranchID,
		DoctorID:     req.DoctorID,
		ServiceID:    req.ServiceID,
		ScheduledAt:  req.ScheduledAt,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayload(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	publicID, err := uuid.Parse(chi.URLParam(r, "publicID"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid reservation id")
		return
	}
	res, err := h.svc.Get(r.Context(), publicID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(res))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id uuid.UUID) (service.Reservation, error)) {
	publicID, err := uuid.Parse(chi.URLParam(r, "publicID"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid reservation id")
		return
	}
	res, err := op(r.Context(), publicID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(res))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, service.ErrSlotConflict):
		writeProblem(w, http.StatusConflict, "doctor already booked for this slot")
	case errors.Is(err, persistence.ErrNoTenantSelected):
		platformlogging.FromRequest(r, h.logger).Error("reservations handler reached without tenant", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "no clinic selected")
	case errors.Is(err, persistence.ErrDatabaseUnreachable):
		writeProblem(w, http.StatusServiceUnavailable, "clinic temporarily unavailable")
	default:
		platformlogging.FromRequest(r, h.logger).Error("reservations handler failure", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "internal error")
	}
}

func toPayload(res service.Reservation) reservationPayload {
	return reservationPayload{
		PublicID:     res.PublicID,
		PatientName:  res.PatientName,
		PatientPhone: res.PatientPhone,
		BranchID:     res.BranchID,
		DoctorID:     res.DoctorID,
		ServiceID:    res.ServiceID,
		ScheduledAt:  res.ScheduledAt,
		Status:       res.Status,
		CreatedAt:    res.CreatedAt,
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
