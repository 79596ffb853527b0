package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("reservation not found")
	ErrSlotConflict = errors.New("doctor already booked for this slot")
)

// Status values a reservation moves through.
const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Reservation is one booked appointment inside a clinic database.
type Reservation struct {
	ID           int64
	PublicID     uuid.UUID
	PatientName  string
	PatientPhone string
	BranchID     int64
	DoctorID     int64
	ServiceID    *int64
	ScheduledAt  time.Time
	Status       string
	CreatedAt    time.Time
}

// CreateInput represents a booking request.
type CreateInput struct {
	PatientName  string
	PatientPhone string
	BranchID     int64
	DoctorID     int64
	ServiceID    *int64
	ScheduledAt  time.Time
}

// ListOptions filters the reservation listing.
type ListOptions struct {
	Page     int
	PageSize int
	DoctorID *int64
	Day      *time.Time // matches the calendar day of ScheduledAt, UTC
}

// ListResult wraps paginated reservations.
type ListResult struct {
	Reservations []Reservation
	Page         int
	PageSize     int
	TotalItems   int
	TotalPages   int
}

// Repository abstracts tenant persistence for reservations.
type Repository interface {
	Create(ctx context.Context, res Reservation) (Reservation, error)
	GetByPublicID(ctx context.Context, publicID uuid.UUID) (Reservation, error)
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	SetStatus(ctx context.Context, publicID uuid.UUID, status string) (Reservation, error)
	CountDoctorSlot(ctx context.Context, doctorID int64, at time.Time) (int, error)
}

// Service provides booking operations for the selected clinic.
type Service struct {
	repo Repository
}

// New constructs a Service.
func New(repo Repository) *Service {
	if repo == nil {
		panic("reservations repo is required")
	}
	return &Service{repo: repo}
}

// Create books an appointment after checking the doctor's slot. The slot
// check and insert are not atomic; the database unique index is absent on
// purpose since overlapping slots are a soft business rule here, so a racing
// double-book is tolerated and resolved by staff.
func (s *Service) Create(ctx context.Context, input CreateInput) (Reservation, error) {
	name := strings.TrimSpace(input.PatientName)
	if name == "" {
		return Reservation{}, fmt.Errorf("patient name is required")
	}
	if input.DoctorID == 0 || input.BranchID == 0 {
		return Reservation{}, fmt.Errorf("doctor and branch are required")
	}
	if input.ScheduledAt.IsZero() {
		return Reservation{}, fmt.Errorf("scheduled time is required")
	}

	taken, err := s.repo.CountDoctorSlot(ctx, input.DoctorID, input.ScheduledAt)
	if err != nil {
		return Reservation{}, err
	}
	if taken > 0 {
		return Reservation{}, ErrSlotConflict
	}

	return s.repo.Create(ctx, Reservation{
		PublicID:     uuid.New(),
		PatientName:  name,
		PatientPhone: strings.TrimSpace(input.PatientPhone),
		BranchID:     input.BranchID,
		DoctorID:     input.DoctorID,
		ServiceID:    input.ServiceID,
		ScheduledAt:  input.ScheduledAt.UTC(),
		Status:       StatusBooked,
		CreatedAt:    time.Now().UTC(),
	})
}

func (s *Service) Get(ctx context.Context, publicID uuid.UUID) (Reservation, error) {
	return s.repo.GetByPublicID(ctx, publicID)
}

func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	return s.repo.List(ctx, opts)
}

// Cancel marks a reservation cancelled; cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, publicID uuid.UUID) (Reservation, error) {
	return s.repo.SetStatus(ctx, publicID, StatusCancelled)
}

// Complete marks a reservation completed.
func (s *Service) Complete(ctx context.Context, publicID uuid.UUID) (Reservation, error) {
	return s.repo.SetStatus(ctx, publicID, StatusCompleted)
}
