package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("doctor not found")

// Doctor is a practitioner inside one clinic's database.
type Doctor struct {
	ID        int64
	FullName  string
	Specialty string
	BranchID  *int64
	IsActive  bool
	CreatedAt time.Time
}

// CreateInput represents the request to register a doctor.
type CreateInput struct {
	FullName  string
	Specialty string
	BranchID  *int64
}

// UpdateInput carries the mutable doctor fields; nil leaves a field
// unchanged.
type UpdateInput struct {
	FullName  *string
	Specialty *string
	BranchID  *int64
	IsActive  *bool
}

// ListOptions captures pagination.
type ListOptions struct {
	Page     int
	PageSize int
}

// ListResult wraps paginated doctors.
type ListResult struct {
	Doctors    []Doctor
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Repository abstracts tenant persistence for doctors.
type Repository interface {
	Create(ctx context.Context, d Doctor) (Doctor, error)
	Get(ctx context.Context, id int64) (Doctor, error)
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Update(ctx context.Context, id int64, input UpdateInput) (Doctor, error)
}

// Service provides doctor operations for the selected clinic.
type Service struct {
	repo Repository
}

// New constructs a Service.
func New(repo Repository) *Service {
	if repo == nil {
		panic("doctors repo is required")
	}
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, input CreateInput) (Doctor, error) {
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return Doctor{}, fmt.Errorf("full name is required")
	}

	return s.repo.Create(ctx, Doctor{
		FullName:  fullName,
		Specialty: strings.TrimSpace(input.Specialty),
		BranchID:  input.BranchID,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Service) Get(ctx context.Context, id int64) (Doctor, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	return s.repo.List(ctx, opts)
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Doctor, error) {
	if input.FullName != nil && strings.TrimSpace(*input.FullName) == "" {
		return Doctor{}, fmt.Errorf("full name cannot be empty")
	}
	return s.repo.Update(ctx, id, input)
}
