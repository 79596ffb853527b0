package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clinica-io/clinica-backend/platform/go/requesttrace"
	"github.com/clinica-io/clinica-backend/platform/go/tenant"
)

// Errors returned by the service layer.
var (
	ErrNotFound     = errors.New("clinic not found")
	ErrConflictSlug = errors.New("clinic slug already exists")
	ErrInactive     = errors.New("clinic is deactivated")
)

// Clinic is the control-plane registry record for one tenant. DatabaseName is
// assigned at onboarding and immutable afterwards.
type Clinic struct {
	ID           int64
	Name         string
	Slug         string
	DatabaseName string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RouteInfo is the routing projection the access guard consumes.
type RouteInfo struct {
	DatabaseName string
	IsActive     bool
}

// CreateInput represents the request to onboard a clinic.
type CreateInput struct {
	Name string
	Slug string
}

// ListOptions captures pagination and the active filter.
type ListOptions struct {
	Page       int
	PageSize   int
	ActiveOnly bool
}

// ListResult wraps paginated clinics.
type ListResult struct {
	Clinics    []Clinic
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Repository abstracts control-plane persistence.
type Repository interface {
	Create(ctx context.Context, c Clinic) (Clinic, error)
	Get(ctx context.Context, id int64) (Clinic, error)
	FindBySlug(ctx context.Context, slug string) (Clinic, error)
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	SetActive(ctx context.Context, id int64, active bool) (Clinic, error)
	ListDatabaseNames(ctx context.Context, activeOnly bool) ([]string, error)
}

// DBProvisioner creates the physical clinic database and brings its schema
// up to date.
type DBProvisioner interface {
	CreateDatabase(ctx context.Context, databaseName string) error
	Migrate(ctx context.Context, databaseName string) (int, error)
}

// Service provides clinic registry operations.
type Service struct {
	repo   Repository
	prov   DBProvisioner
	logger *zap.Logger
}

// New constructs a Service. The provisioner may be nil for read-only
// deployments; Create then only registers the record.
func New(repo Repository, prov DBProvisioner, logger *zap.Logger) *Service {
	if repo == nil {
		panic("clinics repo is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Service{repo: repo, prov: prov, logger: logger}
}

// Lookup resolves a clinic id to its routing projection. Used on every
// tenant-scoped request, so it stays a thin read.
func (s *Service) Lookup(ctx context.Context, id int64) (RouteInfo, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return RouteInfo{}, err
	}
	if c.DatabaseName == "" {
		// A record without a database identifier cannot be routed.
		return RouteInfo{}, ErrNotFound
	}
	return RouteInfo{DatabaseName: c.DatabaseName, IsActive: c.IsActive}, nil
}

// Create onboards a clinic: derives and sanitizes its database name from the
// slug, registers the record, then provisions the physical database and runs
// the migration catalog. A provisioning failure leaves the record in place
// for a provisioning retry; the guard will refuse to route until the
// database exists.
func (s *Service) Create(ctx context.Context, input CreateInput) (Clinic, error) {
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if slug == "" {
		return Clinic{}, fmt.Errorf("slug is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Clinic{}, fmt.Errorf("name is required")
	}

	databaseName, err := tenant.SanitizeDatabaseName("clinic_" + slug)
	if err != nil {
		return Clinic{}, fmt.Errorf("derive database name: %w", err)
	}

	now := time.Now().UTC()
	created, err := s.repo.Create(ctx, Clinic{
		Name:         name,
		Slug:         slug,
		DatabaseName: databaseName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Clinic{}, err
	}

	if s.prov != nil {
		if err := s.Provision(ctx, created); err != nil {
			return created, err
		}
	}

	return created, nil
}

// Provision creates the clinic database if missing and applies pending
// migrations. Idempotent; re-runnable after partial failures.
func (s *Service) Provision(ctx context.Context, c Clinic) error {
	if s.prov == nil {
		return fmt.Errorf("provisioner not configured")
	}

	if err := s.prov.CreateDatabase(ctx, c.DatabaseName); err != nil {
		return fmt.Errorf("create database %s: %w", c.DatabaseName, err)
	}

	applied, err := s.prov.Migrate(ctx, c.DatabaseName)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", c.DatabaseName, err)
	}

	trace := requesttrace.FromContextOrAnonymous(ctx)
	s.logger.Info("clinic provisioned",
		zap.String("slug", c.Slug),
		zap.String("database", c.DatabaseName),
		zap.Int("migrations_applied", applied),
		zap.String("actor", string(trace.ActorKind)),
		zap.String("request_id", trace.RequestID))
	return nil
}

// ResolveClinicRoute implements the access guard's resolver port.
func (s *Service) ResolveClinicRoute(ctx context.Context, clinicID int64) (tenant.Route, error) {
	info, err := s.Lookup(ctx, clinicID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return tenant.Route{}, tenant.ErrRouteNotFound
		}
		return tenant.Route{}, err
	}
	return tenant.Route{DatabaseName: info.DatabaseName, Active: info.IsActive}, nil
}

// Get returns one clinic by id.
func (s *Service) Get(ctx context.Context, id int64) (Clinic, error) {
	return s.repo.Get(ctx, id)
}

// List returns clinics with pagination.
func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	return s.repo.List(ctx, opts)
}

// Deactivate turns routing off for a clinic. Its database and data stay
// untouched.
func (s *Service) Deactivate(ctx context.Context, id int64) (Clinic, error) {
	return s.repo.SetActive(ctx, id, false)
}

// Activate re-enables routing for a clinic.
func (s *Service) Activate(ctx context.Context, id int64) (Clinic, error) {
	return s.repo.SetActive(ctx, id, true)
}

// DatabaseNames lists the database identifiers of all (optionally only
// active) clinics, for administrative sweeps.
func (s *Service) DatabaseNames(ctx context.Context, activeOnly bool) ([]string, error) {
	return s.repo.ListDatabaseNames(ctx, activeOnly)
}
