package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/clinica-io/clinica-backend/domains/doctors/be/service"
	"github.com/clinica-io/clinica-backend/platform/go/persistence"
)

// PostgresRepository runs doctor queries against the clinic selected on the
// request context. Every call resolves the tenant pool anew; the resolver is
// a thin lookup over the registry cache.
type PostgresRepository struct {
	resolver *persistence.Resolver
}

// NewPostgresRepository constructs a repository over the shared resolver.
func NewPostgresRepository(resolver *persistence.Resolver) *PostgresRepository {
	if resolver == nil {
		panic("resolver is required")
	}
	return &PostgresRepository{resolver: resolver}
}

const doctorColumns = `id, full_name, specialty, branch_id, is_active, created_at`

func (r *PostgresRepository) Create(ctx context.Context, d service.Doctor) (service.Doctor, error) {
	pool, err := r.resolver.Tenant(ctx)
	if err != nil {
		return service.Doctor{}, err
	}

	row := pool.QueryRow(ctx, `
		INSERT INTO doctors (full_name, specialty, branch_id, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+doctorColumns,
		d.FullName, nullableText(d.Specialty), d.BranchID, d.IsActive, d.CreatedAt)

	return scanDoctor(row)
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (service.Doctor, error) {
	pool, err := r.resolver.Tenant(ctx)
	if err != nil {
		return service.Doctor{}, err
	}

	row := pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
	d, err := scanDoctor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return service.Doctor{}, service.ErrNotFound
	}
	return d, err
}

func (r *PostgresRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	pool, err := r.resolver.Tenant(ctx)
	if err != nil {
		return service.ListResult{}, err
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size <= 0 {
		size = 20
	}

	var total int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM doctors`).Scan(&total); err != nil {
		return service.ListResult{}, fmt.Errorf("count doctors: %w", err)
	}

	rows, err := pool.Query(ctx,
		`SELECT `+doctorColumns+` FROM doctors ORDER BY id LIMIT $1 OFFSET $2`,
		size, (page-1)*size)
	if err != nil {
		return service.ListResult{}, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var doctors []service.Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return service.ListResult{}, err
		}
		doctors = append(doctors, d)
	}
	if err := rows.Err(); err != nil {
		return service.ListResult{}, fmt.Errorf("iterate doctors: %w", err)
	}

	return service.ListResult{
		Doctors:    doctors,
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: (total + size - 1) / size,
	}, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, input service.UpdateInput) (service.Doctor, error) {
	pool, err := r.resolver.Tenant(ctx)
	if err != nil {
		return service.Doctor{}, err
	}

	row := pool.QueryRow(ctx, `
		UPDATE doctors SET
			full_name = COALESCE($2, full_name),
			specialty = COALESCE($3, specialty),
			branch_id = COALESCE($4, branch_id),
			is_active = COALESCE($5, is_active)
		WHERE id = $1
		RETURNING `+doctorColumns,
		id, input.FullName, input.Specialty, input.BranchID, input.IsActive)

	d, err := scanDoctor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return service.Doctor{}, service.ErrNotFound
	}
	return d, err
}

func scanDoctor(row pgx.Row) (service.Doctor, error) {
	var (
		d         service.Doctor
		specialty *string
	)
	if err := row.Scan(&d.ID, &d.FullName, &specialty, &d.BranchID, &d.IsActive, &d.CreatedAt); err != nil {
		return service.Doctor{}, err
	}
	if specialty != nil {
		d.Specialty = *specialty
	}
	return d, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
