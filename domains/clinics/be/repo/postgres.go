package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica-io/clinica-backend/domains/clinics/be/service"
)

const uniqueViolation = "23505"

// PostgresRepository implements the clinic registry over the control-plane
// pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs a repository backed by the control-plane
// database.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("control-plane pool is required")
	}
	return &PostgresRepository{pool: pool}
}

const clinicColumns = `id, name, slug, database_name, is_active, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, c service.Clinic) (service.Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO clinics (name, slug, database_name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+clinicColumns,
		c.Name, c.Slug, c.DatabaseName, c.IsActive, c.CreatedAt, c.UpdatedAt)

	created, err := scanClinic(row)
	if err != nil {
		return service.Clinic{}, mapConflict(err)
	}
	return created, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (service.Clinic, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clinicColumns+` FROM clinics WHERE id = $1`, id)
	c, err := scanClinic(row)
	if err != nil {
		return service.Clinic{}, mapNotFound(err)
	}
	return c, nil
}

func (r *PostgresRepository) FindBySlug(ctx context.Context, slug string) (service.Clinic, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clinicColumns+` FROM clinics WHERE slug = $1`, slug)
	c, err := scanClinic(row)
	if err != nil {
		return service.Clinic{}, mapNotFound(err)
	}
	return c, nil
}

func (r *PostgresRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	var total int
	countQuery := `SELECT count(*) FROM clinics`
	if opts.ActiveOnly {
		countQuery += ` WHERE is_active`
	}
	if err := r.pool.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return service.ListResult{}, fmt.Errorf("count clinics: %w", err)
	}

	query := `SELECT ` + clinicColumns + ` FROM clinics`
	if opts.ActiveOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, size, offset)
	if err != nil {
		return service.ListResult{}, fmt.Errorf("list clinics: %w", err)
	}
	defer rows.Close()

	var clinics []service.Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return service.ListResult{}, err
		}
		clinics = append(clinics, c)
	}
	if err := rows.Err(); err != nil {
		return service.ListResult{}, fmt.Errorf("iterate clinics: %w", err)
	}

	totalPages := (total + size - 1) / size
	return service.ListResult{
		Clinics:    clinics,
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, id int64, active bool) (service.Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE clinics SET is_active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+clinicColumns, id, active)
	c, err := scanClinic(row)
	if err != nil {
		return service.Clinic{}, mapNotFound(err)
	}
	return c, nil
}

func (r *PostgresRepository) ListDatabaseNames(ctx context.Context, activeOnly bool) ([]string, error) {
	query := `SELECT database_name FROM clinics`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY database_name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list database names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan database name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func scanClinic(row pgx.Row) (service.Clinic, error) {
	var c service.Clinic
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.DatabaseName, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return service.ErrNotFound
	}
	return err
}

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return service.ErrConflictSlug
	}
	return err
}
