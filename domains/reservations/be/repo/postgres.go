package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinica-io/clinica-backend/domains/reservations/be/service"
	"github.com/clinica-io/clinica-backend/platform/go/persistence"
)

// PostgresRepository runs reservation queries against the clinic selected on
// the request context.
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

const reservationColumns = `id, public_id, patient_name, patient_phone, branch_id, doctor_id, service_id, scheduled_at, status, created_at`

func (r *PostgresRepository) Create(ctx context.Context, res service.Reservation) (service.Reservation, error) {
	pool, err := r.resolver.Tenant(ctx)
	if err != nil {
		return service.Reservation{}, err
	}

	row := pool.QueryRow(ctx, `
		INSERT INTO reservations
			(public_id, patient_name, patient_phone, branch_id, doctor_id, service_id, scheduled_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+reservationColumns,
		res.PublicID, res.PatientName, nullableText(res.PatientPhone), res.BranchID,
		res.DoctorID, res.ServiceID, res.ScheduledAt, res.Status, res.CreatedAt)

	return scanReservation(row)
}

func (r *PostgresRepository) GetByPublicID(ctx context.Context, publicID uuid.UUID) (service.Reservation, error) {
	pool, err := r.resolver.Tenant(ctx)
	if err != nil {
		return service.Reservation{}, err
	}

	row := pool.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE public_id = $1`, publicID)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return service.Reservation{}, service.ErrNotFound
	}
	return res, err
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

	where := ` WHERE true`
	args := []any{}
	if opts.DoctorID != nil {
		args = append(args, *opts.DoctorID)
		where += fmt.Sprintf(" AND doctor_id = $%d", len(args))
	}
	if opts.Day != nil {
		day := opts.Day.UTC().Truncate(24 * time.Hour)
		args = append(args, day, day.Add(24*time.Hour))
		where += fmt.Sprintf(" AND scheduled_at >= $%d AND scheduled_at < $%d", len(args)-1, len(args))
	}

	var total int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM reservations`+where, args...).Scan(&total); err != nil {
		return service.ListResult{}, fmt.Errorf("count reservations: %w", err)
	}

	args = append(args, size, (page-1)*size)
	query := `SELECT ` + reservationColumns + ` FROM reservations` + where +
		fmt.Sprintf(` ORDER BY scheduled_at LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return service.ListResult{}, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []service.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return service.ListResult{}, err
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return service.ListResult{}, fmt.Errorf("iterate reservations: %w", err)
	}

	return service.ListResult{
		Reservations: reservations,
		Page:         page,
		PageSize:     size,
		TotalItems:   total,
		TotalPages:   (total + size - 1) / size,
	}, nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, publicID uuid.UUID, status string) (service.Reservation, error) {
	pool, err := r.resolver.Tenant(ctx)
	if err != nil {
		return service.Reservation{}, err
	}

	row := pool.QueryRow(ctx, `
		UPDATE reservations SET status = $2
		WHERE public_id = $1
		RETURNING `+reservationColumns, publicID, status)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return service.Reservation{}, service.ErrNotFound
	}
	return res, err
}

func (r *PostgresRepository) CountDoctorSlot(ctx context.Context, doctorID int64, at time.Time) (int, error) {
	pool, err := r.resolver.Tenant(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	err = pool.QueryRow(ctx, `
		SELECT count(*) FROM reservations
		WHERE doctor_id = $1 AND scheduled_at = $2 AND status = $3`,
		doctorID, at.UTC(), service.StatusBooked).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count doctor slot: %w", err)
	}
	return count, nil
}

func scanReservation(row pgx.Row) (service.Reservation, error) {
	var (
		res   service.Reservation
		phone *string
	)
	if err := row.Scan(&res.ID, &res.PublicID, &res.PatientName, &phone, &res.BranchID,
		&res.DoctorID, &res.ServiceID, &res.ScheduledAt, &res.Status, &res.CreatedAt); err != nil {
		return service.Reservation{}, err
	}
	if phone != nil {
		res.PatientPhone = *phone
	}
	return res, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
