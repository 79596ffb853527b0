package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	reservations map[uuid.UUID]Reservation
	nextID       int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{reservations: make(map[uuid.UUID]Reservation), nextID: 1}
}

func (r *stubRepo) Create(_ context.Context, res Reservation) (Reservation, error) {
	res.ID = r.nextID
	r.nextID++
	r.reservations[res.PublicID] = res
	return res, nil
}

func (r *stubRepo) GetByPublicID(_ context.Context, publicID uuid.UUID) (Reservation, error) {
	res, ok := r.reservations[publicID]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return res, nil
}

func (r *stubRepo) List(_ context.Context, opts ListOptions) (ListResult, error) {
	var all []Reservation
	for _, res := range r.reservations {
		if opts.DoctorID != nil && res.DoctorID != *opts.DoctorID {
			continue
		}
		all = append(all, res)
	}
	return ListResult{Reservations: all, Page: 1, PageSize: len(all), TotalItems: len(all), TotalPages: 1}, nil
}

func (r *stubRepo) SetStatus(_ context.Context, publicID uuid.UUID, status string) (Reservation, error) {
	res, ok := r.reservations[publicID]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	res.Status = status
	r.reservations[publicID] = res
	return res, nil
}

func (r *stubRepo) CountDoctorSlot(_ context.Context, doctorID int64, at time.Time) (int, error) {
	count := 0
	for _, res := range r.reservations {
		if res.DoctorID == doctorID && res.ScheduledAt.Equal(at.UTC()) && res.Status == StatusBooked {
			count++
		}
	}
	return count, nil
}

func validInput(at time.Time) CreateInput {
	return CreateInput{
		PatientName: "Omar Ali",
		BranchID:    1,
		DoctorID:    7,
		ScheduledAt: at,
	}
}

func TestCreateBooksSlot(t *testing.T) {
	t.Parallel()

	svc := New(newStubRepo())
	at := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	res, err := svc.Create(context.Background(), validInput(at))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.PublicID)
	require.Equal(t, StatusBooked, res.Status)
	require.True(t, res.ScheduledAt.Equal(at))
}

func TestCreateRejectsDoubleBooking(t *testing.T) {
	t.Parallel()

	svc := New(newStubRepo())
	at := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput(at))
	require.NoError(t, err)

	input := validInput(at)
	input.PatientName = "Layla Said"
	_, err = svc.Create(ctx, input)
	require.ErrorIs(t, err, ErrSlotConflict)

	// A cancelled booking frees the slot.
	list, err := svc.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, list.Reservations, 1)

	_, err = svc.Cancel(ctx, list.Reservations[0].PublicID)
	require.NoError(t, err)

	_, err = svc.Create(ctx, input)
	require.NoError(t, err)
}

func TestCreateValidatesInput(t *testing.T) {
	t.Parallel()

	svc := New(newStubRepo())
	at := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	ctx := context.Background()

	input := validInput(at)
	input.PatientName = "  "
	_, err := svc.Create(ctx, input)
	require.Error(t, err)

	input = validInput(at)
	input.DoctorID = 0
	_, err = svc.Create(ctx, input)
	require.Error(t, err)

	input = validInput(at)
	input.ScheduledAt = time.Time{}
	_, err = svc.Create(ctx, input)
	require.Error(t, err)
}

func TestCancelAndComplete(t *testing.T) {
	t.Parallel()

	svc := New(newStubRepo())
	at := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	ctx := context.Background()

	res, err := svc.Create(ctx, validInput(at))
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, res.PublicID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	// Cancelling again is a no-op.
	again, err := svc.Cancel(ctx, res.PublicID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, again.Status)

	_, err = svc.Cancel(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}
