package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	doctors map[int64]Doctor
	nextID  int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{doctors: make(map[int64]Doctor), nextID: 1}
}

func (r *stubRepo) Create(_ context.Context, d Doctor) (Doctor, error) {
	d.ID = r.nextID
	r.nextID++
	r.doctors[d.ID] = d
	return d, nil
}

func (r *stubRepo) Get(_ context.Context, id int64) (Doctor, error) {
	d, ok := r.doctors[id]
	if !ok {
		return Doctor{}, ErrNotFound
	}
	return d, nil
}

func (r *stubRepo) List(_ context.Context, opts ListOptions) (ListResult, error) {
	var all []Doctor
	for _, d := range r.doctors {
		all = append(all, d)
	}
	return ListResult{Doctors: all, Page: 1, PageSize: len(all), TotalItems: len(all), TotalPages: 1}, nil
}

func (r *stubRepo) Update(_ context.Context, id int64, input UpdateInput) (Doctor, error) {
	d, ok := r.doctors[id]
	if !ok {
		return Doctor{}, ErrNotFound
	}
	if input.FullName != nil {
		d.FullName = *input.FullName
	}
	if input.Specialty != nil {
		d.Specialty = *input.Specialty
	}
	if input.BranchID != nil {
		d.BranchID = input.BranchID
	}
	if input.IsActive != nil {
		d.IsActive = *input.IsActive
	}
	r.doctors[id] = d
	return d, nil
}

func TestCreateTrimsAndActivates(t *testing.T) {
	t.Parallel()

	svc := New(newStubRepo())

	created, err := svc.Create(context.Background(), CreateInput{
		FullName:  "  Dr. Amira Hassan ",
		Specialty: " cardiology ",
	})
	require.NoError(t, err)
	require.Equal(t, "Dr. Amira Hassan", created.FullName)
	require.Equal(t, "cardiology", created.Specialty)
	require.True(t, created.IsActive)
}

func TestCreateRequiresFullName(t *testing.T) {
	t.Parallel()

	svc := New(newStubRepo())

	_, err := svc.Create(context.Background(), CreateInput{FullName: "   "})
	require.Error(t, err)
}

func TestUpdateRejectsEmptyFullName(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc := New(repo)

	created, err := svc.Create(context.Background(), CreateInput{FullName: "Dr. A"})
	require.NoError(t, err)

	empty := " "
	_, err = svc.Update(context.Background(), created.ID, UpdateInput{FullName: &empty})
	require.Error(t, err)

	name := "Dr. B"
	updated, err := svc.Update(context.Background(), created.ID, UpdateInput{FullName: &name})
	require.NoError(t, err)
	require.Equal(t, "Dr. B", updated.FullName)
}

func TestGetUnknownDoctor(t *testing.T) {
	t.Parallel()

	svc := New(newStubRepo())

	_, err := svc.Get(context.Background(), 99)
	require.ErrorIs(t, err, ErrNotFound)
}
