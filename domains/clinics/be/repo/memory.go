package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clinica-io/clinica-backend/domains/clinics/be/service"
)

// MemoryRepository is an in-memory clinic registry used by tests and local
// development.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	data   map[int64]service.Clinic
}

// NewMemoryRepository constructs an empty in-memory registry.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1, data: make(map[int64]service.Clinic)}
}

func (r *MemoryRepository) Create(_ context.Context, c service.Clinic) (service.Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.data {
		if existing.Slug == c.Slug {
			return service.Clinic{}, service.ErrConflictSlug
		}
	}
	c.ID = r.nextID
	r.nextID++
	r.data[c.ID] = c
	return c, nil
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (service.Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.data[id]
	if !ok {
		return service.Clinic{}, service.ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepository) FindBySlug(_ context.Context, slug string) (service.Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.data {
		if c.Slug == slug {
			return c, nil
		}
	}
	return service.Clinic{}, service.ErrNotFound
}

func (r *MemoryRepository) List(_ context.Context, opts service.ListOptions) (service.ListResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []service.Clinic
	for _, c := range r.data {
		if opts.ActiveOnly && !c.IsActive {
			continue
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}

	totalPages := (len(all) + size - 1) / size
	return service.ListResult{
		Clinics:    all[start:end],
		Page:       page,
		PageSize:   size,
		TotalItems: len(all),
		TotalPages: totalPages,
	}, nil
}

func (r *MemoryRepository) SetActive(_ context.Context, id int64, active bool) (service.Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.data[id]
	if !ok {
		return service.Clinic{}, service.ErrNotFound
	}
	c.IsActive = active
	c.UpdatedAt = time.Now().UTC()
	r.data[id] = c
	return c, nil
}

func (r *MemoryRepository) ListDatabaseNames(_ context.Context, activeOnly bool) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, c := range r.data {
		if activeOnly && !c.IsActive {
			continue
		}
		names = append(names, c.DatabaseName)
	}
	sort.Strings(names)
	return names, nil
}
