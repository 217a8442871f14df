package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"carlot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func uintPtr(v uint) *uint { return &v }

// memCarRepo is an in-memory repository.CarRepository with version checks.
// conflicts makes the next N saves fail as if another writer got there first.
type memCarRepo struct {
	mu        sync.Mutex
	cars      map[string]models.Car
	seq       int
	conflicts int
	saves     int
}

func newMemCarRepo(cars ...*models.Car) *memCarRepo {
	r := &memCarRepo{cars: map[string]models.Car{}}
	for _, c := range cars {
		_ = r.Create(context.Background(), c)
	}
	return r
}

func cloneCar(c models.Car) models.Car {
	c.Comments = append(models.CommentList{}, c.Comments...)
	if c.OwnerID != nil {
		owner := *c.OwnerID
		c.OwnerID = &owner
	}
	return c
}

func (r *memCarRepo) Create(_ context.Context, car *models.Car) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if car.ID == "" {
		r.seq++
		car.ID = fmt.Sprintf("car-%d", r.seq)
	}
	if car.Version == 0 {
		car.Version = 1
	}
	if car.Comments == nil {
		car.Comments = models.CommentList{}
	}
	r.cars[car.ID] = cloneCar(*car)
	return nil
}

func (r *memCarRepo) CreateMany(ctx context.Context, cars []*models.Car) error {
	for _, c := range cars {
		if err := r.Create(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *memCarRepo) GetByID(_ context.Context, id string) (*models.Car, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cars[id]
	if !ok {
		return nil, models.NewNotFoundError("Car", id)
	}
	out := cloneCar(c)
	return &out, nil
}

func (r *memCarRepo) List(_ context.Context, ownerID *uint) ([]*models.Car, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Car{}
	for _, c := range r.cars {
		if ownerID != nil && (c.OwnerID == nil || *c.OwnerID != *ownerID) {
			continue
		}
		cc := cloneCar(c)
		out = append(out, &cc)
	}
	return out, nil
}

func (r *memCarRepo) Save(_ context.Context, car *models.Car) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	stored, ok := r.cars[car.ID]
	if !ok {
		return models.NewNotFoundError("Car", car.ID)
	}
	if r.conflicts > 0 {
		r.conflicts--
		stored.Version++
		r.cars[car.ID] = stored
		return models.NewConflictError("Car was modified concurrently, please retry")
	}
	if stored.Version != car.Version {
		return models.NewConflictError("Car was modified concurrently, please retry")
	}
	car.Version++
	r.cars[car.ID] = cloneCar(*car)
	return nil
}

func (r *memCarRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cars[id]; !ok {
		return models.NewNotFoundError("Car", id)
	}
	delete(r.cars, id)
	return nil
}

func (r *memCarRepo) ReplaceFixture(_ context.Context, cars []*models.Car, all bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.cars {
		if all || c.OwnerID == nil {
			delete(r.cars, id)
			n++
		}
	}
	for _, c := range cars {
		r.seq++
		c.ID = fmt.Sprintf("car-%d", r.seq)
		c.Version = 1
		r.cars[c.ID] = cloneCar(*c)
	}
	return n, nil
}

func (r *memCarRepo) stored(t *testing.T, id string) models.Car {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cars[id]
	require.True(t, ok, "car %s should exist", id)
	return cloneCar(c)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.CarEvent
}

func (p *recordingPublisher) PublishCarEvent(_ context.Context, e models.CarEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
