// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carlot/internal/cache"
	"carlot/internal/models"

	"gorm.io/gorm"
)

// CarRepository defines the interface for car document operations.
// Comments travel with their car; there is no separate comment store.
type CarRepository interface {
	Create(ctx context.Context, car *models.Car) error
	CreateMany(ctx context.Context, cars []*models.Car) error
	GetByID(ctx context.Context, id string) (*models.Car, error)
	List(ctx context.Context, ownerID *uint) ([]*models.Car, error)
	Save(ctx context.Context, car *models.Car) error
	Delete(ctx context.Context, id string) error
	// ReplaceFixture deletes the unowned cars (every car when all is set) and
	// inserts cars in one transaction. It returns how many cars were removed.
	ReplaceFixture(ctx context.Context, cars []*models.Car, all bool) (int64, error)
}

// fixtureLockKey names the postgres advisory lock that serializes reseeds.
const fixtureLockKey int64 = 0x6361726c6f74

// carRepository implements CarRepository
type carRepository struct {
	db *gorm.DB
}

// NewCarRepository creates a new car repository
func NewCarRepository(db *gorm.DB) CarRepository {
	return &carRepository{db: db}
}

func (r *carRepository) Create(ctx context.Context, car *models.Car) error {
	if err := r.db.WithContext(ctx).Create(car).Error; err != nil {
		return fmt.Errorf("create car: %w", err)
	}
	return nil
}

func (r *carRepository) CreateMany(ctx context.Context, cars []*models.Car) error {
	if len(cars) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&cars).Error
	})
	if err != nil {
		return fmt.Errorf("create cars: %w", err)
	}
	return nil
}

func (r *carRepository) GetByID(ctx context.Context, id string) (*models.Car, error) {
	var car models.Car
	err := cache.Aside(ctx, cache.CarKey(id), &car, cache.CarTTL, func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&car).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Car", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get car %s: %w", id, err)
	}
	return &car, nil
}

func (r *carRepository) List(ctx context.Context, ownerID *uint) ([]*models.Car, error) {
	cars := []*models.Car{}
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id")
	if ownerID != nil {
		q = q.Where("owner_id = ?", *ownerID)
	}
	if err := q.Find(&cars).Error; err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	return cars, nil
}

// Save writes the mutable fields and the comment list only if the stored
// version still equals car.Version. On success car.Version is advanced.
func (r *carRepository) Save(ctx context.Context, car *models.Car) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Car{}).
		Where("id = ? AND version = ?", car.ID, car.Version).
		Updates(map[string]any{
			"name":          car.Name,
			"color":         car.Color,
			"ready_to_ride": car.ReadyToRide,
			"owner_id":      car.OwnerID,
			"comments":      car.Comments,
			"version":       car.Version + 1,
			"updated_at":    now,
		})
	if res.Error != nil {
		return fmt.Errorf("save car %s: %w", car.ID, res.Error)
	}

	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Car{}).Where("id = ?", car.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("save car %s: %w", car.ID, err)
		}
		cache.InvalidateCars(ctx, car.ID)
		if count == 0 {
			return models.NewNotFoundError("Car", car.ID)
		}
		return models.NewConflictError("Car was modified concurrently, please retry")
	}

	car.Version++
	car.UpdatedAt = now
	cache.InvalidateCars(ctx, car.ID)
	return nil
}

func (r *carRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Car{})
	if res.Error != nil {
		return fmt.Errorf("delete car %s: %w", id, res.Error)
	}
	cache.InvalidateCars(ctx, id)
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Car", id)
	}
	return nil
}

func (r *carRepository) ReplaceFixture(ctx context.Context, cars []*models.Car, all bool) (int64, error) {
	cond := "owner_id IS NULL"
	if all {
		cond = "1 = 1"
	}

	var ids []string
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", fixtureLockKey).Error; err != nil {
				return fmt.Errorf("lock fixture: %w", err)
			}
		}
		if err := tx.Model(&models.Car{}).Where(cond).Pluck("id", &ids).Error; err != nil {
			return err
		}
		res := tx.Where(cond).Delete(&models.Car{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		if len(cars) == 0 {
			return nil
		}
		return tx.Create(&cars).Error
	})
	if err != nil {
		return 0, fmt.Errorf("replace fixture: %w", err)
	}
	cache.InvalidateCars(ctx, ids...)
	return removed, nil
}
