// Package seed restores the demo car inventory.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"carlot/internal/middleware"
	"carlot/internal/models"
	"carlot/internal/repository"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/cars.yml
var carsFixture []byte

// Options configuration for the seeder
type Options struct {
	// All also removes cars that belong to users.
	All bool
}

type fixtureFile struct {
	Cars []fixtureCar `yaml:"cars"`
}

type fixtureCar struct {
	Name        string `yaml:"name"`
	Color       string `yaml:"color"`
	ReadyToRide bool   `yaml:"ready_to_ride"`
}

// Fixture returns fresh, unsaved copies of the demo cars.
func Fixture() ([]*models.Car, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(carsFixture, &f); err != nil {
		return nil, fmt.Errorf("parse car fixture: %w", err)
	}
	cars := make([]*models.Car, 0, len(f.Cars))
	for _, c := range f.Cars {
		cars = append(cars, &models.Car{
			Name:        c.Name,
			Color:       c.Color,
			ReadyToRide: c.ReadyToRide,
			Comments:    models.CommentList{},
		})
	}
	return cars, nil
}

// Reset deletes the unowned cars (every car with opts.All) and inserts the
// fixture as one atomic step.
func Reset(ctx context.Context, repo repository.CarRepository, opts Options) ([]*models.Car, error) {
	cars, err := Fixture()
	if err != nil {
		return nil, err
	}

	removed, err := repo.ReplaceFixture(ctx, cars, opts.All)
	if err != nil {
		return nil, fmt.Errorf("seed cars: %w", err)
	}

	middleware.Logger.InfoContext(ctx, "car inventory seeded",
		slog.Int64("removed", removed),
		slog.Int("created", len(cars)),
		slog.Bool("all", opts.All),
	)
	return cars, nil
}
