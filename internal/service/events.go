// Package service holds the business rules for cars, comments and users.
package service

import (
	"context"
	"log/slog"
	"time"

	"carlot/internal/middleware"
	"carlot/internal/models"
	"carlot/internal/observability"
	"carlot/internal/repository"
)

// EventPublisher fans out car events to live subscribers.
type EventPublisher interface {
	PublishCarEvent(ctx context.Context, event models.CarEvent) error
}

// maxSaveAttempts bounds the load-mutate-save loop under version conflicts.
const maxSaveAttempts = 3

// mutateCar loads the car, applies mutate and saves it, retrying on version
// conflicts. Errors from mutate abort without writing.
func mutateCar(
	ctx context.Context,
	repo repository.CarRepository,
	op, carID string,
	mutate func(car *models.Car) error,
) (car *models.Car, err error) {
	ctx, span := observability.StartSpan(ctx, "CarRepository", op)
	defer func() { observability.EndSpan(span, err) }()

	for attempt := 1; ; attempt++ {
		car, err = repo.GetByID(ctx, carID)
		if err != nil {
			return nil, err
		}
		if err = mutate(car); err != nil {
			return nil, err
		}

		err = repo.Save(ctx, car)
		if err == nil {
			observability.CarMutations.WithLabelValues(op).Inc()
			return car, nil
		}
		if !models.HasCode(err, models.CodeConflict) || attempt >= maxSaveAttempts {
			return nil, err
		}
		observability.ConcurrencyConflicts.WithLabelValues(op).Inc()
		middleware.Logger.DebugContext(ctx, "retrying car save after version conflict",
			slog.String("car_id", carID), slog.Int("attempt", attempt))
	}
}

func publish(ctx context.Context, p EventPublisher, event models.CarEvent) {
	if p == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if err := p.PublishCarEvent(ctx, event); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish car event",
			slog.String("type", event.Type), slog.String("error", err.Error()))
	}
}
