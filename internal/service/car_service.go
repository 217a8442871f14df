package service

import (
	"context"

	"carlot/internal/models"
	"carlot/internal/observability"
	"carlot/internal/repository"
)

// UsernameLookup resolves user ids to display names.
type UsernameLookup func(ctx context.Context, ids []uint) (map[uint]string, error)

type CarService struct {
	carRepo   repository.CarRepository
	usernames UsernameLookup
	events    EventPublisher
}

type ListCarsInput struct {
	// OwnerID restricts the list to one owner's cars when set.
	OwnerID *uint
	// ViewerID marks cars and comments the viewer may change. Zero is anonymous.
	ViewerID uint
}

type CreateCarInput struct {
	OwnerID uint
	Car     models.CarInput
}

type UpdateCarInput struct {
	UserID uint
	CarID  string
	Patch  models.CarPatch
}

type ReplaceCarInput struct {
	UserID uint
	CarID  string
	Car    models.CarInput
}

type DeleteCarInput struct {
	UserID uint
	CarID  string
}

// CommentView is a comment with its author expanded for display.
type CommentView struct {
	models.Comment
	AuthorName string
	Mine       bool
}

// CarView is a car with owner and comment authors expanded for display.
type CarView struct {
	*models.Car
	OwnerName    string
	Mine         bool
	CommentViews []CommentView
}

func NewCarService(
	carRepo repository.CarRepository,
	usernames UsernameLookup,
	events EventPublisher,
) *CarService {
	return &CarService{
		carRepo:   carRepo,
		usernames: usernames,
		events:    events,
	}
}

func (s *CarService) ListCars(ctx context.Context, in ListCarsInput) ([]*models.Car, error) {
	ctx, span := observability.StartSpan(ctx, "CarService", "ListCars")
	cars, err := s.carRepo.List(ctx, in.OwnerID)
	observability.EndSpan(span, err)
	return cars, err
}

// ListCarViews lists cars with usernames resolved for rendering.
func (s *CarService) ListCarViews(ctx context.Context, in ListCarsInput) ([]CarView, error) {
	cars, err := s.ListCars(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, cars, in.ViewerID)
}

func (s *CarService) CreateCar(ctx context.Context, in CreateCarInput) (*models.Car, error) {
	if in.OwnerID == 0 {
		return nil, models.NewUnauthorizedError("You must be logged in to add a car")
	}
	if err := in.Car.Validate(); err != nil {
		return nil, err
	}

	owner := in.OwnerID
	car := &models.Car{
		Name:        in.Car.Name,
		Color:       in.Car.Color,
		ReadyToRide: in.Car.ReadyToRide,
		OwnerID:     &owner,
	}
	if err := s.carRepo.Create(ctx, car); err != nil {
		return nil, err
	}

	observability.CarMutations.WithLabelValues("CreateCar").Inc()
	publish(ctx, s.events, models.CarEvent{Type: models.EventCarCreated, CarID: car.ID, UserID: owner})
	return car, nil
}

func (s *CarService) GetCar(ctx context.Context, id string) (*models.Car, error) {
	if id == "" {
		return nil, models.NewNotFoundError("Car", id)
	}
	return s.carRepo.GetByID(ctx, id)
}

// GetCarView returns one car with usernames resolved for rendering.
func (s *CarService) GetCarView(ctx context.Context, id string, viewerID uint) (*CarView, error) {
	car, err := s.GetCar(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []*models.Car{car}, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// GetOwnedCar returns the car only if userID owns it. Used to pre-fill edit forms.
func (s *CarService) GetOwnedCar(ctx context.Context, userID uint, id string) (*models.Car, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("You must be logged in")
	}
	car, err := s.GetCar(ctx, id)
	if err != nil {
		return nil, err
	}
	if !car.OwnedBy(userID) {
		return nil, models.NewForbiddenError("You can only modify your own cars")
	}
	return car, nil
}

func (s *CarService) UpdateCar(ctx context.Context, in UpdateCarInput) (*models.Car, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("You must be logged in")
	}
	if err := in.Patch.Validate(); err != nil {
		return nil, err
	}

	car, err := mutateCar(ctx, s.carRepo, "UpdateCar", in.CarID, func(car *models.Car) error {
		if !car.OwnedBy(in.UserID) {
			return models.NewForbiddenError("You can only modify your own cars")
		}
		in.Patch.Apply(car)
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.events, models.CarEvent{Type: models.EventCarUpdated, CarID: car.ID, UserID: in.UserID})
	return car, nil
}

func (s *CarService) ReplaceCar(ctx context.Context, in ReplaceCarInput) (*models.Car, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("You must be logged in")
	}
	if err := in.Car.Validate(); err != nil {
		return nil, err
	}

	car, err := mutateCar(ctx, s.carRepo, "ReplaceCar", in.CarID, func(car *models.Car) error {
		if !car.OwnedBy(in.UserID) {
			return models.NewForbiddenError("You can only modify your own cars")
		}
		car.Name = in.Car.Name
		car.Color = in.Car.Color
		car.ReadyToRide = in.Car.ReadyToRide
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.events, models.CarEvent{Type: models.EventCarUpdated, CarID: car.ID, UserID: in.UserID})
	return car, nil
}

func (s *CarService) DeleteCar(ctx context.Context, in DeleteCarInput) error {
	if in.UserID == 0 {
		return models.NewUnauthorizedError("You must be logged in")
	}

	car, err := s.GetCar(ctx, in.CarID)
	if err != nil {
		return err
	}
	if !car.OwnedBy(in.UserID) {
		return models.NewForbiddenError("You can only delete your own cars")
	}

	if err := s.carRepo.Delete(ctx, car.ID); err != nil {
		return err
	}

	observability.CarMutations.WithLabelValues("DeleteCar").Inc()
	publish(ctx, s.events, models.CarEvent{Type: models.EventCarDeleted, CarID: car.ID, UserID: in.UserID})
	return nil
}

// NotifySeeded announces a fixture reset to feed subscribers.
func (s *CarService) NotifySeeded(ctx context.Context) {
	publish(ctx, s.events, models.CarEvent{Type: models.EventCarsSeeded})
}

func (s *CarService) views(ctx context.Context, cars []*models.Car, viewerID uint) ([]CarView, error) {
	names, err := s.lookupNames(ctx, cars)
	if err != nil {
		return nil, err
	}

	views := make([]CarView, 0, len(cars))
	for _, car := range cars {
		v := CarView{
			Car:          car,
			Mine:         car.OwnedBy(viewerID),
			CommentViews: make([]CommentView, 0, car.Comments.Len()),
		}
		if car.OwnerID != nil {
			v.OwnerName = names[*car.OwnerID]
		}
		for _, c := range car.Comments {
			v.CommentViews = append(v.CommentViews, CommentView{
				Comment:    c,
				AuthorName: names[c.AuthorID],
				Mine:       viewerID != 0 && c.AuthorID == viewerID,
			})
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *CarService) lookupNames(ctx context.Context, cars []*models.Car) (map[uint]string, error) {
	if s.usernames == nil {
		return map[uint]string{}, nil
	}

	seen := map[uint]struct{}{}
	var ids []uint
	add := func(id uint) {
		if _, ok := seen[id]; ok || id == 0 {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, car := range cars {
		if car.OwnerID != nil {
			add(*car.OwnerID)
		}
		for _, c := range car.Comments {
			add(c.AuthorID)
		}
	}
	if len(ids) == 0 {
		return map[uint]string{}, nil
	}
	return s.usernames(ctx, ids)
}
