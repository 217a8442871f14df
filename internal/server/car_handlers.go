package server

import (
	"carlot/internal/middleware"
	"carlot/internal/models"
	"carlot/internal/seed"
	"carlot/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListCars returns every car, or only the session's cars with ?mine=true.
// @Summary List cars
// @Description Returns every car, or only the caller's cars with mine=true
// @Tags cars
// @Produce json
// @Param mine query bool false "Only cars owned by the session user"
// @Success 200 {object} object{cars=[]models.Car}
// @Failure 401 {object} object{error=string}
// @Router /cars [get]
func (s *Server) ListCars(c *fiber.Ctx) error {
	in := service.ListCarsInput{ViewerID: middleware.UserID(c)}
	if c.QueryBool("mine") {
		if in.ViewerID == 0 {
			return respondError(c, models.NewUnauthorizedError("You must be logged in"))
		}
		owner := in.ViewerID
		in.OwnerID = &owner
	}

	cars, err := s.carService.ListCars(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"cars": cars})
}

// CreateCar creates a car owned by the session user (protected)
// @Summary Create car
// @Tags cars
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CarInput true "Car fields"
// @Success 201 {object} object{car=models.Car}
// @Failure 400 {object} object{error=string}
// @Failure 401 {object} object{error=string}
// @Router /cars [post]
func (s *Server) CreateCar(c *fiber.Ctx) error {
	var req models.CarInput
	if err := decodeJSON(c, &req); err != nil {
		return respondError(c, err)
	}

	car, err := s.carService.CreateCar(c.UserContext(), service.CreateCarInput{
		OwnerID: middleware.UserID(c),
		Car:     req,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"car": car})
}

// GetCar returns a single car with its comments (public)
// @Summary Get car
// @Tags cars
// @Produce json
// @Param id path string true "Car ID"
// @Success 200 {object} object{car=models.Car}
// @Failure 404 {object} object{error=string}
// @Router /cars/{id} [get]
func (s *Server) GetCar(c *fiber.Ctx) error {
	car, err := s.carService.GetCar(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"car": car})
}

// ReplaceCar overwrites the mutable fields of a car (owner only)
// @Summary Replace car
// @Tags cars
// @Accept json
// @Security BearerAuth
// @Param id path string true "Car ID"
// @Param request body models.CarInput true "Car fields"
// @Success 204
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /cars/{id} [put]
func (s *Server) ReplaceCar(c *fiber.Ctx) error {
	var req models.CarInput
	if err := decodeJSON(c, &req); err != nil {
		return respondError(c, err)
	}

	_, err := s.carService.ReplaceCar(c.UserContext(), service.ReplaceCarInput{
		UserID: middleware.UserID(c),
		CarID:  c.Params("id"),
		Car:    req,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PatchCar applies a partial update (owner only)
// @Summary Update car
// @Tags cars
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Car ID"
// @Param request body models.CarPatch true "Fields to change"
// @Success 200 {object} object{car=models.Car}
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /cars/{id} [patch]
func (s *Server) PatchCar(c *fiber.Ctx) error {
	var patch models.CarPatch
	if err := decodeJSON(c, &patch); err != nil {
		return respondError(c, err)
	}

	car, err := s.carService.UpdateCar(c.UserContext(), service.UpdateCarInput{
		UserID: middleware.UserID(c),
		CarID:  c.Params("id"),
		Patch:  patch,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"car": car})
}

// DeleteCar removes a car and its comments (owner only)
// @Summary Delete car
// @Tags cars
// @Security BearerAuth
// @Param id path string true "Car ID"
// @Success 204
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /cars/{id} [delete]
func (s *Server) DeleteCar(c *fiber.Ctx) error {
	err := s.carService.DeleteCar(c.UserContext(), service.DeleteCarInput{
		UserID: middleware.UserID(c),
		CarID:  c.Params("id"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SeedCars resets the demo inventory and returns the fixture cars.
// @Summary Reseed cars
// @Description Replaces the unowned cars with the fixture cars
// @Tags cars
// @Produce json
// @Success 200 {object} object{cars=[]models.Car}
// @Failure 404 {object} object{error=string}
// @Router /cars/seed [get]
func (s *Server) SeedCars(c *fiber.Ctx) error {
	cars, err := s.reseed(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"cars": cars})
}

func (s *Server) reseed(c *fiber.Ctx) ([]*models.Car, error) {
	cars, err := seed.Reset(c.UserContext(), s.carRepo, seed.Options{})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	s.carService.NotifySeeded(c.UserContext())
	return cars, nil
}
