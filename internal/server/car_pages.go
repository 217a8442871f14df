package server

import (
	"net/url"

	"carlot/internal/middleware"
	"carlot/internal/models"
	"carlot/internal/service"

	"github.com/gofiber/fiber/v2"
)

func carPath(id string) string {
	return "/cars/" + url.PathEscape(id)
}

// ErrorPage shows the message carried in the error query parameter.
func (s *Server) ErrorPage(c *fiber.Ctx) error {
	data := s.newPageData(c, "Something went wrong")
	data.Error = c.Query("error")
	if data.Error == "" {
		data.Error = "Unknown error"
	}
	return s.render(c, fiber.StatusOK, "error", data)
}

// CarsPage lists every car.
func (s *Server) CarsPage(c *fiber.Ctx) error {
	views, err := s.carService.ListCarViews(c.UserContext(), service.ListCarsInput{ViewerID: middleware.UserID(c)})
	if err != nil {
		return pageError(c, err)
	}
	data := s.newPageData(c, "All cars")
	data.Cars = views
	return s.render(c, fiber.StatusOK, "index", data)
}

// MyCarsPage lists the session user's cars.
func (s *Server) MyCarsPage(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	views, err := s.carService.ListCarViews(c.UserContext(), service.ListCarsInput{OwnerID: &userID, ViewerID: userID})
	if err != nil {
		return pageError(c, err)
	}
	data := s.newPageData(c, "My cars")
	data.Cars = views
	return s.render(c, fiber.StatusOK, "index", data)
}

// MyCarsJSON returns the session user's cars as JSON.
func (s *Server) MyCarsJSON(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	cars, err := s.carService.ListCars(c.UserContext(), service.ListCarsInput{OwnerID: &userID, ViewerID: userID})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"cars": cars})
}

// NewCarPage shows the creation form.
func (s *Server) NewCarPage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "new", s.newPageData(c, "Add a car"))
}

// CreateCarForm creates a car from the form. The owner is always the session user.
func (s *Server) CreateCarForm(c *fiber.Ctx) error {
	var in models.CarInput
	if err := c.BodyParser(&in); err != nil {
		return pageError(c, models.NewValidationError("Invalid form"))
	}
	in.ReadyToRide = models.CheckboxValue(c.FormValue("ready_to_ride"))

	if _, err := s.carService.CreateCar(c.UserContext(), service.CreateCarInput{
		OwnerID: middleware.UserID(c),
		Car:     in,
	}); err != nil {
		return pageError(c, err)
	}
	return c.Redirect("/cars", fiber.StatusFound)
}

// ShowCarPage shows one car with its comments.
func (s *Server) ShowCarPage(c *fiber.Ctx) error {
	view, err := s.carService.GetCarView(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return pageError(c, err)
	}
	data := s.newPageData(c, view.Name)
	data.Car = view
	return s.render(c, fiber.StatusOK, "show", data)
}

// EditCarPage shows the edit form pre-filled with the current values (owner only).
func (s *Server) EditCarPage(c *fiber.Ctx) error {
	car, err := s.carService.GetOwnedCar(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return pageError(c, err)
	}
	data := s.newPageData(c, "Edit "+car.Name)
	data.Car = &service.CarView{Car: car, Mine: true}
	return s.render(c, fiber.StatusOK, "edit", data)
}

// UpdateCarForm applies the edit form. Name and color change only when their
// fields were submitted; an unchecked box is absent from the form, so the
// checkbox always sets ready_to_ride.
func (s *Server) UpdateCarForm(c *fiber.Ctx) error {
	id := c.Params("id")
	patch := formPatch(c)

	if _, err := s.carService.UpdateCar(c.UserContext(), service.UpdateCarInput{
		UserID: middleware.UserID(c),
		CarID:  id,
		Patch:  patch,
	}); err != nil {
		return pageError(c, err)
	}
	return c.Redirect(carPath(id), fiber.StatusFound)
}

func formPatch(c *fiber.Ctx) models.CarPatch {
	var patch models.CarPatch
	args := c.Request().PostArgs()
	if args.Has("name") {
		name := string(args.Peek("name"))
		patch.Name = &name
	}
	if args.Has("color") {
		color := string(args.Peek("color"))
		patch.Color = &color
	}
	ready := models.CheckboxValue(c.FormValue("ready_to_ride"))
	patch.ReadyToRide = &ready
	return patch
}

// DeleteCarForm deletes a car (owner only).
func (s *Server) DeleteCarForm(c *fiber.Ctx) error {
	if err := s.carService.DeleteCar(c.UserContext(), service.DeleteCarInput{
		UserID: middleware.UserID(c),
		CarID:  c.Params("id"),
	}); err != nil {
		return pageError(c, err)
	}
	return c.Redirect("/cars", fiber.StatusFound)
}

// SeedPage resets the demo inventory and goes back to the list.
func (s *Server) SeedPage(c *fiber.Ctx) error {
	if _, err := s.reseed(c); err != nil {
		return pageError(c, err)
	}
	return c.Redirect("/cars", fiber.StatusFound)
}
