package server

import (
	"time"

	"carlot/internal/middleware"
	"carlot/internal/models"
	"carlot/internal/service"

	"github.com/gofiber/fiber/v2"
)

type credentials struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string} true "Signup request"
// @Success 201 {object} object{token=string,user=models.User}
// @Failure 400 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req credentials
	if err := decodeJSON(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := s.userService.Signup(c.UserContext(), service.SignupInput(req))
	if err != nil {
		return respondError(c, err)
	}

	token, _, err := s.sessions.Issue(user.ID, user.Username)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Login handles POST /api/auth/login
// @Summary User login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string} true "Login credentials"
// @Success 200 {object} object{token=string,user=models.User}
// @Failure 400 {object} object{error=string}
// @Failure 401 {object} object{error=string}
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req credentials
	if err := decodeJSON(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := s.userService.Login(c.UserContext(), service.LoginInput(req))
	if err != nil {
		return respondError(c, err)
	}

	token, _, err := s.sessions.Issue(user.ID, user.Username)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Logout handles POST /api/auth/logout. Revoking an absent session is not an error.
// @Summary User logout
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.sessions.Revoke(c.UserContext(), middleware.CurrentSession(c)); err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// SignupPage shows the signup form.
func (s *Server) SignupPage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "signup", s.newPageData(c, "Sign up"))
}

// SignupForm creates the account and signs the user in.
func (s *Server) SignupForm(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return pageError(c, models.NewValidationError("Invalid form"))
	}

	user, err := s.userService.Signup(c.UserContext(), service.SignupInput(req))
	if err != nil {
		return pageError(c, err)
	}
	if err := s.startSession(c, user); err != nil {
		return pageError(c, err)
	}
	return c.Redirect("/cars", fiber.StatusFound)
}

// LoginPage shows the login form.
func (s *Server) LoginPage(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "login", s.newPageData(c, "Log in"))
}

// LoginForm verifies the credentials and sets the session cookie.
func (s *Server) LoginForm(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return pageError(c, models.NewValidationError("Invalid form"))
	}

	user, err := s.userService.Login(c.UserContext(), service.LoginInput(req))
	if err != nil {
		return pageError(c, err)
	}
	if err := s.startSession(c, user); err != nil {
		return pageError(c, err)
	}
	return c.Redirect("/cars", fiber.StatusFound)
}

// LogoutPage revokes the session and clears the cookie.
func (s *Server) LogoutPage(c *fiber.Ctx) error {
	if err := s.sessions.Revoke(c.UserContext(), middleware.CurrentSession(c)); err != nil {
		return pageError(c, models.NewInternalError(err))
	}
	s.clearSessionCookie(c)
	return c.Redirect("/cars", fiber.StatusFound)
}

func (s *Server) startSession(c *fiber.Ctx, user *models.User) error {
	token, sess, err := s.sessions.Issue(user.ID, user.Username)
	if err != nil {
		return models.NewInternalError(err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
