package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"carlot/internal/middleware"
	"carlot/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loginCookie signs up through the form and returns the session cookie value.
func loginCookie(t *testing.T, app *fiber.App, username string) string {
	t.Helper()
	req := doFormRaw(t, app, "/users/signup", url.Values{"username": {username}, "password": {"password123"}})
	require.Equal(t, fiber.StatusFound, req.StatusCode)
	for _, c := range req.Cookies() {
		if c.Name == middleware.SessionCookie && c.Value != "" {
			return c.Value
		}
	}
	t.Fatal("signup did not set a session cookie")
	return ""
}

func doFormRaw(t *testing.T, app *fiber.App, path string, form url.Values) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func assertErrorRedirect(t *testing.T, resp apiResponse, message string) {
	t.Helper()
	assert.Equal(t, fiber.StatusFound, resp.Status)
	assert.Equal(t, middleware.ErrorPageURL(message), resp.Header.Get(fiber.HeaderLocation))
}

func onlyCar(t *testing.T, s *Server) *models.Car {
	t.Helper()
	cars, err := s.carRepo.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, cars, 1)
	return cars[0]
}

func TestPages_RootRedirects(t *testing.T) {
	_, app := newTestServer(t)

	resp := doGet(t, app, "/", "")
	assert.Equal(t, fiber.StatusFound, resp.Status)
	assert.Equal(t, "/cars", resp.Header.Get(fiber.HeaderLocation))
}

func TestPages_ListAndSeed(t *testing.T) {
	_, app := newTestServer(t)

	seed := doGet(t, app, "/cars/seed", "")
	assert.Equal(t, fiber.StatusFound, seed.Status)
	assert.Equal(t, "/cars", seed.Header.Get(fiber.HeaderLocation))

	list := doGet(t, app, "/cars", "")
	require.Equal(t, fiber.StatusOK, list.Status)
	assert.Contains(t, list.Header.Get(fiber.HeaderContentType), "text/html")
	for _, name := range []string{"Ferari", "Volvo", "BMW"} {
		assert.Contains(t, list.Raw, name)
	}
}

func TestPages_CreateRequiresSession(t *testing.T) {
	s, app := newTestServer(t)

	resp := doForm(t, app, "/cars", "", url.Values{"name": {"BMW"}, "color": {"blue"}})
	assertErrorRedirect(t, resp, "You must be logged in")

	cars, err := s.carRepo.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, cars)

	assertErrorRedirect(t, doGet(t, app, "/cars/new", ""), "You must be logged in")
	assertErrorRedirect(t, doGet(t, app, "/cars/mine", ""), "You must be logged in")
	assert.Equal(t, fiber.StatusUnauthorized, doGet(t, app, "/cars/json", "").Status)
}

func TestPages_CarLifecycle(t *testing.T) {
	s, app := newTestServer(t)
	owner := loginCookie(t, app, "owner")
	other := loginCookie(t, app, "other")

	created := doForm(t, app, "/cars", owner, url.Values{
		"name": {"Volvo"}, "color": {"black"}, "ready_to_ride": {"on"},
	})
	require.Equal(t, fiber.StatusFound, created.Status)
	assert.Equal(t, "/cars", created.Header.Get(fiber.HeaderLocation))

	car := onlyCar(t, s)
	assert.Equal(t, "Volvo", car.Name)
	assert.True(t, car.ReadyToRide)
	require.NotNil(t, car.OwnerID)

	show := doGet(t, app, "/cars/"+car.ID, owner)
	require.Equal(t, fiber.StatusOK, show.Status)
	assert.Contains(t, show.Raw, "Volvo")
	assert.Contains(t, show.Raw, "/cars/edit/"+car.ID)

	// Visitors see the car but not its edit link.
	anon := doGet(t, app, "/cars/"+car.ID, "")
	require.Equal(t, fiber.StatusOK, anon.Status)
	assert.NotContains(t, anon.Raw, "/cars/edit/"+car.ID)

	mine := doGet(t, app, "/cars/json", owner)
	require.Equal(t, fiber.StatusOK, mine.Status)
	assert.Len(t, mine.Body["cars"], 1)
	assert.Empty(t, doGet(t, app, "/cars/json", other).Body["cars"])

	t.Run("edit form is owner only", func(t *testing.T) {
		edit := doGet(t, app, "/cars/edit/"+car.ID, owner)
		require.Equal(t, fiber.StatusOK, edit.Status)
		assert.Contains(t, edit.Raw, `value="Volvo"`)
		assert.Contains(t, edit.Raw, "checked")

		assertErrorRedirect(t, doGet(t, app, "/cars/edit/"+car.ID, other), "You can only modify your own cars")
	})

	t.Run("non-owner update leaves the car unchanged", func(t *testing.T) {
		resp := doForm(t, app, "/cars/"+car.ID, other, url.Values{
			"_method": {"PUT"}, "name": {"Stolen"}, "color": {"pink"},
		})
		assertErrorRedirect(t, resp, "You can only modify your own cars")
		assert.Equal(t, "Volvo", onlyCar(t, s).Name)
	})

	t.Run("owner update through method override", func(t *testing.T) {
		// The checkbox is left unchecked, so it is absent from the form.
		resp := doForm(t, app, "/cars/"+car.ID, owner, url.Values{
			"_method": {"PUT"}, "name": {"Volvo"}, "color": {"silver"},
		})
		require.Equal(t, fiber.StatusFound, resp.Status)
		assert.Equal(t, "/cars/"+car.ID, resp.Header.Get(fiber.HeaderLocation))

		updated := onlyCar(t, s)
		assert.Equal(t, "silver", updated.Color)
		assert.False(t, updated.ReadyToRide)
	})

	t.Run("non-owner delete", func(t *testing.T) {
		resp := doForm(t, app, "/cars/"+car.ID, other, url.Values{"_method": {"DELETE"}})
		assertErrorRedirect(t, resp, "You can only delete your own cars")
		onlyCar(t, s)
	})

	t.Run("owner delete", func(t *testing.T) {
		resp := doForm(t, app, "/cars/"+car.ID, owner, url.Values{"_method": {"DELETE"}})
		require.Equal(t, fiber.StatusFound, resp.Status)
		assert.Equal(t, "/cars", resp.Header.Get(fiber.HeaderLocation))

		cars, err := s.carRepo.List(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, cars)
	})
}

func TestPages_UnknownCar(t *testing.T) {
	_, app := newTestServer(t)

	resp := doGet(t, app, "/cars/does-not-exist", "")
	assertErrorRedirect(t, resp, "Car with ID does-not-exist not found")
}

func TestPages_ErrorPageEscapesMessage(t *testing.T) {
	_, app := newTestServer(t)

	resp := doGet(t, app, "/error?error="+url.QueryEscape(`<script>alert("x")</script>`), "")
	require.Equal(t, fiber.StatusOK, resp.Status)
	assert.NotContains(t, resp.Raw, "<script>")
	assert.Contains(t, resp.Raw, "&lt;script&gt;")
}

func TestPages_LoginAndLogout(t *testing.T) {
	_, app := newTestServer(t)
	loginCookie(t, app, "gina")

	bad := doForm(t, app, "/users/login", "", url.Values{"username": {"gina"}, "password": {"nope-nope"}})
	assertErrorRedirect(t, bad, "Invalid credentials")

	resp := doFormRaw(t, app, "/users/login", url.Values{"username": {"gina"}, "password": {"password123"}})
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	var session string
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			session = c.Value
			assert.True(t, c.HttpOnly)
		}
	}
	require.NotEmpty(t, session)

	page := doGet(t, app, "/cars", session)
	assert.Contains(t, page.Raw, "Signed in as gina")

	out := doGet(t, app, "/users/logout", session)
	assert.Equal(t, fiber.StatusFound, out.Status)

	// The revoked token no longer authenticates even if the browser kept it.
	after := doGet(t, app, "/cars", session)
	assert.NotContains(t, after.Raw, "Signed in as gina")
}
