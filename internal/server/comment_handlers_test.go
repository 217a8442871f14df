package server

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"carlot/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_Comments(t *testing.T) {
	_, app := newTestServer(t)
	author, authorID := signup(t, app, "author")
	stranger, _ := signup(t, app, "stranger")

	seeded := doJSON(t, app, http.MethodGet, "/api/cars/seed", "", nil)
	require.Equal(t, fiber.StatusOK, seeded.Status)
	carID := seeded.Body["cars"].([]any)[0].(map[string]any)["id"].(string)
	path := "/api/cars/" + carID + "/comments"

	t.Run("without a session", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, path, "", map[string]string{"note": "hi"})
		assert.Equal(t, fiber.StatusUnauthorized, resp.Status)

		car := carFrom(t, doJSON(t, app, http.MethodGet, "/api/cars/"+carID, "", nil))
		assert.Empty(t, car["comments"])
	})

	t.Run("empty note", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, path, author, map[string]string{"note": "   "})
		assert.Equal(t, fiber.StatusBadRequest, resp.Status)
	})

	t.Run("unknown car", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/api/cars/nope/comments", author, map[string]string{"note": "hi"})
		assert.Equal(t, fiber.StatusNotFound, resp.Status)
	})

	note := gofakeit.Sentence(6)
	resp := doJSON(t, app, http.MethodPost, path, author, map[string]string{"note": note})
	require.Equal(t, fiber.StatusCreated, resp.Status, resp.Raw)
	comments := carFrom(t, resp)["comments"].([]any)
	require.Len(t, comments, 1)
	comment := comments[0].(map[string]any)
	assert.Equal(t, note, comment["note"])
	assert.Equal(t, authorID, comment["author_id"])
	commentID := comment["id"].(string)

	t.Run("non-author delete", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodDelete, path+"/"+commentID, stranger, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.Status)

		car := carFrom(t, doJSON(t, app, http.MethodGet, "/api/cars/"+carID, "", nil))
		assert.Len(t, car["comments"], 1)
	})

	t.Run("unknown comment", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodDelete, path+"/missing", author, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.Status)
	})

	t.Run("author delete", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodDelete, path+"/"+commentID, author, nil)
		require.Equal(t, fiber.StatusNoContent, resp.Status)

		car := carFrom(t, doJSON(t, app, http.MethodGet, "/api/cars/"+carID, "", nil))
		assert.Empty(t, car["comments"])
	})
}

func TestPages_Comments(t *testing.T) {
	s, app := newTestServer(t)
	author := loginCookie(t, app, "penpal")
	stranger := loginCookie(t, app, "lurker")

	doGet(t, app, "/cars/seed", "")
	car := firstCar(t, s)
	commentPath := "/comments/" + car.ID

	anon := doForm(t, app, commentPath, "", url.Values{"note": {"hello"}})
	assertErrorRedirect(t, anon, "You must be logged in")
	assert.Zero(t, reload(t, s, car.ID).Comments.Len())

	added := doForm(t, app, commentPath, author, url.Values{"note": {"Lovely paint"}})
	require.Equal(t, fiber.StatusFound, added.Status)
	assert.Equal(t, "/cars/"+car.ID, added.Header.Get(fiber.HeaderLocation))

	stored := reload(t, s, car.ID)
	require.Equal(t, 1, stored.Comments.Len())
	commentID := stored.Comments[0].ID

	show := doGet(t, app, "/cars/"+car.ID, author)
	assert.Contains(t, show.Raw, "Lovely paint")
	assert.Contains(t, show.Raw, "by penpal")
	assert.Contains(t, show.Raw, "/comments/delete/"+car.ID+"/"+commentID)

	denied := doForm(t, app, "/comments/delete/"+car.ID+"/"+commentID, stranger, url.Values{"_method": {"DELETE"}})
	assertErrorRedirect(t, denied, "You are not allowed to delete this comment")
	assert.Equal(t, 1, reload(t, s, car.ID).Comments.Len())

	removed := doForm(t, app, "/comments/delete/"+car.ID+"/"+commentID, author, url.Values{"_method": {"DELETE"}})
	require.Equal(t, fiber.StatusFound, removed.Status)
	assert.Zero(t, reload(t, s, car.ID).Comments.Len())
}

func firstCar(t *testing.T, s *Server) *models.Car {
	t.Helper()
	cars, err := s.carRepo.List(context.Background(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, cars)
	return cars[0]
}

func reload(t *testing.T, s *Server, id string) *models.Car {
	t.Helper()
	car, err := s.carRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return car
}
