package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"carlot/internal/middleware"
	"carlot/internal/service"

	"github.com/gofiber/fiber/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"index", "show", "new", "edit", "error", "login", "signup"}

// renderer holds one template set per page, each layered on base.html.
type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	r := &renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// pageData is the view model shared by every page.
type pageData struct {
	Title    string
	Username string
	LoggedIn bool
	Cars     []service.CarView
	Car      *service.CarView
	Error    string
}

func (s *Server) newPageData(c *fiber.Ctx, title string) pageData {
	return pageData{
		Title:    title,
		Username: middleware.Username(c),
		LoggedIn: middleware.UserID(c) != 0,
	}
}

// render executes the named page into a buffer first so a template error
// never leaves a half-written response.
func (s *Server) render(c *fiber.Ctx, status int, page string, data pageData) error {
	tmpl, ok := s.pages.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	c.Type("html", "utf-8")
	return c.Status(status).Send(buf.Bytes())
}
