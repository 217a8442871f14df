package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const methodOverrideField = "_method"

// MethodOverride lets HTML forms tunnel PUT, PATCH and DELETE through POST
// using a hidden "_method" field or the X-HTTP-Method-Override header.
// It must be registered with app.Use before any route so the route stacks line up.
func MethodOverride() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		override := c.Get("X-HTTP-Method-Override")
		if override == "" {
			override = c.FormValue(methodOverrideField)
		}

		switch method := strings.ToUpper(strings.TrimSpace(override)); method {
		case fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
			c.Method(method)
		}
		return c.Next()
	}
}
