package server

import (
	"carlot/internal/middleware"
	"carlot/internal/models"
	"carlot/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AddComment appends a comment authored by the session user (protected)
// @Summary Add comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Car ID"
// @Param request body object{note=string} true "Comment"
// @Success 201 {object} object{car=models.Car}
// @Failure 400 {object} object{error=string}
// @Failure 401 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /cars/{id}/comments [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	var req struct {
		Note string `json:"note"`
	}
	if err := decodeJSON(c, &req); err != nil {
		return respondError(c, err)
	}

	car, _, err := s.commentService.AddComment(c.UserContext(), service.AddCommentInput{
		UserID: middleware.UserID(c),
		CarID:  c.Params("id"),
		Note:   req.Note,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"car": car})
}

// DeleteComment removes a comment (author only)
// @Summary Delete comment
// @Tags comments
// @Security BearerAuth
// @Param id path string true "Car ID"
// @Param commentId path string true "Comment ID"
// @Success 204
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /cars/{id}/comments/{commentId} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	_, err := s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		UserID:    middleware.UserID(c),
		CarID:     c.Params("id"),
		CommentID: c.Params("commentId"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddCommentForm handles the comment form on the car page.
func (s *Server) AddCommentForm(c *fiber.Ctx) error {
	carID := c.Params("carId")
	_, _, err := s.commentService.AddComment(c.UserContext(), service.AddCommentInput{
		UserID: middleware.UserID(c),
		CarID:  carID,
		Note:   c.FormValue("note"),
	})
	if err != nil {
		if models.HasCode(err, models.CodeUnauthorized) {
			return pageError(c, models.NewUnauthorizedError("You are not allowed to comment on this car"))
		}
		return pageError(c, err)
	}
	return c.Redirect(carPath(carID), fiber.StatusFound)
}

// DeleteCommentForm handles the delete button next to a comment.
func (s *Server) DeleteCommentForm(c *fiber.Ctx) error {
	carID := c.Params("carId")
	_, err := s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		UserID:    middleware.UserID(c),
		CarID:     carID,
		CommentID: c.Params("commId"),
	})
	if err != nil {
		if models.HasCode(err, models.CodeForbidden) || models.HasCode(err, models.CodeUnauthorized) {
			return pageError(c, models.NewForbiddenError("You are not allowed to delete this comment"))
		}
		return pageError(c, err)
	}
	return c.Redirect(carPath(carID), fiber.StatusFound)
}
