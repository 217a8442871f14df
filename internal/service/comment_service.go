package service

import (
	"context"

	"carlot/internal/models"
	"carlot/internal/repository"
)

type CommentService struct {
	carRepo repository.CarRepository
	events  EventPublisher
}

type AddCommentInput struct {
	UserID uint
	CarID  string
	Note   string
}

type DeleteCommentInput struct {
	UserID    uint
	CarID     string
	CommentID string
}

func NewCommentService(carRepo repository.CarRepository, events EventPublisher) *CommentService {
	return &CommentService{
		carRepo: carRepo,
		events:  events,
	}
}

// AddComment appends one comment authored by the session user and returns the updated car.
func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (*models.Car, *models.Comment, error) {
	if in.UserID == 0 {
		return nil, nil, models.NewUnauthorizedError("You must be logged in to comment")
	}
	note, err := models.ValidateNote(in.Note)
	if err != nil {
		return nil, nil, err
	}

	var added models.Comment
	car, err := mutateCar(ctx, s.carRepo, "AddComment", in.CarID, func(car *models.Car) error {
		c, err := car.Comments.Add(models.Comment{AuthorID: in.UserID, Note: note})
		if err != nil {
			return models.NewConflictError(err.Error())
		}
		added = c
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	publish(ctx, s.events, models.CarEvent{
		Type: models.EventCommentAdded, CarID: car.ID, CommentID: added.ID, UserID: in.UserID,
	})
	return car, &added, nil
}

// DeleteComment removes a comment. Only its author may do so.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (*models.Car, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("You must be logged in")
	}

	car, err := mutateCar(ctx, s.carRepo, "DeleteComment", in.CarID, func(car *models.Car) error {
		comment, ok := car.Comments.Find(in.CommentID)
		if !ok {
			return models.NewNotFoundError("Comment", in.CommentID)
		}
		if comment.AuthorID != in.UserID {
			return models.NewForbiddenError("You can only delete your own comments")
		}
		car.Comments.Remove(in.CommentID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.events, models.CarEvent{
		Type: models.EventCommentDeleted, CarID: car.ID, CommentID: in.CommentID, UserID: in.UserID,
	})
	return car, nil
}
