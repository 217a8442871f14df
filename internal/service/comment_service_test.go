package service

import (
	"context"
	"strings"
	"testing"

	"carlot/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_AddComment(t *testing.T) {
	t.Parallel()

	car := &models.Car{Name: "Volvo", Color: "black"}
	repo := newMemCarRepo(car)
	events := &recordingPublisher{}
	svc := NewCommentService(repo, events)
	ctx := context.Background()

	t.Run("without a session nothing is written", func(t *testing.T) {
		_, _, err := svc.AddComment(ctx, AddCommentInput{CarID: car.ID, Note: "hello"})
		assertCode(t, err, models.CodeUnauthorized)
		assert.Zero(t, repo.stored(t, car.ID).Comments.Len())
		assert.Zero(t, repo.saves)
	})

	t.Run("empty note", func(t *testing.T) {
		_, _, err := svc.AddComment(ctx, AddCommentInput{UserID: 1, CarID: car.ID, Note: "  \n "})
		assertValidationError(t, err)
	})

	t.Run("note too long", func(t *testing.T) {
		_, _, err := svc.AddComment(ctx, AddCommentInput{UserID: 1, CarID: car.ID, Note: strings.Repeat("n", 10001)})
		assertValidationError(t, err)
	})

	t.Run("unknown car", func(t *testing.T) {
		_, _, err := svc.AddComment(ctx, AddCommentInput{UserID: 1, CarID: "missing", Note: "hello"})
		assertCode(t, err, models.CodeNotFound)
	})

	t.Run("session user authors exactly one comment", func(t *testing.T) {
		note := gofakeit.Sentence(8)
		updated, comment, err := svc.AddComment(ctx, AddCommentInput{UserID: 9, CarID: car.ID, Note: note})
		require.NoError(t, err)
		require.NotNil(t, comment)

		assert.NotEmpty(t, comment.ID)
		assert.Equal(t, uint(9), comment.AuthorID)
		assert.Equal(t, note, comment.Note)
		assert.False(t, comment.CreatedAt.IsZero())
		assert.Equal(t, 1, updated.Comments.Len())

		stored := repo.stored(t, car.ID)
		require.Equal(t, 1, stored.Comments.Len())
		assert.Equal(t, comment.ID, stored.Comments[0].ID)
		assert.Equal(t, []string{models.EventCommentAdded}, events.types())
	})
}

func TestCommentService_AddComment_UnownedCarAcceptsComments(t *testing.T) {
	t.Parallel()

	car := &models.Car{Name: "BMW", Color: "blue", OwnerID: uintPtr(1)}
	repo := newMemCarRepo(car)
	svc := NewCommentService(repo, nil)

	_, _, err := svc.AddComment(context.Background(), AddCommentInput{UserID: 2, CarID: car.ID, Note: "nice paint"})
	require.NoError(t, err)
	assert.Equal(t, uint(2), repo.stored(t, car.ID).Comments[0].AuthorID)
}

func TestCommentService_AddComment_KeepsConcurrentComments(t *testing.T) {
	t.Parallel()

	car := &models.Car{Name: "Volvo", Color: "black"}
	repo := newMemCarRepo(car)
	svc := NewCommentService(repo, nil)
	ctx := context.Background()

	_, first, err := svc.AddComment(ctx, AddCommentInput{UserID: 1, CarID: car.ID, Note: "first"})
	require.NoError(t, err)

	repo.conflicts = 1
	_, second, err := svc.AddComment(ctx, AddCommentInput{UserID: 2, CarID: car.ID, Note: "second"})
	require.NoError(t, err)

	stored := repo.stored(t, car.ID)
	require.Equal(t, 2, stored.Comments.Len())
	assert.Equal(t, first.ID, stored.Comments[0].ID)
	assert.Equal(t, second.ID, stored.Comments[1].ID)
}

func TestCommentService_AddComment_ConflictExhausted(t *testing.T) {
	t.Parallel()

	car := &models.Car{Name: "Volvo", Color: "black"}
	repo := newMemCarRepo(car)
	svc := NewCommentService(repo, nil)

	repo.conflicts = maxSaveAttempts
	_, _, err := svc.AddComment(context.Background(), AddCommentInput{UserID: 1, CarID: car.ID, Note: "lost"})
	assertCode(t, err, models.CodeConflict)
	assert.Zero(t, repo.stored(t, car.ID).Comments.Len())
}

func TestCommentService_DeleteComment(t *testing.T) {
	t.Parallel()

	car := &models.Car{
		Name: "Volvo", Color: "black", OwnerID: uintPtr(1),
		Comments: models.CommentList{
			{ID: "c1", AuthorID: 2, Note: "mine"},
			{ID: "c2", AuthorID: 3, Note: "theirs"},
		},
	}
	repo := newMemCarRepo(car)
	events := &recordingPublisher{}
	svc := NewCommentService(repo, events)
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		_, err := svc.DeleteComment(ctx, DeleteCommentInput{CarID: car.ID, CommentID: "c1"})
		assertCode(t, err, models.CodeUnauthorized)
	})

	t.Run("non-author leaves the list unchanged", func(t *testing.T) {
		// Owning the car is not enough.
		_, err := svc.DeleteComment(ctx, DeleteCommentInput{UserID: 1, CarID: car.ID, CommentID: "c1"})
		assertCode(t, err, models.CodeForbidden)
		assert.Equal(t, 2, repo.stored(t, car.ID).Comments.Len())
		assert.Empty(t, events.types())
	})

	t.Run("unknown comment", func(t *testing.T) {
		_, err := svc.DeleteComment(ctx, DeleteCommentInput{UserID: 2, CarID: car.ID, CommentID: "nope"})
		assertCode(t, err, models.CodeNotFound)
	})

	t.Run("unknown car", func(t *testing.T) {
		_, err := svc.DeleteComment(ctx, DeleteCommentInput{UserID: 2, CarID: "missing", CommentID: "c1"})
		assertCode(t, err, models.CodeNotFound)
	})

	t.Run("author removes only their comment", func(t *testing.T) {
		updated, err := svc.DeleteComment(ctx, DeleteCommentInput{UserID: 2, CarID: car.ID, CommentID: "c1"})
		require.NoError(t, err)
		assert.Equal(t, 1, updated.Comments.Len())

		stored := repo.stored(t, car.ID)
		require.Equal(t, 1, stored.Comments.Len())
		assert.Equal(t, "c2", stored.Comments[0].ID)
		assert.Equal(t, []string{models.EventCommentDeleted}, events.types())
	})
}
