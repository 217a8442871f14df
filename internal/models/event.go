package models

import "time"

// Car feed event types.
const (
	EventCarCreated     = "car.created"
	EventCarUpdated     = "car.updated"
	EventCarDeleted     = "car.deleted"
	EventCommentAdded   = "comment.added"
	EventCommentDeleted = "comment.deleted"
	EventCarsSeeded     = "cars.seeded"
)

// CarEvent is published after a successful write and fanned out to feed subscribers.
type CarEvent struct {
	Type      string    `json:"type"`
	CarID     string    `json:"car_id,omitempty"`
	CommentID string    `json:"comment_id,omitempty"`
	UserID    uint      `json:"user_id,omitempty"`
	At        time.Time `json:"at"`
}
