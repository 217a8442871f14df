// Package models contains data structures for the application's domain models.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxCarFieldLen = 100
	maxNoteLen     = 10000
)

// ErrDuplicateComment is returned when a comment id is already present in a list.
var ErrDuplicateComment = errors.New("comment already exists")

// Car is a car document. Comments are embedded and only reachable through their car.
type Car struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	Name        string      `gorm:"not null" json:"name"`
	Color       string      `gorm:"not null" json:"color"`
	ReadyToRide bool        `gorm:"not null" json:"ready_to_ride"`
	OwnerID     *uint       `gorm:"index" json:"owner_id,omitempty"`
	Comments    CommentList `gorm:"not null" json:"comments"`
	// Version is bumped on every save; writers must present the version they loaded.
	Version   int       `gorm:"not null" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the opaque id and initial version.
func (c *Car) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Comments == nil {
		c.Comments = CommentList{}
	}
	return nil
}

// OwnedBy reports whether userID owns the car. Unowned cars are owned by nobody.
func (c *Car) OwnedBy(userID uint) bool {
	return c.OwnerID != nil && userID != 0 && *c.OwnerID == userID
}

// Comment is a subdocument of Car.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  uint      `json:"author_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentList is the ordered comment collection of a car, keyed by comment id.
// It is stored as a JSON document in the car row.
type CommentList []Comment

// Len returns the number of comments.
func (l CommentList) Len() int { return len(l) }

// Find returns the comment with id.
func (l CommentList) Find(id string) (Comment, bool) {
	for _, c := range l {
		if c.ID == id {
			return c, true
		}
	}
	return Comment{}, false
}

// Add appends c, assigning an id and timestamp when missing.
func (l *CommentList) Add(c Comment) (Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if _, exists := l.Find(c.ID); exists {
		return Comment{}, ErrDuplicateComment
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	*l = append(*l, c)
	return c, nil
}

// Remove deletes the comment with id, keeping the order of the rest.
func (l *CommentList) Remove(id string) bool {
	for i, c := range *l {
		if c.ID == id {
			*l = append((*l)[:i:i], (*l)[i+1:]...)
			return true
		}
	}
	return false
}

// GormDataType keeps the column portable between postgres and sqlite.
func (CommentList) GormDataType() string {
	return "text"
}

// Value implements driver.Valuer.
func (l CommentList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *CommentList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = CommentList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported comment list source %T", src)
	}
	if len(raw) == 0 {
		*l = CommentList{}
		return nil
	}
	var out CommentList
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out == nil {
		out = CommentList{}
	}
	*l = out
	return nil
}

// CarInput is the validated payload for creating or replacing a car.
type CarInput struct {
	Name        string `json:"name" form:"name"`
	Color       string `json:"color" form:"color"`
	ReadyToRide bool   `json:"ready_to_ride" form:"-"`
}

// Validate trims the input and checks required fields.
func (in *CarInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	if in.Name == "" || in.Color == "" {
		return NewValidationError("Name and color are required")
	}
	if len(in.Name) > maxCarFieldLen || len(in.Color) > maxCarFieldLen {
		return NewValidationError("Name and color must be at most 100 characters")
	}
	return nil
}

// CarPatch is a partial update. Nil fields are left unchanged.
type CarPatch struct {
	Name        *string `json:"name"`
	Color       *string `json:"color"`
	ReadyToRide *bool   `json:"ready_to_ride"`
}

// Validate checks that the patch changes something and that given strings are usable.
func (p *CarPatch) Validate() error {
	if p.Name == nil && p.Color == nil && p.ReadyToRide == nil {
		return NewValidationError("No fields to update")
	}
	for _, s := range []*string{p.Name, p.Color} {
		if s == nil {
			continue
		}
		*s = strings.TrimSpace(*s)
		if *s == "" {
			return NewValidationError("Name and color cannot be blank")
		}
		if len(*s) > maxCarFieldLen {
			return NewValidationError("Name and color must be at most 100 characters")
		}
	}
	return nil
}

// Apply writes the submitted fields onto car.
func (p CarPatch) Apply(car *Car) {
	if p.Name != nil {
		car.Name = *p.Name
	}
	if p.Color != nil {
		car.Color = *p.Color
	}
	if p.ReadyToRide != nil {
		car.ReadyToRide = *p.ReadyToRide
	}
}

// CheckboxValue converts an HTML checkbox value. Only "on" is true.
func CheckboxValue(v string) bool {
	return v == "on"
}

// ValidateNote trims and checks a comment body.
func ValidateNote(note string) (string, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return "", NewValidationError("Comment note is required")
	}
	if len(note) > maxNoteLen {
		return "", NewValidationError("Comment too long (max 10000 characters)")
	}
	return note, nil
}
