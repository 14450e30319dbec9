package entity

import (
	"time"

	"github.com/google/uuid"
)

// Subscriber is the student (or parent) who owns a subscription and receives notifications
type Subscriber struct {
	ID        uuid.UUID
	AcademyID int64
	Name      string
	Email     string
	Locale    string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// NewSubscriber creates a new subscriber entity
func NewSubscriber(academyID int64, name, email, locale string) *Subscriber {
	return &Subscriber{
		ID:        uuid.New(),
		AcademyID: academyID,
		Name:      name,
		Email:     email,
		Locale:    locale,
		CreatedAt: time.Now(),
	}
}

// IsDeleted returns true if the subscriber has been soft deleted
func (u *Subscriber) IsDeleted() bool {
	return u.DeletedAt != nil
}

// HasEmail returns true if the subscriber has an email address
func (u *Subscriber) HasEmail() bool {
	return u.Email != ""
}
