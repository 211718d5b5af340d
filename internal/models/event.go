package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип события жизненного цикла аккаунта.
type EventType string

const (
	EventUserRegistered    EventType = "user.registered"
	EventUserLoggedIn      EventType = "user.logged_in"
	EventUserLoggedOut     EventType = "user.logged_out"
	EventPasswordChanged   EventType = "user.password_changed"
	EventAvatarUpdated     EventType = "user.avatar_updated"
	EventCoverImageUpdated EventType = "user.cover_image_updated"
)

// Event — событие аккаунта, публикуемое во внешнюю шину.
type Event struct {
	Type       EventType `json:"type"`
	UserID     uuid.UUID `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
