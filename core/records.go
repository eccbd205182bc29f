package core

import "time"

// ConversationRecord is the durable summary of a closed thread. It is created
// (or updated) once per close event, keyed by (UserID, ThreadID).
type ConversationRecord struct {
	ThreadID  string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FavoriteDestination is a destination a user asked the assistant to save.
type FavoriteDestination struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
