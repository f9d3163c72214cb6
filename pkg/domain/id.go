package domain

import "github.com/google/uuid"

// NewID returns a fresh random identifier for records, decisions and episodes.
func NewID() string {
	return uuid.NewString()
}
