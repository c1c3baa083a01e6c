package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new time-ordered identifier, so ids created later sort after earlier ones
func GenerateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
