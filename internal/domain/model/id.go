package model

import (
	"github.com/google/uuid"
)

// NewID returns a time-ordered identifier so audit rows sort by creation.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
