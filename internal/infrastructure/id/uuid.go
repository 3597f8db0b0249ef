package id

import "github.com/google/uuid"

// UUID generates random (version 4) identifiers for orders and intents.
type UUID struct{}

func (UUID) NewID() string {
	return uuid.NewString()
}
