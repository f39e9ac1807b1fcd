package utils

import "github.com/google/uuid"

// GenerateID returns a new opaque document identifier. Callers must not
// parse it.
func GenerateID() string {
	return uuid.NewString()
}
