package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no profile exists for the given user id.
var ErrNotFound = errors.New("user not found")

// UserProfile is a read-only personnel record resolved from the directory.
type UserProfile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
}

// Resolver resolves user identifiers to profiles. The workflow engine
// consumes it read-only, for distribution lists and reviewer stamping.
type Resolver interface {
	ResolveUser(ctx context.Context, id string) (UserProfile, error)
}
