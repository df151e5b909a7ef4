package ai

import (
	"context"
	"fmt"
)

// ChatSession generates text inside a conversation whose history is kept by the backend.
// Successive SendMessage calls see the replies of earlier ones.
type ChatSession interface {
	SendMessage(ctx context.Context, message string) (string, error)
}

// Error is a failed generation.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
