package domain

import "context"

// Completer is the text generation contract. Stateless per call: the
// provider sees only what is passed in messages.
type Completer interface {
	Complete(ctx context.Context, messages []Turn) (string, error)
}
