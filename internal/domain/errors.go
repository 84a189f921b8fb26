package domain

import "errors"

var (
	// ErrEmbeddingUnavailable signals that the embedding provider could not be reached.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrCompletionProviderError signals a text completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrRecordNotFound signals a similarity lookup for an id that is not indexed.
	ErrRecordNotFound = errors.New("record not found")
	// ErrIndexNotLoaded signals a search before any index build or snapshot load.
	ErrIndexNotLoaded = errors.New("index not loaded")
	// ErrSnapshotCorrupt signals an inconsistent or unreadable snapshot pair on disk.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrConversationNotFound signals a missing conversation id.
	ErrConversationNotFound = errors.New("conversation not found")
)
