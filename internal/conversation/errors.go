package conversation

import "errors"

var (
	// ErrEmptyMessage is returned for a turn without visitor text.
	ErrEmptyMessage = errors.New("conversation: message is empty")
	// ErrSessionNotFound is returned by stores for unknown or expired sessions.
	ErrSessionNotFound = errors.New("conversation: session not found")
)
