package rag

import "errors"

var (
	// ErrNoUserMessage is returned when a conversation holds no user turn.
	ErrNoUserMessage = errors.New("No user message found")
	// ErrUnknownExpert is returned when a bot id matches no known expert.
	ErrUnknownExpert = errors.New("Invalid bot")
)

// IsValidation reports whether err should be answered with a client error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoUserMessage) || errors.Is(err, ErrUnknownExpert)
}
