package answer

import "errors"

var (
	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrEmptyHistory is returned when a turn is composed without any user message.
	ErrEmptyHistory = errors.New("history has no user message")

	// ErrStreamConsumed is returned when a stream is iterated a second time.
	ErrStreamConsumed = errors.New("stream already consumed")
)
