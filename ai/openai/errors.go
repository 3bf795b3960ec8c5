package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"

	"github.com/poiesic/profmatch/ai"
)

// langchaingo surfaces HTTP failures as formatted errors, so the status code
// has to be recovered from the message.
var statusPattern = regexp.MustCompile(`status code:? (\d{3})`)

// statusCode extracts an HTTP status from a provider error, 0 if none.
func statusCode(err error) int {
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0
	}
	return code
}

// classify wraps err with ai.ErrServiceUnavailable, ai.ErrInputRejected or
// ai.ErrServiceRefused.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ai.ErrServiceUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %w", op, ai.ErrServiceUnavailable, err)
	}
	code := statusCode(err)
	switch {
	case code == 408 || code == 429 || code >= 500:
		return fmt.Errorf("%s: %w: %w", op, ai.ErrServiceUnavailable, err)
	case code == 400 || code == 413 || code == 422:
		return fmt.Errorf("%s: %w: %w", op, ai.ErrInputRejected, err)
	case code >= 400:
		// 401, 403, 404 and the rest: the key, the account or the model is wrong.
		return fmt.Errorf("%s: %w: %w", op, ai.ErrServiceRefused, err)
	}
	// No status: the request never got a well-formed answer.
	return fmt.Errorf("%s: %w: %w", op, ai.ErrServiceUnavailable, err)
}
