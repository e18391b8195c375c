package translation

import (
	"context"
	"polyglot-chat/contract"
	"polyglot-chat/errors"
)

var _ contract.Translator = Chain{}

// Chain tries each backend in order and returns the first success.
// When every backend fails, the first error more specific than
// ErrServiceUnavailable wins, so a rejected language is not reported as an outage.
type Chain []contract.Translator

func (c Chain) Translate(ctx context.Context, text, source, target string) (string, error) {
	var cause error
	for _, backend := range c {
		translated, err := backend.Translate(ctx, text, source, target)
		if err == nil {
			return translated, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if cause == nil || (errors.Is(cause, errors.ErrServiceUnavailable) && !errors.Is(err, errors.ErrServiceUnavailable)) {
			cause = err
		}
	}
	if cause == nil {
		return "", errors.ErrServiceUnavailable
	}
	return "", cause
}
