package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser/humanoid"
)

var (
	ErrSelectorUnsupported = errors.New("unsupported selector type")
	ErrElementNotFound     = errors.New("element not found")
	ErrMissingKey          = errors.New("key is required")
	ErrMissingValue        = errors.New("value is required")
	ErrUnsupportedAction   = errors.New("unsupported storage action")
	ErrUnknownEvent        = errors.New("unknown event")
	ErrInvalidPayload      = errors.New("invalid payload")

	// Re-exported so callers only need this package's taxonomy.
	ErrClickDispatch = humanoid.ErrClickDispatch
	ErrTyping        = humanoid.ErrTyping
)

// ResolutionError is ErrElementNotFound with the diagnostics gathered while
// searching. The diagnostics are part of the message so they survive the
// trip through the response envelope.
type ResolutionError struct {
	Selector    schemas.Selector
	Diagnostics []string
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%s for selector %s", ErrElementNotFound, e.Selector)
	if len(e.Diagnostics) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(e.Diagnostics, "; ")
}

func (e *ResolutionError) Unwrap() error { return ErrElementNotFound }
