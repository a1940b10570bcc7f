package codec

import (
	"errors"
	"fmt"
)

// ErrMalformedMessage is returned for any frame that does not decode into a
// message. Callers check it with errors.Is.
var ErrMalformedMessage = errors.New("malformed message")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}
