package lookup

import (
	"errors"
	"fmt"

	"github.com/roach88/tokencid/internal/store"
)

// ErrNotFound is returned by Get when no record has the identifier.
var ErrNotFound = store.ErrNotFound

// ErrTimeout is returned when the store does not answer within
// Config.Timeout.
var ErrTimeout = errors.New("lookup: store timeout")

// ValidationError rejects a request before the store is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
