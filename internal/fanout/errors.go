package fanout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lyricgen/lyricgen/internal/model"
)

// ErrInvalidCount rejects a unit count that is not a positive integer.
var ErrInvalidCount = errors.New("count must be a positive integer")

// DefaultMaxCount is the batch ceiling used when Options.MaxCount is zero.
const DefaultMaxCount = 1000

// CheckCount rejects counts outside [1, limit]. A zero limit means
// DefaultMaxCount.
func CheckCount(n, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxCount
	}
	if n < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidCount, n)
	}
	if n > limit {
		return fmt.Errorf("%w: got %d, at most %d per batch", ErrInvalidCount, n, limit)
	}
	return nil
}

// ParseCount parses operator input for the number of request units.
func ParseCount(input string) (int, error) {
	trimmed := strings.TrimSpace(input)
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidCount, input)
	}
	return n, nil
}

// UnitError is the first remote call failure observed in a batch.
type UnitError struct {
	Index       int
	Temperature float64
	Reason      string
}

func newUnitError(res model.CompletionResult) *UnitError {
	return &UnitError{Index: res.Index, Temperature: res.Temperature, Reason: res.FailureReason}
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("request unit %d (temperature %.1f) failed: %s", e.Index+1, e.Temperature, e.Reason)
}
