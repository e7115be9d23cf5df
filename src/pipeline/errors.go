package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedBroker = errors.New("unsupported broker")
	ErrNoTradesFound     = errors.New("no trades found")
	ErrRowProcessing     = errors.New("row processing failed")
)

// RowProcessingError aborts an import on the first row that could not be
// mapped, coerced or validated. It matches both ErrRowProcessing and the
// underlying cause.
type RowProcessingError struct {
	Row int // 1-based data row index
	Err error
}

func (e *RowProcessingError) Error() string {
	return fmt.Sprintf("%v at row %d: %v", ErrRowProcessing, e.Row, e.Err)
}

func (e *RowProcessingError) Unwrap() []error {
	return []error{ErrRowProcessing, e.Err}
}
