package awsutil

import (
	"errors"
	"fmt"
)

// Chunk splits items into consecutive batches of at most size elements.
// A non-positive size yields a single batch.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}

// BatchError is the failure of one batch of a chunked call. Items are the
// identifiers sent in that batch.
type BatchError struct {
	Index int
	Items []string
	Err   error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (%d items): %v", e.Index, len(e.Items), e.Err)
}

// Unwrap returns the underlying call error.
func (e *BatchError) Unwrap() error {
	return e.Err
}

// BatchErrors splits an error returned by a chunked call into its per-batch
// failures. An error that is not a join of batch errors comes back as the
// only element.
func BatchErrors(err error) []error {
	if err == nil {
		return nil
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}

	var out []error
	for _, e := range joined.Unwrap() {
		var be *BatchError
		if errors.As(e, &be) {
			out = append(out, be)
			continue
		}
		out = append(out, e)
	}
	return out
}
