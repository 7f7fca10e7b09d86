package batch

import (
	"errors"
	"fmt"
	"io"
)

// ByCount pulls items from [next] until it returns [io.EOF] and passes them to [yield] in groups of at most [size].
func ByCount[T any](size int, next func() (T, error), yield func([]T) error) error {
	if size <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", size)
	}

	buffer := make([]T, 0, size)
	for {
		item, err := next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return err
		}

		buffer = append(buffer, item)
		if len(buffer) == size {
			if err = yield(buffer); err != nil {
				return err
			}
			buffer = make([]T, 0, size)
		}
	}

	if len(buffer) > 0 {
		return yield(buffer)
	}

	return nil
}
