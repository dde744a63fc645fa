package engine

import "fmt"

// Guard runs fn and converts a panic raised by the backend into an error
// wrapping kind.
func Guard(kind error, op string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in %s: %v: %w", op, rec, kind)
		}
	}()
	return fn()
}

// GuardValue is Guard for operations that return a value.
func GuardValue[T any](kind error, op string, fn func() (T, error)) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			v = zero
			err = fmt.Errorf("panic in %s: %v: %w", op, rec, kind)
		}
	}()
	return fn()
}
