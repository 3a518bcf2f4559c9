package subscription

// Transform maps a value for one listener. Returning false skips the value;
// returning an error ends the listener.
type Transform[T any] func(T) (T, bool, error)

// Chain composes transforms left to right. Nil entries are ignored.
func Chain[T any](ts ...Transform[T]) Transform[T] {
	var steps []Transform[T]
	for _, t := range ts {
		if t != nil {
			steps = append(steps, t)
		}
	}
	switch len(steps) {
	case 0:
		return nil
	case 1:
		return steps[0]
	}
	return func(v T) (T, bool, error) {
		for _, step := range steps {
			var keep bool
			var err error
			v, keep, err = step(v)
			if err != nil || !keep {
				return v, keep, err
			}
		}
		return v, true, nil
	}
}

// Map rewrites every value.
func Map[T any](fn func(T) T) Transform[T] {
	return func(v T) (T, bool, error) {
		return fn(v), true, nil
	}
}

// Filter passes only values for which keep returns true.
func Filter[T any](keep func(T) bool) Transform[T] {
	return func(v T) (T, bool, error) {
		return v, keep(v), nil
	}
}

// Validate ends the listener with the error returned by check.
func Validate[T any](check func(T) error) Transform[T] {
	return func(v T) (T, bool, error) {
		if err := check(v); err != nil {
			return v, false, err
		}
		return v, true, nil
	}
}

// Distinct skips values equal to the previous one. The returned transform
// is stateful; create one per listener.
func Distinct[T comparable]() Transform[T] {
	var last T
	seen := false
	return func(v T) (T, bool, error) {
		if seen && v == last {
			return v, false, nil
		}
		last, seen = v, true
		return v, true, nil
	}
}
