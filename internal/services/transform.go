package services

// transformResult applies fn to every entity in order. Single results go through as a
// sequence of one so there is only one code path for both shapes.
func transformResult[T any](entities []T, fn func(T) (T, error)) ([]T, error) {
	out := make([]T, 0, len(entities))
	for _, e := range entities {
		t, err := fn(e)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
