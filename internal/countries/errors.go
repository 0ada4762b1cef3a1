package countries

import "errors"

var (
	ErrNotFound        = errors.New("country not found")
	ErrInvalidCategory = errors.New("invalid rule category")
)
