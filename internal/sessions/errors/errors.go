package errors

import "errors"

var (
	ErrNotFound = errors.New("parking session not found")
)
