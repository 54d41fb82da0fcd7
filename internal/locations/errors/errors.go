package errors

import "errors"

var (
	ErrNotFound      = errors.New("location not found")
	ErrSpaceNotFound = errors.New("space not found")
)
