package domain

import "errors"

// Every service operation either returns its documented value or fails with
// exactly one of these. The API layer maps them to status codes.
var (
	ErrValidation   = errors.New("required field is missing or blank")
	ErrConflict     = errors.New("user with email or username already exists")
	ErrNotFound     = errors.New("user does not exist")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)
