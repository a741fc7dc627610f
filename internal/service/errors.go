package service

import "errors"

var (
	ErrValidation         = errors.New("email and password are required")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("user not found")
	ErrInternal           = errors.New("internal error")
)
