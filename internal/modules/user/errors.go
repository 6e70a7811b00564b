package user

import "errors"

var (
	ErrInternal           = errors.New("internal server error")
	ErrNoRefreshToken     = errors.New("no refresh token provided or found in cookies")
	ErrExpiredToken       = errors.New("token has expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrEmailExists        = errors.New("user with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("wrong email or password")
	ErrBadRequest         = errors.New("bad request")
)
