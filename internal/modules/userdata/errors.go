package userdata

import "errors"

var (
	ErrNotAuthenticated = errors.New("no authenticated user")
	ErrUnknownSection   = errors.New("unknown user record section")
	ErrInvalidSection   = errors.New("section data does not match the record schema")
	ErrNilRecord        = errors.New("user record is nil")
	ErrBadDonationDate  = errors.New("donation needs a YYYY-MM-DD date or a timestamp")
	ErrInternal         = errors.New("user data internal error")
)
