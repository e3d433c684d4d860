package domain

import "errors"

var (
	ErrInvalidSymbol      = errors.New("invalid symbol")
	ErrMissingCredentials = errors.New("missing api credentials")
	ErrUnrecognizedAction = errors.New("unrecognized action")
	ErrDuplicateAlert     = errors.New("duplicate alert")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("rate limited")
	ErrNotFound           = errors.New("not found")
	ErrStoreDisabled      = errors.New("store disabled")
)
