package apperr

import "errors"

var (
	ErrMissingToken      = errors.New("no authentication token provided")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrNotInOrganization = errors.New("user not in any organization")
	ErrBadRequest        = errors.New("bad request")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrInternal          = errors.New("internal error")
	ErrRateLimited       = errors.New("rate limited")
)
