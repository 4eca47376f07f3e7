package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAdminNotFound      = errors.New("admin_not_found")
	ErrAdminExists        = errors.New("admin_already_exists")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidSession     = errors.New("invalid_session")
	ErrForbidden          = errors.New("forbidden")
	ErrSessionSecret      = errors.New("session_secret_required")
)
