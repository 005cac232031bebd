// Package common defines shared constants and sentinel errors used across
// the server, the HTTP layer and the admin client. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Authentication errors. ErrBadCredentials is returned both for an
	// unknown username and for a wrong password.
	ErrBadCredentials  = errors.New("username / password incorrect")
	ErrAccountLocked   = errors.New("account locked")
	ErrAccountDisabled = errors.New("account disabled")

	// Identity validation errors.
	ErrUsernameExists   = errors.New("username already exists")
	ErrEmailExists      = errors.New("email already exists")
	ErrIdentityNotFound = errors.New("user not found")
	ErrEmailNotFound    = errors.New("no user found for email")
	ErrInvalidRole      = errors.New("invalid role")
	ErrNotImageFile     = errors.New("file is not an image file")

	// Authorization errors.
	ErrForbidden = errors.New("not enough permission")

	// Token errors.
	ErrTokenInvalid = errors.New("token cannot be verified")
	ErrTokenExpired = errors.New("token expired")

	// Collaborator errors.
	ErrMailDelivery = errors.New("mail delivery failed")
)
