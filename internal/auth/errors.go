package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidSignature is returned when a token is malformed, signed with
	// another key or algorithm, or carries unusable claims.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrExpired is returned when a correctly signed token is past its expiry.
	ErrExpired = errors.New("token expired")

	// ErrConfig is returned for unusable secrets, lifetimes or hash cost.
	ErrConfig = errors.New("invalid auth config")

	// ErrPasswordTooLong is returned when a password exceeds what bcrypt can hash.
	ErrPasswordTooLong = bcrypt.ErrPasswordTooLong
)
