package service

import "errors"

var (
	ErrMissingInputs    = errors.New("title and file are required")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEmptyComment     = errors.New("comment is empty")
	ErrBadImageURL      = errors.New("cannot derive object key from image url")
	ErrImageNotInView   = errors.New("image is not in the current gallery")
	ErrLikesDisabled    = errors.New("likes are disabled")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserSuspended      = errors.New("user suspended")
	ErrEmailUnverified    = errors.New("email address not verified")
)
