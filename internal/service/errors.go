package service

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrGroupNotFound        = errors.New("group not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: email already exists")
	ErrWeakPassword         = errors.New("password is too weak")
	ErrInvalidInput         = errors.New("invalid input")
	ErrEmptyMessage         = errors.New("message must contain text, an image or a file")
	ErrBlocked              = errors.New("you have been blocked by this user")
	ErrForbidden            = errors.New("operation not permitted")
	ErrNotGroupMember       = errors.New("user is not a member of this group")
	ErrNotGroupAdmin        = errors.New("user is not an admin of this group")
	ErrInternalServer       = errors.New("internal server error")
)
