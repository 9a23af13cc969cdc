package models

import "errors"

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrRemoteRejected    = errors.New("remote rejected")
	ErrMalformedRecord   = errors.New("malformed record")
)
