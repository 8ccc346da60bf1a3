package client

import "errors"

var (
	ErrBackendDown  = errors.New("backend is unavailable")
	ErrUnauthorized = errors.New("agent token rejected")
	ErrNotFound     = errors.New("not found")
	ErrRejected     = errors.New("request rejected by backend")
	ErrBadResponse  = errors.New("malformed backend response")
)
