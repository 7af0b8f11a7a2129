package scans

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrImageRequired       = errors.New("image is required")
	ErrUpstreamUnavailable = errors.New("AI service temporarily unavailable")
	ErrNotFound            = errors.New("scan not found")
)
