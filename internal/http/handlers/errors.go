// Package handlers – HTTP-layer error codes.
//
// Codes are lowercase snake_case and stable: callers branch on them, so they
// are part of the contract even though the only regular caller is the
// gateway's webhook dispatcher.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
)
