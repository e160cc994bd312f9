package ai

import "errors"

// Sentinel errors for AI provider operations.
var (
	ErrDisabled    = errors.New("ai: provider not configured")
	ErrRateLimited = errors.New("ai: rate limited by provider")
	ErrBadRequest  = errors.New("ai: bad request")
	ErrServer      = errors.New("ai: provider error")
	ErrBadResponse = errors.New("ai: malformed provider response")
)
