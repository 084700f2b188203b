package domain

import "time"

// Admission is the outcome of a rate limit check for one request.
type Admission struct {
	Allowed bool
	// Count is the number of admitted requests in the current window.
	Count int
	// RetryAfter is the remaining window duration when Allowed is false.
	RetryAfter time.Duration
}

// Admitter decides whether a mutating request from the given client key may proceed.
type Admitter interface {
	Admit(key string) Admission
}
