package domain

import "errors"

// ErrConfiguration signals missing or unusable service credentials. Fatal;
// surfaced once at startup.
var ErrConfiguration = errors.New("reasoning service not configured")

// ErrRateLimited signals a transient reasoning-service rate limit. The
// learner may retry the same action.
var ErrRateLimited = errors.New("reasoning service rate limited")

// ErrUnauthorized signals rejected credentials. Fatal to the session.
var ErrUnauthorized = errors.New("reasoning service unauthorized")

// ErrStrategyNotFound is returned on a registry miss. It is a configuration
// or programming error and is never silently defaulted.
var ErrStrategyNotFound = errors.New("strategy not found")

// ErrProjectNotFound is returned by stores when a project does not exist.
// The context accumulator degrades instead of propagating it.
var ErrProjectNotFound = errors.New("project not found")

// ErrInvalidTransition is returned when a convergence action is not legal
// from the session's current stage. The stage is left unchanged.
var ErrInvalidTransition = errors.New("invalid convergence transition")

// ErrAlreadyLocked is returned when a session tries to lock a second
// artifact without an intervening reset.
var ErrAlreadyLocked = errors.New("artifact already locked")
