package auth

import "errors"

var (
	// ErrUnauthenticated means no identity could be resolved for the caller.
	ErrUnauthenticated = errors.New("unauthorized")
	// ErrForbidden means the identity lacks the capability for the action.
	ErrForbidden = errors.New("forbidden")
	// ErrNoHousehold means the caller is signed in but has not joined or created a household.
	ErrNoHousehold = errors.New("no household")
)
