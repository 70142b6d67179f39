package repositories

import "errors"

type notFounder interface{ IsNotFound() bool }
type conflicter interface{ IsConflict() bool }
type unavailabler interface{ IsUnavailable() bool }

// IsNotFound reports whether err represents a missing record.
func IsNotFound(err error) bool {
	var target notFounder
	return errors.As(err, &target) && target.IsNotFound()
}

// IsConflict reports whether err represents a uniqueness or contention failure.
func IsConflict(err error) bool {
	var target conflicter
	return errors.As(err, &target) && target.IsConflict()
}

// IsUnavailable reports whether err represents a transient backend outage.
func IsUnavailable(err error) bool {
	var target unavailabler
	return errors.As(err, &target) && target.IsUnavailable()
}
