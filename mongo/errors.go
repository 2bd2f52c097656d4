package mongo

import "errors"

var (
	// ErrDatabaseRequired is returned when a nil database handle is provided.
	ErrDatabaseRequired = errors.New("bus mongo: database is required")
	// ErrStoreRequired is returned when a nil store is provided.
	ErrStoreRequired = errors.New("bus mongo: store is required")
	// ErrCleanupBeforeRequired is returned when the cleanup cutoff is missing.
	ErrCleanupBeforeRequired = errors.New("bus mongo: cleanup before time is required")
	// ErrCleanupLimitInvalid is returned when the cleanup limit is negative.
	ErrCleanupLimitInvalid = errors.New("bus mongo: cleanup limit must be non-negative")
	// ErrCleanupRetentionInvalid is returned when cleanup retention is not positive.
	ErrCleanupRetentionInvalid = errors.New("bus mongo: cleanup retention must be positive")
)
