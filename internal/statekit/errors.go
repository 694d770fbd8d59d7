package statekit

import "errors"

var (
	// ErrKeyNotFound indicates no value is stored under the requested key.
	ErrKeyNotFound = errors.New("state_store.key_not_found")
	// ErrEmptyKey indicates that the provided storage key is empty.
	ErrEmptyKey = errors.New("state_store.empty_key")
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("state_store.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("state_store.empty_database_url")
	errSQLiteEmptyPath     = errors.New("state_store.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("state_store.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("state_store.unsupported_no_scheme")
)
