package librarymodule

import "errors"

var (
	// ErrInvalidRoot marks a library root that is missing, not a
	// directory, or outside the configured base directory.
	ErrInvalidRoot = errors.New("invalid library root")

	// ErrRootOverlap marks a library root nested inside, or containing,
	// another registered root.
	ErrRootOverlap = errors.New("library root overlaps another library")

	// ErrLibraryNotFound marks an operation against a library that does
	// not exist (or no longer exists).
	ErrLibraryNotFound = errors.New("library not found")

	// ErrScanAlreadyRunning is the guard rejection for starting a scan on
	// a library that is already scanning. It is not a fault.
	ErrScanAlreadyRunning = errors.New("scan already running")
)
