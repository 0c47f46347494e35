package slideshow

import "errors"

// Sentinel errors for slideshow operations.
var (
	// ErrNoEligibleFolder indicates no folder under the configured
	// root meets the photo-count threshold.
	ErrNoEligibleFolder = errors.New("no eligible photo folder")

	// ErrFolderNotFound indicates an explicitly requested folder is
	// not among the eligible folders.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrRefreshBusy indicates a manual selection collided with a
	// refresh already in flight. The caller should retry once the
	// current refresh settles.
	ErrRefreshBusy = errors.New("refresh already in progress")

	// ErrNotFound indicates a proxy lookup for an unknown entry or an
	// index outside the committed payload.
	ErrNotFound = errors.New("photo not found")
)

// IsRefreshBusy returns true if the error indicates a colliding refresh.
func IsRefreshBusy(err error) bool {
	return errors.Is(err, ErrRefreshBusy)
}

// IsNotFound returns true if the error indicates a missing photo,
// folder or entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrFolderNotFound)
}
