package archive

import "errors"

// Error kinds surfaced by the facade. Callers match them with errors.Is;
// the wrapped message carries the specifics (names, paths, status text).
var (
	// ErrAuthentication means the identity service rejected the username
	// or the password.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotFound covers unknown projects, containers, object paths,
	// usernames, and directory prefixes matching nothing.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists means a create, upload, copy or move targeted a
	// name that is already taken and overwrite was not requested.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidArgument means a caller-supplied value (such as a size
	// unit) was not recognized.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDeletionFailed means an object delete did not converge within
	// the retry budget.
	ErrDeletionFailed = errors.New("deletion failed")

	// ErrAccessDenied is surfaced from the storage service when a call
	// fails due to insufficient permission.
	ErrAccessDenied = errors.New("access denied")

	// ErrRemoteService means a non-success response from the public
	// endpoint or an unexpected fault from a collaborator.
	ErrRemoteService = errors.New("remote service error")
)
