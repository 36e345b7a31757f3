package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrBackendOffline indicates the reading backend is unreachable
	ErrBackendOffline = errors.New("backend is unreachable")

	// ErrBackendRejected indicates the backend refused the request
	ErrBackendRejected = errors.New("backend rejected the request")

	// ErrNoDocument indicates an operation needs loaded text
	ErrNoDocument = errors.New("no document loaded")

	// ErrFeatureLocked indicates the user's plan does not include a feature
	ErrFeatureLocked = errors.New("feature requires an upgraded plan")

	// ErrNotSignedIn indicates an operation needs a user identity
	ErrNotSignedIn = errors.New("not signed in")

	// ErrSynthesisFailed indicates audio could not be produced or started
	ErrSynthesisFailed = errors.New("failed to generate audio")

	// ErrUnsupportedFile indicates an upload that is neither PDF nor text
	ErrUnsupportedFile = errors.New("only .pdf and .txt files are supported")
)
