package qbank

import "errors"

// Failure taxonomy for the storage engine.
//
// Fatal classes (ErrSeedFailure, ErrNotInitialized) block app entry and are
// surfaced to the caller. Recovered classes are logged and never interrupt
// the user: a failed snapshot save costs only the skip-reseed optimization,
// and a failed remote push leaves the attempt queued locally.
var (
	// ErrSeedFailure means decrypt+replay produced no usable question data.
	ErrSeedFailure = errors.New("seed produced no usable question data")

	// ErrNotInitialized is returned when the store is used before a
	// successful Initialize.
	ErrNotInitialized = errors.New("store is not initialized")

	// ErrSnapshotLoad marks a durable snapshot that could not be read or
	// deserialized. Callers recover by reseeding from the bundled asset.
	ErrSnapshotLoad = errors.New("snapshot could not be loaded")

	// ErrNoSession indicates a remote operation was requested without a
	// signed-in user. Sync passes treat this as a normal skip.
	ErrNoSession = errors.New("no active session")
)
