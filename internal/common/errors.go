// Package common defines shared sentinel errors used across the cache,
// storage and synchronization layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// ErrStorageUnavailable means the host cannot provide a persistent
	// local store at all. Fatal to the cache subsystem.
	ErrStorageUnavailable = errors.New("local storage unavailable")

	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOperation is returned when a queue item carries an
	// operation outside create/update/delete.
	ErrInvalidOperation = errors.New("invalid operation")
)
