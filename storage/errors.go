package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned when a requested key does not exist.
	// Note: badger.ErrKeyNotFound is the error returned by the badger API;
	// modules in storage/badger and storage/badger/operation translate it
	// into ErrNotFound so callers never depend on the engine.
	ErrNotFound = errors.New("key not found")

	// ErrAlreadyExists is returned by insertions on a key that is already
	// populated.
	ErrAlreadyExists = errors.New("key already exists")
)
