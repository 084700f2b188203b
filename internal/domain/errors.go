package domain

import "errors"

var (
	ErrOutOfRange       = errors.New("checkbox index out of range")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrInvalidSnapshot  = errors.New("invalid snapshot")
	ErrRegistryStopped  = errors.New("connection registry stopped")
	ErrUnknownBackend   = errors.New("unknown state backend")
)
