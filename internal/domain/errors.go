package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// StorageUnavailableError means the backing medium could not be read or written.
type StorageUnavailableError struct {
	Op  string // "read" or "write"
	Err error
}

func (e StorageUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage unavailable (%s)", e.Op)
	}
	return fmt.Sprintf("storage unavailable (%s): %v", e.Op, e.Err)
}

func (e StorageUnavailableError) Unwrap() error { return e.Err }

func (e StorageUnavailableError) Is(target error) bool {
	_, ok := target.(StorageUnavailableError)
	if ok {
		return true
	}
	_, ok = target.(*StorageUnavailableError)
	return ok
}

// CorruptFormatError means the stored content is not a valid record sequence.
type CorruptFormatError struct {
	Err error
}

func (e CorruptFormatError) Error() string {
	if e.Err == nil {
		return "corrupt registry format"
	}
	return fmt.Sprintf("corrupt registry format: %v", e.Err)
}

func (e CorruptFormatError) Unwrap() error { return e.Err }

func (e CorruptFormatError) Is(target error) bool {
	_, ok := target.(CorruptFormatError)
	if ok {
		return true
	}
	_, ok = target.(*CorruptFormatError)
	return ok
}

// ConflictError rejects a write whose precondition no longer holds.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string {
	if e.Reason == "" {
		return "conflict"
	}
	return fmt.Sprintf("conflict: %s", e.Reason)
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

// SearchUnavailableError is returned by the endpoint search collaborator when it
// fails or answers without a recognizable result envelope.
type SearchUnavailableError struct {
	Reason string
}

func (e SearchUnavailableError) Error() string {
	if e.Reason == "" {
		return "search unavailable"
	}
	return fmt.Sprintf("search unavailable: %s", e.Reason)
}

func (e SearchUnavailableError) Is(target error) bool {
	_, ok := target.(SearchUnavailableError)
	if ok {
		return true
	}
	_, ok = target.(*SearchUnavailableError)
	return ok
}

// InvalidRecordError rejects malformed input before it reaches a store.
type InvalidRecordError struct {
	Reason string
}

func (e InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record: %s", e.Reason)
}

func (e InvalidRecordError) Is(target error) bool {
	_, ok := target.(InvalidRecordError)
	if ok {
		return true
	}
	_, ok = target.(*InvalidRecordError)
	return ok
}

var (
	ErrNotFound           = NotFoundError{}
	ErrStorageUnavailable = StorageUnavailableError{}
	ErrCorruptFormat      = CorruptFormatError{}
	ErrConflict           = ConflictError{}
	ErrSearchUnavailable  = SearchUnavailableError{}
	ErrInvalidRecord      = InvalidRecordError{}
)
