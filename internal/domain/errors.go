package domain

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeInternal   ErrorType = "internal"
)

type Error struct {
	Type    ErrorType
	Message string
	Details map[string]interface{}
}

func (e Error) Error() string {
	return e.Message
}

func NewValidationError(message string, details map[string]interface{}) Error {
	return Error{Type: ErrorTypeValidation, Message: message, Details: details}
}

func NewStorageError(op string, err error) Error {
	return Error{
		Type:    ErrorTypeStorage,
		Message: fmt.Sprintf("store %s: %v", op, err),
		Details: map[string]interface{}{"op": op, "error": err.Error()},
	}
}

var (
	ErrStoreConflict   = errors.New("store location already holds records")
	ErrClosed          = errors.New("store is closed")
	ErrNotFound        = errors.New("record not found")
	ErrOpNotRegistered = errors.New("operation not registered")
	ErrAlreadyRunning  = errors.New("run already in progress")
)

func IsStoreConflict(err error) bool {
	return errors.Is(err, ErrStoreConflict)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsOpNotRegistered(err error) bool {
	return errors.Is(err, ErrOpNotRegistered)
}

func IsValidation(err error) bool {
	var domainErr Error
	return errors.As(err, &domainErr) && domainErr.Type == ErrorTypeValidation
}
