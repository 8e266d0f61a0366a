package versequiz

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a book, chapter or user row does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoMatch indicates a bulk edit filter selected no chapters
	ErrNoMatch = errors.New("no chapters matched")
	// ErrInsufficientContent indicates there is nothing eligible to draw
	ErrInsufficientContent = errors.New("insufficient content enabled")
	// ErrNoActiveQuestion indicates an answer was submitted with nothing drawn
	ErrNoActiveQuestion = errors.New("no active question")
)

// NotFoundError represents a missing corpus or store entity
type NotFoundError struct {
	Resource string // e.g. "book", "chapter"
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// InvalidRangeError is returned when a bulk edit chapter range is malformed
type InvalidRangeError struct {
	Book   string
	From   int
	To     int
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid chapter range %d-%d for %s: %s", e.From, e.To, e.Book, e.Reason)
}

func (e *InvalidRangeError) Unwrap() error {
	return ErrInvalidInput
}

// NoMatchError is returned when a bulk edit filter matched zero chapters
type NoMatchError struct {
	Book string
	From int
	To   int
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no chapters of %s in %d-%d matched the rarity filter", e.Book, e.From, e.To)
}

func (e *NoMatchError) Unwrap() error {
	return ErrNoMatch
}

// EmptyPopulationError is returned when a draw is attempted with no eligible chapters
type EmptyPopulationError struct{}

func (e *EmptyPopulationError) Error() string {
	return "weighted population is empty"
}

func (e *EmptyPopulationError) Unwrap() error {
	return ErrInsufficientContent
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
