package errx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// Kind classifies failures along the assistant's error taxonomy.
type Kind string

const (
	KindSystem       Kind = "system"
	KindInvalidInput Kind = "invalid_input"
	KindScope        Kind = "scope"
	KindTool         Kind = "tool"
	KindProvider     Kind = "provider"
	KindRouting      Kind = "routing"
	KindGuardrail    Kind = "guardrail"
	KindRedis        Kind = "redis"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage is used when a key is missing.
	RedisNotFoundMessage = "redis key not found"

	// ApologyMessage is returned to users once every recovery path is exhausted.
	ApologyMessage = "I'm sorry, I'm having trouble answering right now. Please try again in a moment."
	// TimeoutMessage is returned when a request runs past its deadline.
	TimeoutMessage = "I'm sorry, that took longer than expected. Please try asking again, or make your question a little more specific."
	// EmptyMessage is returned for blank chat input.
	EmptyMessage = "Message cannot be empty. Please tell me which refrigerator or dishwasher part you need help with."
)

// AppError wraps an underlying error with an HTTP status, a kind and a safe message.
type AppError struct {
	Err     error
	Kind    Kind
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Kind:    KindSystem,
		Status:  status,
		Message: message,
	}
}

func newKind(kind Kind, err error, status int, message string) *AppError {
	return &AppError{Err: err, Kind: kind, Status: status, Message: message}
}

// InvalidInput rejects caller input before any work is done.
func InvalidInput(message string) *AppError {
	return newKind(KindInvalidInput, nil, http.StatusBadRequest, message)
}

// Tool marks a tool lookup failure. These are fed back to the model, never to the user.
func Tool(err error, message string) *AppError {
	return newKind(KindTool, err, http.StatusUnprocessableEntity, message)
}

// Provider marks an LLM call that failed after retry and fallback.
func Provider(err error) *AppError {
	return newKind(KindProvider, err, http.StatusBadGateway, "llm provider unavailable")
}

// Routing marks a triage failure.
func Routing(err error) *AppError {
	return newKind(KindRouting, err, http.StatusInternalServerError, "query routing failed")
}

// Guardrail marks a failed answer evaluation.
func Guardrail(err error) *AppError {
	return newKind(KindGuardrail, err, http.StatusInternalServerError, "guardrail evaluation failed")
}

// WrapRedis maps Redis errors to AppError with appropriate status codes.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return newKind(KindRedis, err, http.StatusNotFound, RedisNotFoundMessage)
	}
	return newKind(KindRedis, err, http.StatusBadGateway, RedisErrorMessage)
}

// KindOf returns the kind of the first AppError in the chain, or KindSystem.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != "" {
		return appErr.Kind
	}
	return KindSystem
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
