package errx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// BadgerErrorMessage describes embedded store failures.
	BadgerErrorMessage = "badger operation failed"
	// UpstreamErrorMessage describes failures of external data sources.
	UpstreamErrorMessage = "upstream request failed"
)

var (
	// ErrEmptyThreadID is returned when a turn or store call has no thread identifier.
	ErrEmptyThreadID = errors.New("thread id is empty")
	// ErrLogShrunk is returned when a save would drop already persisted messages.
	ErrLogShrunk = errors.New("conversation log is shorter than the persisted log")
	// ErrNoCachedData is returned when a dataset refresh fails and nothing was cached before.
	ErrNoCachedData = errors.New("no cached data available")
)

// Error wraps an underlying error with an HTTP-like status and safe message.
type Error struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the provided information.
func New(err error, status int, message string) *Error {
	return &Error{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// WrapRedis maps Redis errors to the unified Error type with appropriate status codes.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	}
	return New(err, http.StatusBadGateway, RedisErrorMessage)
}

// WrapBadger maps BadgerDB errors to the unified Error type.
func WrapBadger(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return New(err, http.StatusNotFound, BadgerErrorMessage)
	}
	return New(err, http.StatusInternalServerError, BadgerErrorMessage)
}

// WrapUpstream tags a failed call to an external data source with the
// upstream HTTP status (0 when the request never got a response).
func WrapUpstream(err error, status int) error {
	if err == nil {
		return nil
	}
	if status == 0 {
		status = http.StatusBadGateway
	}
	return New(err, status, UpstreamErrorMessage)
}

// StatusOf returns the status carried by the first *Error in the chain, or 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
