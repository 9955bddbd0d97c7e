package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
)

// AppError is the service-wide error carrier: a stable id for logs and
// clients, a gRPC code for the transport boundary and an optional
// wrapped cause.
type AppError struct {
	Id            string     `json:"id"`
	DetailedError string     `json:"detail"`
	StatusCode    codes.Code `json:"-"`
	cause         error
}

type Option func(*AppError)

func WithID(id string) Option {
	return func(e *AppError) { e.Id = id }
}

func WithCause(cause error) Option {
	return func(e *AppError) { e.cause = cause }
}

func WithCode(code codes.Code) Option {
	return func(e *AppError) { e.StatusCode = code }
}

func New(msg string, opts ...Option) error {
	e := &AppError{
		Id:            "app.process.error",
		DetailedError: msg,
		StatusCode:    codes.Unknown,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Internal(msg string, opts ...Option) error {
	return New(msg, append([]Option{WithID("app.process.internal"), WithCode(codes.Internal)}, opts...)...)
}

func NotFound(msg string, opts ...Option) error {
	return New(msg, append([]Option{WithID("app.process.not_found"), WithCode(codes.NotFound)}, opts...)...)
}

func InvalidArgument(msg string, opts ...Option) error {
	return New(msg, append([]Option{WithID("app.process.bad_args"), WithCode(codes.InvalidArgument)}, opts...)...)
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Id, e.StatusCode, e.DetailedError, e.cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Id, e.StatusCode, e.DetailedError)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Code extracts the gRPC code carried by err, or Unknown.
func Code(err error) codes.Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return codes.Unknown
}

// Details returns the detailed message of err when it is an AppError,
// otherwise err.Error().
func Details(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.DetailedError
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Stdlib passthroughs so callers do not need a second errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
