package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Pipeline error classes. Each typed error below matches one of these with errors.Is.
var (
	ErrChunking   = errors.New("chunking failed")
	ErrCompletion = errors.New("completion failed")
	ErrParse      = errors.New("parse failed")
	ErrExport     = errors.New("export failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ChunkingError is never produced today: splitting is total over its input.
type ChunkingError struct {
	Err error
}

func (e *ChunkingError) Error() string { return fmt.Sprintf("chunking: %v", e.Err) }
func (e *ChunkingError) Unwrap() error { return e.Err }
func (e *ChunkingError) Is(target error) bool {
	return target == ErrChunking
}

// CompletionError reports a failed or timed-out model call for one chunk.
type CompletionError struct {
	Chunk int
	Err   error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion for chunk %d: %v", e.Chunk, e.Err)
}
func (e *CompletionError) Unwrap() error { return e.Err }
func (e *CompletionError) Is(target error) bool {
	return target == ErrCompletion
}

// ParseError reports a model payload that is not usable JSON.
// Chunk is -1 when the error is raised outside of a run.
type ParseError struct {
	Chunk  int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "parse"
	if e.Chunk >= 0 {
		msg = fmt.Sprintf("parse chunk %d", e.Chunk)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", msg, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", msg, e.Reason)
}
func (e *ParseError) Unwrap() error { return e.Err }
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// ExportError reports that accumulated records could not be serialized.
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string { return fmt.Sprintf("export: %v", e.Err) }
func (e *ExportError) Unwrap() error { return e.Err }
func (e *ExportError) Is(target error) bool {
	return target == ErrExport
}
