package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// Domain error kinds returned by the portal services.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("resource not found")
	ErrMissingPayload      = errors.New("submission file is required")
	ErrPayloadTooLarge     = errors.New("file exceeds maximum allowed size")
	ErrUnsupportedFileType = errors.New("file type not allowed")
	ErrUnauthorized        = errors.New("not allowed to access this resource")
	ErrSubmissionClosed    = errors.New("assignment is not accepting submissions")
	ErrAggregationFailure  = errors.New("aggregation failed")
	ErrTimeout             = errors.New("operation timed out")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailTaken          = errors.New("email already registered")
	ErrEvaluationDisabled  = errors.New("automatic evaluation is disabled")
)

// OperationError ties a domain kind to the collaborator failure behind it so
// callers can match the kind with errors.Is while logs keep the cause.
type OperationError struct {
	Op    string
	Kind  error
	Cause error
}

func (e *OperationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Cause)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *OperationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// wrapRead converts a collaborator failure during a read into a domain error.
// Deadline expiry becomes ErrTimeout, missing rows ErrNotFound, and anything
// else ErrAggregationFailure.
func wrapRead(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return &OperationError{Op: op, Kind: classify(err, ErrAggregationFailure), Cause: err}
}

// wrapWrite is wrapRead for write paths; unexpected failures keep their cause
// without a domain kind.
func wrapWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	kind := classify(err, nil)
	if kind == nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &OperationError{Op: op, Kind: kind, Cause: err}
}

func classify(err, fallback error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return fallback
	}
}

func isDomainError(err error) bool {
	for _, kind := range []error{
		ErrInvalidArgument, ErrNotFound, ErrMissingPayload, ErrPayloadTooLarge, ErrUnsupportedFileType,
		ErrUnauthorized, ErrSubmissionClosed, ErrAggregationFailure, ErrTimeout,
		ErrInvalidCredentials, ErrEmailTaken, ErrEvaluationDisabled,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// ParseID validates a raw identifier: it must be a non-empty, positive
// base-10 integer.
func ParseID(raw string) (uint, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("%w: identifier is empty", ErrInvalidArgument)
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("%w: identifier %q is not numeric", ErrInvalidArgument, raw)
	}
	return uint(parsed), nil
}

func requireID(name string, id uint) error {
	if id == 0 {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
	}
	return nil
}
