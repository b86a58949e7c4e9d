package errors

import (
	"fmt"
	"strings"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *AppError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *AppError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// MissingField creates a validation error for a required field that was left empty.
func MissingField(fields ...string) *AppError {
	msg := "required field missing"
	if len(fields) == 1 {
		msg = fmt.Sprintf("%s is required", fields[0])
	} else if len(fields) > 1 {
		msg = fmt.Sprintf("%s are required", strings.Join(fields, ", "))
	}
	return New(ErrCodeValidation, msg).WithDetail("fields", fields)
}

// ProviderFailed creates an identity provider error
func ProviderFailed(op string, err error) *AppError {
	return Wrap(err, ErrCodeProvider, fmt.Sprintf("identity provider failed: %s", op)).
		WithDetail("operation", op)
}

// SubscriptionFailed creates an error for a live subscription that delivered an error instead of a snapshot.
func SubscriptionFailed(collection string, err error) *AppError {
	return Wrap(err, ErrCodeSubscription, fmt.Sprintf("subscription to %s failed", collection)).
		WithDetail("collection", collection)
}

// MutationFailed creates an error for a rejected add or delete.
func MutationFailed(op, collection string, err error) *AppError {
	return Wrap(err, ErrCodeMutation, fmt.Sprintf("%s on %s failed", op, collection)).
		WithDetail("operation", op).
		WithDetail("collection", collection)
}

// PermissionDenied creates an error for an operation that requires admin mode.
func PermissionDenied(op string) *AppError {
	return New(ErrCodePermissionDenied, fmt.Sprintf("%s requires admin mode", op)).
		WithDetail("operation", op)
}

// NotFound creates a document not found error
func NotFound(collection, id string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("document '%s' not found in %s", id, collection)).
		WithDetail("collection", collection).
		WithDetail("id", id)
}

// InvalidPath creates an error for a malformed collection path
func InvalidPath(path, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid collection path %q: %s", path, reason)).
		WithDetail("path", path)
}

// StoreClosed creates an error for an operation on a closed store
func StoreClosed() *AppError {
	return New(ErrCodeStoreClosed, "document store is closed")
}

// DaemonNotFound creates an error for a store daemon that is not running
func DaemonNotFound(socket string) *AppError {
	return New(ErrCodeDaemonNotFound, "store daemon is not running").
		WithDetail("socket", socket)
}

// DaemonRunning creates an error for a second daemon started on the same pidfile
func DaemonRunning(pid int) *AppError {
	return New(ErrCodeDaemonRunning, fmt.Sprintf("store daemon already running with PID %d", pid)).
		WithDetail("pid", pid)
}
