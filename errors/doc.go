// Package errors provides unified error handling for the service.
// It implements structured error types with machine-readable codes, HTTP
// status mapping, and retryable detection. Every HTTP error body the service
// produces is an ErrorResponse derived from an AppError.
package errors
