// Package errors provides custom error types and definitions for the application.
//
//nolint:lll
package errors

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 403, 404 or 413, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX
// If you notice there's a gap (say, error code 40010, 40011 and 40013 exist, 40012 is missing) DON'T fill in the gap,
// that code was used in the past for some error (not anymore) and shouldn't be reused.
// There's no correlation between Code and HTTP Status,
// for example the fact that Code 40404 returns HTTP Status 404 Not Found is just a coincidence
var (
	// Validation errors (400)
	ErrMalformedBody        = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid JSON request body")}
	ErrMalformedURLParam    = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid URL parameter")}
	ErrStorageInvalidObject = Error{Code: 40024, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid storage object or parameters")}
	ErrInvalidData          = Error{Code: 40037, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid data provided")}
	ErrNoFilePart           = Error{Code: 40040, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("No file part")}
	ErrNoFileSelected       = Error{Code: 40041, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("No file selected")}
	ErrFileTypeNotAllowed   = Error{Code: 40042, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("File type not allowed")}
	ErrStorageClientError   = Error{Code: 40043, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("storage client error")}
	ErrInvalidWebhookSig    = Error{Code: 40044, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("Invalid signature"), LogLevel: "info"}
	ErrInvalidWebhookBody   = Error{Code: 40045, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("Invalid payload"), LogLevel: "info"}

	// Payment provider rejections (403)
	ErrPaymentRejected = Error{Code: 40301, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("payment provider rejected the request"), LogLevel: "info"}

	// Not found errors (404)
	ErrCustomerNotFound = Error{Code: 40401, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("customer not found")}
	ErrPaymentNotFound  = Error{Code: 40402, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("payment not found")}
	ErrResourceNotFound = Error{Code: 40403, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}

	// Payload too large (413)
	ErrFileTooLarge = Error{Code: 41301, HTTPstatus: http.StatusRequestEntityTooLarge, Err: fmt.Errorf("file too large")}

	// Server errors (500) - These should be used sparingly and only for true internal errors
	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("server error: failed to process response"), LogLevel: "error"}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("An unexpected error occurred"), LogLevel: "error"}
	ErrStripeError                = Error{Code: 50005, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("payment processing failed"), LogLevel: "error"}
	ErrInternalStorageError       = Error{Code: 50006, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("storage server error"), LogLevel: "error"}
	ErrStorageNotConfigured       = Error{Code: 50009, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("storage credentials not configured"), LogLevel: "error"}
	ErrInconsistentPayments       = Error{Code: 50010, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("payment records cannot be reconciled"), LogLevel: "error"}

	// Service unavailable (503)
	ErrPaymentProviderUnavailable = Error{Code: 50301, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("payment provider temporarily unavailable"), LogLevel: "warn"}
)
