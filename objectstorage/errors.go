package objectstorage

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// ClientError is a failure that happened before the storage service
// answered: bad configuration, DNS, connection or signing problems.
type ClientError struct {
	Message string
	Cause   string
	Err     error
}

func (e *ClientError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("storage client error: %s: %s", e.Message, e.Cause)
	}
	return "storage client error: " + e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// ServerError is a request the storage service answered with an error.
type ServerError struct {
	Code       string
	Message    string
	RequestID  string
	HTTPStatus int
	Err        error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("storage server error [%s] (status %d, request %s): %s",
		e.Code, e.HTTPStatus, e.RequestID, e.Message)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// classify sorts an SDK error into a ServerError when the service sent a
// response and into a ClientError otherwise.
func classify(err error) error {
	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) && status.HTTPStatusCode() > 0 {
		se := &ServerError{HTTPStatus: status.HTTPStatusCode(), Err: err}
		var reqID interface{ ServiceRequestID() string }
		if errors.As(err, &reqID) {
			se.RequestID = reqID.ServiceRequestID()
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			se.Code = apiErr.ErrorCode()
			se.Message = apiErr.ErrorMessage()
		}
		if se.Message == "" {
			se.Message = err.Error()
		}
		return se
	}

	ce := &ClientError{Message: err.Error(), Err: err}
	var opErr *smithy.OperationError
	if errors.As(err, &opErr) {
		ce.Message = fmt.Sprintf("%s %s failed", opErr.Service(), opErr.Operation())
		if cause := opErr.Unwrap(); cause != nil {
			ce.Cause = cause.Error()
		}
	}
	return ce
}
