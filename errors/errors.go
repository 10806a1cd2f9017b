package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"go.vocdoni.io/dvote/log"
)

// Error is an API failure with a unique code and the HTTP status it answers
// with. Handlers take a definition from errors_definition.go, refine its
// message with With, Withf or WithErr and Write it.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
	// LogLevel is one of debug, info, warn or error. Empty derives it from
	// HTTPstatus.
	LogLevel string
	// Data is sent in the "data" field of the body when set.
	Data any
}

// errorBody is the wire shape of an Error.
type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
	Data  any    `json:"data,omitempty"`
}

// MarshalJSON renders the message, the code and the optional data. The HTTP
// status travels in the response line only.
//
// Example output: {"error":"customer not found: cus_123","code":40401}
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(errorBody{Error: e.Error(), Code: e.Code, Data: e.Data})
}

func (e Error) Error() string {
	if e.Err == nil {
		return http.StatusText(e.HTTPstatus)
	}
	return e.Err.Error()
}

// Write sends the error as a JSON body with its HTTP status and logs it at
// its level.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warnw("cannot marshal API error", "error", err.Error())
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	e.log(caller())

	h := w.Header()
	h.Del("Content-Length")
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.HTTPstatus)
	if _, err := w.Write(append(msg, '\n')); err != nil {
		log.Debugw("cannot write API error", "error", err.Error())
	}
}

// level is LogLevel, or error for server faults and debug otherwise.
func (e Error) level() string {
	switch {
	case e.LogLevel != "":
		return e.LogLevel
	case e.HTTPstatus >= http.StatusInternalServerError:
		return "error"
	default:
		return "debug"
	}
}

func (e Error) log(from string) {
	switch e.level() {
	case "error":
		log.Errorw(e.Err, fmt.Sprintf("API error response [%d] code %d from %s", e.HTTPstatus, e.Code, from))
	case "warn":
		log.Warnw("API error response", "status", e.HTTPstatus, "code", e.Code, "error", e.Error(), "caller", from)
	case "info":
		log.Infow("API error response", "status", e.HTTPstatus, "code", e.Code, "error", e.Error(), "caller", from)
	default:
		log.Debugw("API error response", "status", e.HTTPstatus, "code", e.Code, "error", e.Error(), "caller", from)
	}
}

// caller names the function that called Write.
func caller() string {
	pc, _, _, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	return runtime.FuncForPC(pc).Name()
}

// Withf returns a copy of Error with the Sprintf formatted string appended at the end of e.Err
func (e Error) Withf(format string, args ...any) Error {
	e.Err = fmt.Errorf("%w: %v", e.Err, fmt.Sprintf(format, args...))
	return e
}

// With returns a copy of Error with the string appended at the end of e.Err
func (e Error) With(s string) Error {
	e.Err = fmt.Errorf("%w: %v", e.Err, s)
	return e
}

// WithErr returns a copy of Error with err.Error() appended at the end of e.Err
func (e Error) WithErr(err error) Error {
	e.Err = fmt.Errorf("%w: %v", e.Err, err.Error())
	return e
}

// WithLogLevel returns a copy of Error with the specified log level
func (e Error) WithLogLevel(level string) Error {
	e.LogLevel = level
	return e
}

// WithData returns a copy of Error carrying data in the "data" field of the
// response body.
func (e Error) WithData(data any) Error {
	e.Data = data
	return e
}

// Is reports whether target is an Error with the same code, so wrapped
// copies still match their definition.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	return ok && t.Code == e.Code
}
