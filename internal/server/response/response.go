// Package response writes the JSON envelope shared by every API endpoint:
// {"data": ..., "error": ...}. Exactly one of the two is non-null, except
// for rolled-back batches which report both.
package response

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/agentstation/fleetmap/pkg/errors"
)

// Response is the envelope. Both keys are always serialized.
type Response struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
}

// Error is the error half of the envelope.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error codes.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
	CodeRolledBack         = "ROLLED_BACK"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
	CodeRateLimited        = "RATE_LIMITED"
)

func Success(data any) Response { return Response{Data: data} }

func Fail(code, message, details string) Response {
	return Response{Error: &Error{Code: code, Message: message, Details: details}}
}

// JSON writes resp with status. Encoding failures are dropped because the
// header is already on the wire.
func JSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func OK(w http.ResponseWriter, data any)      { JSON(w, http.StatusOK, Success(data)) }
func Created(w http.ResponseWriter, data any) { JSON(w, http.StatusCreated, Success(data)) }

func BadRequest(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusBadRequest, Fail(CodeBadRequest, message, details))
}

func TooManyRequests(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusTooManyRequests, Fail(CodeRateLimited, message, details))
}

func Unauthorized(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusUnauthorized, Fail(CodeUnauthorized, message, details))
}

func NotFound(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusNotFound, Fail(CodeNotFound, message, details))
}

func MethodNotAllowed(w http.ResponseWriter, method string) {
	JSON(w, http.StatusMethodNotAllowed, Fail(CodeMethodNotAllowed,
		"Method not allowed", "Method "+method+" is not supported for this endpoint"))
}

func Conflict(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusConflict, Fail(CodeConflict, message, details))
}

// InternalError writes a 500 without the cause; callers log it.
func InternalError(w http.ResponseWriter, _ error) {
	JSON(w, http.StatusInternalServerError, Fail(CodeInternal,
		"Internal server error", "An unexpected error occurred"))
}

// RolledBack writes a 500 for an aborted batch and keeps the partial
// result in data.
func RolledBack(w http.ResponseWriter, result any, err error) {
	resp := Fail(CodeRolledBack, "Operation aborted and rolled back", err.Error())
	resp.Data = result
	JSON(w, http.StatusInternalServerError, resp)
}

func ServiceUnavailable(w http.ResponseWriter, message string) {
	JSON(w, http.StatusServiceUnavailable, Fail(CodeServiceUnavailable, "Service unavailable", message))
}

func GatewayTimeout(w http.ResponseWriter, message string) {
	JSON(w, http.StatusGatewayTimeout, Fail(CodeTimeout, "Request timed out", message))
}

// errorRule maps one error category to a response. Rules are checked in
// order; catastrophic comes first because it may wrap any other category.
type errorRule struct {
	match  func(error) bool
	status int
	code   string
	title  string
}

var errorRules = []errorRule{
	{errors.IsCatastrophic, http.StatusInternalServerError, CodeRolledBack, "Operation aborted"},
	{errors.IsNotFound, http.StatusNotFound, CodeNotFound, ""},
	{errors.IsValidationError, http.StatusBadRequest, CodeBadRequest, ""},
	{func(err error) bool { return errors.Is(err, errors.ErrNoRollback) }, http.StatusConflict, CodeConflict, ""},
	{isTimeout, http.StatusGatewayTimeout, CodeTimeout, "Request timed out"},
	{errors.IsPersistence, http.StatusServiceUnavailable, CodeServiceUnavailable, "Service unavailable"},
}

func isTimeout(err error) bool {
	return errors.IsTimeout(err) || errors.IsCanceled(err) || errors.Is(err, context.DeadlineExceeded)
}

// ErrorFromType writes the response for err's category. Errors that match
// no category become an opaque 500. Rules with an empty title put the
// error text in the message; the others put it in details.
func ErrorFromType(w http.ResponseWriter, err error) {
	for _, rule := range errorRules {
		if !rule.match(err) {
			continue
		}
		if rule.title == "" {
			JSON(w, rule.status, Fail(rule.code, err.Error(), ""))
		} else {
			JSON(w, rule.status, Fail(rule.code, rule.title, err.Error()))
		}
		return
	}
	InternalError(w, err)
}
