// Package response writes the JSON envelope shared by every HTTP endpoint:
//
//	{"success": true, "data": ...}
//	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}}
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope. Clients decode into it as well.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// Err returns the embedded error, or nil on success.
func (r Response) Err() error {
	if r.Success || r.Error == nil {
		return nil
	}
	return r.Error
}

// ErrorInfo is the error half of the envelope.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorInfo) Error() string {
	return e.Code + ": " + e.Message
}

var statusCodes = map[int]string{
	http.StatusBadRequest:            "BAD_REQUEST",
	http.StatusUnauthorized:          "UNAUTHORIZED",
	http.StatusNotFound:              "NOT_FOUND",
	http.StatusConflict:              "CONFLICT",
	http.StatusRequestEntityTooLarge: "PAYLOAD_TOO_LARGE",
	http.StatusServiceUnavailable:    "SERVICE_UNAVAILABLE",
}

// CodeFor returns the envelope error code used for an HTTP status.
func CodeFor(status int) string {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	return "INTERNAL_ERROR"
}

// Success writes data with 200.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// Created writes data with 201.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// Error writes an error envelope with an explicit code.
func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{Error: &ErrorInfo{Code: code, Message: message}})
}

// Fail writes an error envelope whose code is derived from status.
func Fail(c *gin.Context, status int, message string) {
	Error(c, status, CodeFor(status), message)
}

func BadRequest(c *gin.Context, message string)   { Fail(c, http.StatusBadRequest, message) }
func Unauthorized(c *gin.Context, message string) { Fail(c, http.StatusUnauthorized, message) }
func NotFound(c *gin.Context, message string)     { Fail(c, http.StatusNotFound, message) }
func Conflict(c *gin.Context, message string)     { Fail(c, http.StatusConflict, message) }

func PayloadTooLarge(c *gin.Context, message string) {
	Fail(c, http.StatusRequestEntityTooLarge, message)
}

func ServiceUnavailable(c *gin.Context, message string) {
	Fail(c, http.StatusServiceUnavailable, message)
}

func InternalError(c *gin.Context, message string) {
	Fail(c, http.StatusInternalServerError, message)
}
