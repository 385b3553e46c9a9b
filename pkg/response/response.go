// Package response owns the JSON envelope every API route answers with:
// {"code": <int>, "message": <string>, "data": <any>}. Code 0 is success;
// non-zero codes are either the HTTP status or one of the domain codes below.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Domain codes for outcomes the HTTP status alone does not distinguish.
const (
	CodeOK                  = 0
	CodeInvalidTransition   = 1001
	CodePartial             = 1002
	CodeDraftingUnavailable = 1003
	CodeRateLimited         = 1004
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AppError is an error that already knows how it should be rendered.
type AppError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *AppError) Error() string {
	return e.Message
}

func newAppError(status int, msg string) *AppError {
	return &AppError{HTTPStatus: status, Code: status, Message: msg}
}

func NewBadRequest(msg string) *AppError { return newAppError(http.StatusBadRequest, msg) }
func NewUnauthorized(msg string) *AppError { return newAppError(http.StatusUnauthorized, msg) }
func NewForbidden(msg string) *AppError { return newAppError(http.StatusForbidden, msg) }
func NewNotFound(msg string) *AppError { return newAppError(http.StatusNotFound, msg) }
func NewConflict(msg string) *AppError { return newAppError(http.StatusConflict, msg) }

// NewInvalidTransition is a 409 for a lifecycle move the current state does not allow.
func NewInvalidTransition(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusConflict, Code: CodeInvalidTransition, Message: msg}
}

// NewDraftingUnavailable is a 502 for a draft that no configured model could produce.
func NewDraftingUnavailable(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadGateway, Code: CodeDraftingUnavailable, Message: msg}
}

func NewRateLimited(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusTooManyRequests, Code: CodeRateLimited, Message: msg}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Message: "ok", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: CodeOK, Message: "created", Data: data})
}

// Partial answers 202 when the primary write committed but a follow-up step
// failed. data carries the committed state, msg the follow-up failure.
func Partial(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusAccepted, Response{Code: CodePartial, Message: msg, Data: data})
}

// Error renders err. Anything that is not an *AppError becomes a bare 500 so
// internal messages never reach the client.
func Error(c *gin.Context, err error) {
	c.JSON(envelope(err))
}

// Abort is Error for middleware: it also stops the handler chain.
func Abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(envelope(err))
}

func envelope(err error) (int, Response) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus, Response{Code: appErr.Code, Message: appErr.Message}
	}
	return http.StatusInternalServerError, Response{
		Code:    http.StatusInternalServerError,
		Message: "internal server error",
	}
}

func BadRequest(c *gin.Context, msg string) {
	Error(c, NewBadRequest(msg))
}

func Unauthorized(c *gin.Context, msg string) {
	Error(c, NewUnauthorized(msg))
}
