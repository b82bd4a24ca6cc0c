// Package dto provides data transfer objects for the application layer.
package dto

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/errors"
)

// ErrorResponse 通用错误响应结构
type ErrorResponse struct {
	Success   bool     `json:"success"`
	Error     ErrorDTO `json:"error"`
	RequestID string   `json:"requestId,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// ErrorDTO 错误信息 DTO
type ErrorDTO struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MessageResponse 简单消息响应
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewErrorResponse maps err to its wire form. Anything that is not an AppError,
// and every internal_error, is rendered with a fixed message.
func NewErrorResponse(err error, requestID string) (int, *ErrorResponse) {
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code() == errors.CodeInternal {
		appErr = errors.Internal(err)
	}
	return appErr.HTTPStatus(), &ErrorResponse{
		Success: false,
		Error: ErrorDTO{
			Code:    string(appErr.Code()),
			Message: appErr.Error(),
			Details: appErr.Metadata(),
		},
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}

// SendError writes err as a JSON error response and aborts the chain.
func SendError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := NewErrorResponse(err, c.GetString(string(constants.ContextKeyRequestID)))
	c.AbortWithStatusJSON(status, body)
}

// SendSuccess writes payload with status 200.
func SendSuccess(c *gin.Context, payload interface{}) {
	c.JSON(200, payload)
}
