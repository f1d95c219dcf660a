// Package model - API response envelope shared by every endpoint
package model

import "net/http"

// SuccessResponse is the envelope for successful calls
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// ErrorDetail carries the failure message and status code
type ErrorDetail struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ErrorResponse is the envelope for failed calls
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// Session is returned by a successful login
type Session struct {
	Token string `json:"token"`
}

// Success wraps data in the success envelope. Nil data becomes an empty object.
func Success(message string, data interface{}) SuccessResponse {
	if data == nil {
		data = map[string]interface{}{}
	}
	return SuccessResponse{Success: true, Message: message, Data: data}
}

// Failure wraps a message in the error envelope. A zero code becomes 500.
func Failure(message string, code int) ErrorResponse {
	if code == 0 {
		code = http.StatusInternalServerError
	}
	return ErrorResponse{Error: ErrorDetail{Message: message, Code: code}}
}
