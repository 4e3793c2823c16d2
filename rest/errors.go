// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"errors"
	"fmt"
)

// APIError is a structured error response from the chat server. Callers
// extract it with errors.As to branch on the status code:
//
//	var apiErr *rest.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound { ... }
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
	// Code is the machine-readable error code (e.g., "room_not_found").
	Code string `json:"code"`
	// Message is the human-readable description from the server.
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rest: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *APIError with the given HTTP status.
func IsStatus(err error, statusCode int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == statusCode
}
