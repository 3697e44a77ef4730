// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorType classifies provider failures.
type ErrorType int

const (
	// ErrorTypeUnknown is an unclassified failure.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit means the provider throttled the request.
	ErrorTypeRateLimit
	// ErrorTypeQuotaExceeded means the key ran out of quota or was denied.
	ErrorTypeQuotaExceeded
	// ErrorTypeTimeout means the request did not complete in time.
	ErrorTypeTimeout
	// ErrorTypeNotFound means the provider had no result.
	ErrorTypeNotFound
	// ErrorTypeInvalidRequest means the provider rejected the parameters.
	ErrorTypeInvalidRequest
	// ErrorTypeNetworkError is a transport or upstream availability failure.
	ErrorTypeNetworkError
)

var errorTypeNames = [...]string{
	"unknown", "rate_limit", "quota_exceeded", "timeout", "not_found", "invalid_request", "network",
}

func (t ErrorType) String() string {
	if int(t) < len(errorTypeNames) {
		return errorTypeNames[t]
	}

	return fmt.Sprintf("ErrorType(%d)", int(t))
}

// GeocodeError reports an address that could not be resolved to coordinates.
type GeocodeError struct {
	Address string
	Type    ErrorType
	Message string
	Err     error
}

func (e *GeocodeError) Error() string {
	msg := fmt.Sprintf("geocoding %q: %s", e.Address, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *GeocodeError) Unwrap() error {
	return e.Err
}

// ProviderError reports a failed distance matrix or elevation call.
type ProviderError struct {
	Service string
	Type    ErrorType
	Status  string // provider status, e.g. OVER_QUERY_LIMIT
	Message string // provider error_message when present
	Err     error
}

func (e *ProviderError) Error() string {
	msg := e.Service + ": " + e.Message
	if e.Status != "" {
		msg = fmt.Sprintf("%s: %s (%s)", e.Service, e.Message, e.Status)
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var ge *GeocodeError
	if errors.As(err, &ge) {
		return ge.Type
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Type
	}

	return ErrorTypeUnknown
}

func isTyped(err error) bool {
	var ge *GeocodeError

	var pe *ProviderError

	return errors.As(err, &ge) || errors.As(err, &pe)
}

// IsRateLimitError reports whether err is a throttling failure.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	if isTyped(err) {
		return TypeOf(err) == ErrorTypeRateLimit
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429")
}

// IsQuotaExceededError reports whether err is a quota or key failure.
func IsQuotaExceededError(err error) bool {
	if err == nil {
		return false
	}

	if isTyped(err) {
		return TypeOf(err) == ErrorTypeQuotaExceeded
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "over_daily_limit") ||
		strings.Contains(errStr, "quota exceeded")
}

// IsTimeoutError reports whether err is a timeout.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if isTyped(err) {
		return TypeOf(err) == ErrorTypeTimeout
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// ClassifyHTTPStatus maps a non-200 HTTP status to an ErrorType and message.
func ClassifyHTTPStatus(statusCode int) (ErrorType, string) {
	switch statusCode {
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimit, "rate limit reached"
	case http.StatusForbidden:
		return ErrorTypeQuotaExceeded, "quota exceeded or access denied"
	case http.StatusBadRequest:
		return ErrorTypeInvalidRequest, "invalid request"
	case http.StatusNotFound:
		return ErrorTypeNotFound, "not found"
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ErrorTypeNetworkError, fmt.Sprintf("service unavailable (status %d)", statusCode)
	default:
		return ErrorTypeUnknown, fmt.Sprintf("HTTP error %d", statusCode)
	}
}

// ClassifyStatus maps a Google Maps response status to an ErrorType.
func ClassifyStatus(status string) ErrorType {
	switch status {
	case "OVER_QUERY_LIMIT":
		return ErrorTypeRateLimit
	case "OVER_DAILY_LIMIT", "REQUEST_DENIED":
		return ErrorTypeQuotaExceeded
	case "INVALID_REQUEST", "MAX_ELEMENTS_EXCEEDED", "MAX_DIMENSIONS_EXCEEDED":
		return ErrorTypeInvalidRequest
	case "ZERO_RESULTS", "NOT_FOUND":
		return ErrorTypeNotFound
	case "UNKNOWN_ERROR":
		return ErrorTypeNetworkError
	default:
		return ErrorTypeUnknown
	}
}

// classifyTransport maps a failed round trip to an ErrorType.
func classifyTransport(err error) ErrorType {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTimeout
	}

	return ErrorTypeNetworkError
}
