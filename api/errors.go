// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/corridorhq/corridor/geo"
	"github.com/corridorhq/corridor/spatial"
	"github.com/corridorhq/corridor/store"
	"github.com/gin-gonic/gin"
)

// statusOf maps an error to the HTTP status reported for it.
func statusOf(err error) int {
	var (
		parseErr    *spatial.ParseError
		geocodeErr  *geo.GeocodeError
		providerErr *geo.ProviderError
	)

	switch {
	case store.IsTableNotFound(err), store.IsNotFound(err):
		return http.StatusNotFound
	case store.IsValidation(err), errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.As(err, &geocodeErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &providerErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(ctx *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Printf("api: [%s] %s %s: %v", ctx.GetString(requestIDKey), ctx.Request.Method, ctx.Request.URL.Path, err)
	}

	ctx.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func unavailable(ctx *gin.Context, what string) {
	ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " lookups need a Google Maps API key"})
}
