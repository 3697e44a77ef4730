// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the entity store and the geospatial helpers over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/corridorhq/corridor/geo"
	"github.com/corridorhq/corridor/spatial"
	"github.com/corridorhq/corridor/store"
	"github.com/gin-gonic/gin"
)

// RouteFetcher resolves the road distance between two addresses.
type RouteFetcher interface {
	FetchRouteDistance(ctx context.Context, origin, destination string) (*geo.RouteResult, error)
}

// Options holds the optional collaborators of a Server. Provider backed
// endpoints answer 503 when theirs is nil.
type Options struct {
	Routes    RouteFetcher
	Elevation geo.ElevationService
	// Ping reports backend health for /healthz.
	Ping func(context.Context) error
}

// Server serves the corridor HTTP API.
type Server struct {
	d    *store.Dispatcher
	opts Options
}

// NewServer creates a server over d.
func NewServer(d *store.Dispatcher, opts Options) *Server {
	return &Server{d: d, opts: opts}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), requestID())

	r.GET("/healthz", s.healthz)

	tables := r.Group("/api/tables")
	tables.GET("", s.listTables)
	tables.GET("/:table", s.list)
	tables.POST("/:table", s.create)
	tables.DELETE("/:table", s.deleteAll)
	tables.POST("/:table/search", s.search)
	tables.POST("/:table/exists", s.exists)
	tables.GET("/:table/:id", s.get)
	tables.PATCH("/:table/:id", s.update)
	tables.DELETE("/:table/:id", s.delete)

	g := r.Group("/api/geo")
	g.GET("/distance", s.distance)
	g.GET("/eta", s.eta)
	g.GET("/route", s.route)
	g.GET("/elevation", s.elevation)

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Printf("api: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	log.Printf("api: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}

	return nil
}

func (s *Server) healthz(ctx *gin.Context) {
	if s.opts.Ping != nil {
		if err := s.opts.Ping(ctx.Request.Context()); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})

			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listTables(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.d.Registry().Tables())
}

// query reads the select and populate parameters.
func query(ctx *gin.Context) (store.Query, error) {
	proj, err := store.ParseProjection(ctx.Query("select"))
	if err != nil {
		return store.Query{}, err
	}

	q := store.Query{Projection: proj}

	if populate := ctx.Query("populate"); populate != "" {
		q.Expand = strings.Fields(strings.ReplaceAll(populate, ",", " "))
	}

	return q, nil
}

func (s *Server) list(ctx *gin.Context) {
	q, err := query(ctx)
	if err != nil {
		badRequest(ctx, err)

		return
	}

	records, err := s.d.List(ctx.Request.Context(), ctx.Param("table"), q)
	if err != nil {
		fail(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, records)
}

func (s *Server) create(ctx *gin.Context) {
	var payload any
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		badRequest(ctx, fmt.Errorf("invalid JSON body: %w", err))

		return
	}

	created, err := s.d.Create(ctx.Request.Context(), ctx.Param("table"), payload)
	if err != nil {
		fail(ctx, err)

		return
	}

	if _, single := payload.(map[string]any); single && len(created) == 1 {
		ctx.JSON(http.StatusCreated, created[0])

		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (s *Server) get(ctx *gin.Context) {
	q, err := query(ctx)
	if err != nil {
		badRequest(ctx, err)

		return
	}

	record, err := s.d.GetByID(ctx.Request.Context(), ctx.Param("table"), ctx.Param("id"), q)
	if err != nil {
		fail(ctx, err)

		return
	}

	if record == nil {
		ctx.Status(http.StatusOK)

		return
	}

	ctx.JSON(http.StatusOK, record)
}

func bindFilter(ctx *gin.Context) (store.Filter, bool) {
	var filter store.Filter
	if err := ctx.ShouldBindJSON(&filter); err != nil {
		badRequest(ctx, fmt.Errorf("invalid filter: %w", err))

		return nil, false
	}

	return filter, true
}

func (s *Server) search(ctx *gin.Context) {
	proj, err := store.ParseProjection(ctx.Query("select"))
	if err != nil {
		badRequest(ctx, err)

		return
	}

	filter, ok := bindFilter(ctx)
	if !ok {
		return
	}

	records, err := s.d.GetByFilter(ctx.Request.Context(), ctx.Param("table"), filter, proj)
	if err != nil {
		fail(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, records)
}

func (s *Server) exists(ctx *gin.Context) {
	filter, ok := bindFilter(ctx)
	if !ok {
		return
	}

	found, err := s.d.ExistsByFilter(ctx.Request.Context(), ctx.Param("table"), filter)
	if err != nil {
		fail(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"exists": found})
}

func (s *Server) update(ctx *gin.Context) {
	var partial store.Record
	if err := ctx.ShouldBindJSON(&partial); err != nil {
		badRequest(ctx, fmt.Errorf("invalid JSON body: %w", err))

		return
	}

	res, err := s.d.Update(ctx.Request.Context(), ctx.Param("table"), ctx.Param("id"), partial)
	if err != nil {
		fail(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, res)
}

func (s *Server) delete(ctx *gin.Context) {
	n, err := s.d.Delete(ctx.Request.Context(), ctx.Param("table"), ctx.Param("id"))
	if err != nil {
		fail(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (s *Server) deleteAll(ctx *gin.Context) {
	n, err := s.d.DeleteAll(ctx.Request.Context(), ctx.Param("table"))
	if err != nil {
		fail(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"deleted": n})
}

func pointParam(ctx *gin.Context, name string) (spatial.Point, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		badRequest(ctx, fmt.Errorf("%s query parameter is required", name))

		return spatial.Point{}, false
	}

	p, err := spatial.ParsePoint(raw)
	if err != nil {
		badRequest(ctx, err)

		return spatial.Point{}, false
	}

	return p, true
}

func (s *Server) distance(ctx *gin.Context) {
	from, ok := pointParam(ctx, "from")
	if !ok {
		return
	}

	to, ok := pointParam(ctx, "to")
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"distanceKm": spatial.HaversineDistance(from, to)})
}

func (s *Server) eta(ctx *gin.Context) {
	text := ctx.Query("text")

	strict := false

	if raw := ctx.Query("strict"); raw != "" {
		var err error
		if strict, err = strconv.ParseBool(raw); err != nil {
			badRequest(ctx, fmt.Errorf("invalid strict parameter: %w", err))

			return
		}
	}

	if !strict {
		ctx.JSON(http.StatusOK, gin.H{"hours": spatial.ParseDurationText(text)})

		return
	}

	hours, err := spatial.ParseDurationTextStrict(text)
	if err != nil {
		fail(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"hours": hours})
}

func (s *Server) route(ctx *gin.Context) {
	if s.opts.Routes == nil {
		unavailable(ctx, "route")

		return
	}

	origin, destination := ctx.Query("origin"), ctx.Query("destination")
	if origin == "" || destination == "" {
		badRequest(ctx, errors.New("origin and destination query parameters are required"))

		return
	}

	res, err := s.opts.Routes.FetchRouteDistance(ctx.Request.Context(), origin, destination)
	if err != nil {
		fail(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, res)
}

func (s *Server) elevation(ctx *gin.Context) {
	if s.opts.Elevation == nil {
		unavailable(ctx, "elevation")

		return
	}

	p, ok := pointParam(ctx, "at")
	if !ok {
		return
	}

	m, err := s.opts.Elevation.Elevation(ctx.Request.Context(), p)
	if err != nil {
		fail(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"elevation": m})
}
