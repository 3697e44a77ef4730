// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/corridorhq/corridor/fleet"
	"github.com/corridorhq/corridor/geo"
	"github.com/corridorhq/corridor/store"
	"github.com/corridorhq/corridor/utils/httputils"
	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
)

// storeHandle is an open dispatcher plus the hooks of its backend.
type storeHandle struct {
	d     *store.Dispatcher
	ping  func(context.Context) error
	close func(context.Context) error
}

func (h *storeHandle) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.close(ctx); err != nil {
		log.Printf("closing %s backend: %v", rootOpts.Backend, err)
	}
}

// openStore builds the dispatcher for the configured backend and applies
// the unique indexes.
func openStore(ctx context.Context, opts *rootOptions) (*storeHandle, error) {
	registry, err := fleet.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("building registry: %w", err)
	}

	var h *storeHandle

	switch opts.Backend {
	case backendMongo:
		b := store.NewMongoBackend(opts.MongoURI, opts.MongoDatabase)
		h = &storeHandle{d: store.NewDispatcher(registry, b), ping: b.Ping, close: b.Close}
	case backendDuckDB:
		if err := os.MkdirAll(filepath.Dir(opts.DuckDBPath), 0o750); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}

		db, err := sql.Open("duckdb", opts.DuckDBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}

		b := store.NewDuckDBBackend(db)
		h = &storeHandle{d: store.NewDispatcher(registry, b), ping: db.PingContext, close: b.Close}
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}

	if err := h.d.Migrate(ctx); err != nil {
		h.Close()

		return nil, fmt.Errorf("migrating: %w", err)
	}

	return h, nil
}

// newGoogleClient resolves the Maps API key and builds a client whose
// transport traces requests when asked to.
func newGoogleClient(ctx context.Context, opts *rootOptions) (*geo.GoogleClient, error) {
	key, err := geo.ResolveAPIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving maps api key: %w", err)
	}

	var httpLogWriter io.Writer
	if opts.EnableHTTPTrace || opts.EnableHTTPBodyTrace {
		httpLogWriter = os.Stderr
	}

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		MaxConnsPerHost:       4,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}

	loggingTransport := &httputils.LoggingRoundTripper{
		Writer:    httpLogWriter,
		DumpBody:  opts.EnableHTTPBodyTrace,
		Redact:    []string{"key"},
		Transport: transport,
	}

	headerTransport := &httputils.AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent": fmt.Sprintf("corridor/%s (+https://github.com/corridorhq/corridor)", Version),
			"Accept":     "application/json",
		},
		Transport: loggingTransport,
	}

	return geo.NewGoogleClient(geo.GoogleConfig{
		APIKey:    key,
		Region:    os.Getenv("CORRIDOR_REGION"),
		Transport: headerTransport,
	}), nil
}
