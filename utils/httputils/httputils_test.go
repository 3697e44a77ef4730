// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package httputils

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRoundTripper returns a canned response and keeps the last request.
type recordingRoundTripper struct {
	body        string
	err         error
	lastRequest *http.Request
}

func (d *recordingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	d.lastRequest = req
	if d.err != nil {
		return nil, d.err
	}

	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(d.body)),
	}, nil
}

func TestLoggingRoundTripper(t *testing.T) {
	var logBuffer bytes.Buffer

	rt := &recordingRoundTripper{body: `{"status":"OK"}`}
	lt := &LoggingRoundTripper{
		Transport: rt,
		Writer:    &logBuffer,
		DumpBody:  true,
		Redact:    []string{"key"},
	}

	req, err := http.NewRequest(http.MethodGet, "http://maps.example.com/maps/api/geocode/json?address=Mombasa&key=secret", nil)
	require.NoError(t, err)

	resp, err := lt.RoundTrip(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	logContent := logBuffer.String()
	assert.Contains(t, logContent, "> GET /maps/api/geocode/json?")
	assert.Contains(t, logContent, "key=REDACTED")
	assert.NotContains(t, logContent, "secret")
	assert.Contains(t, logContent, "< RESPONSE: [")
	assert.Contains(t, logContent, `{"status":"OK"}`)

	assert.Equal(t, "secret", rt.lastRequest.URL.Query().Get("key"), "the real request keeps its key")
}

func TestLoggingRoundTripperTransportError(t *testing.T) {
	var logBuffer bytes.Buffer

	boom := errors.New("connection refused")
	lt := &LoggingRoundTripper{Transport: &recordingRoundTripper{err: boom}, Writer: &logBuffer}

	req, err := http.NewRequest(http.MethodGet, "http://maps.example.com/", nil)
	require.NoError(t, err)

	_, err = lt.RoundTrip(req)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, logBuffer.String(), "< ERROR:")
}

func TestLoggingRoundTripperWithoutWriter(t *testing.T) {
	rt := &recordingRoundTripper{}
	lt := &LoggingRoundTripper{Transport: rt}

	req, err := http.NewRequest(http.MethodGet, "http://maps.example.com/", nil)
	require.NoError(t, err)

	resp, err := lt.RoundTrip(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Same(t, req, rt.lastRequest)
}

func TestAppendRequestHeadersRoundTripper(t *testing.T) {
	rt := &recordingRoundTripper{}
	atr := &AppendRequestHeadersRoundTripper{
		Transport: rt,
		Headers:   map[string]string{"User-Agent": "corridor/test"},
	}

	req, err := http.NewRequest(http.MethodPost, "http://example.org", nil)
	require.NoError(t, err)

	resp, err := atr.RoundTrip(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	require.NotNil(t, rt.lastRequest)
	assert.Equal(t, "corridor/test", rt.lastRequest.Header.Get("User-Agent"))
	assert.Empty(t, req.Header.Get("User-Agent"), "the caller's request is not modified")
}
