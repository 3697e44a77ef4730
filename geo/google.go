// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/corridorhq/corridor/spatial"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Google Maps Platform endpoint.
	DefaultBaseURL = "https://maps.googleapis.com"
	// DefaultMode is the distance matrix travel mode.
	DefaultMode = "driving"

	requestTimeout   = 10 * time.Second
	elevationTimeout = time.Second
)

var (
	_ Geocoder         = (*GoogleClient)(nil)
	_ DistanceMatrix   = (*GoogleClient)(nil)
	_ ElevationService = (*GoogleClient)(nil)
)

// GoogleConfig configures a GoogleClient. Zero values select the defaults.
type GoogleConfig struct {
	APIKey            string
	BaseURL           string
	Region            string // ccTLD region bias for geocoding, e.g. "ke"
	RequestsPerSecond float64
	Burst             int
	Transport         http.RoundTripper
}

// GoogleClient talks to the Google Maps geocoding, distance matrix and
// elevation APIs. Every request waits on a shared rate limiter.
type GoogleClient struct {
	apiKey     string
	baseURL    string
	region     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGoogleClient creates a client. It defaults to 10 requests per second
// with a burst of 5.
func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}

	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}

	return &GoogleClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		region:  cfg.Region,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: cfg.Transport,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// failure is a provider call failure before it is attributed to an
// address or a service.
type failure struct {
	typ    ErrorType
	status string
	msg    string
	err    error
}

func statusFailure(status, message string) *failure {
	if message == "" {
		message = "provider returned status " + status
	}

	return &failure{typ: ClassifyStatus(status), status: status, msg: message}
}

func (c *GoogleClient) get(ctx context.Context, path string, params url.Values, out any) *failure {
	if err := c.limiter.Wait(ctx); err != nil {
		return &failure{typ: classifyTransport(err), msg: "waiting for rate limiter", err: err}
	}

	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return &failure{typ: ErrorTypeInvalidRequest, msg: "building request", err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &failure{typ: classifyTransport(err), msg: "request failed", err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		typ, msg := ClassifyHTTPStatus(resp.StatusCode)

		return &failure{typ: typ, msg: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &failure{typ: ErrorTypeUnknown, msg: "decoding response", err: err}
	}

	return nil
}

func latLng(p spatial.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

type geocodeResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"` // ROOFTOP, RANGE_INTERPOLATED, GEOMETRIC_CENTER, APPROXIMATE
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Geocode resolves address to the coordinates of the first result.
func (c *GoogleClient) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	params := url.Values{}
	params.Set("address", address)

	if c.region != "" {
		params.Set("region", c.region)
	}

	var resp geocodeResponse
	if f := c.get(ctx, "/maps/api/geocode/json", params, &resp); f != nil {
		return nil, &GeocodeError{Address: address, Type: f.typ, Message: f.msg, Err: f.err}
	}

	if resp.Status != "OK" {
		f := statusFailure(resp.Status, resp.ErrorMessage)

		return nil, &GeocodeError{Address: address, Type: f.typ, Message: f.msg}
	}

	if len(resp.Results) == 0 {
		return nil, &GeocodeError{Address: address, Type: ErrorTypeNotFound, Message: "no results"}
	}

	result := resp.Results[0]

	confidence := "low"

	switch result.Geometry.LocationType {
	case "ROOFTOP", "RANGE_INTERPOLATED":
		confidence = "high"
	case "GEOMETRIC_CENTER":
		confidence = "medium"
	}

	return &GeocodingResult{
		Point: spatial.Point{
			Lat: result.Geometry.Location.Lat,
			Lng: result.Geometry.Location.Lng,
		},
		Confidence:       confidence,
		Provider:         ProviderGoogle,
		FormattedAddress: result.FormattedAddress,
	}, nil
}

type matrixValue struct {
	Value float64 `json:"value"`
	Text  string  `json:"text"`
}

type distanceMatrixResponse struct {
	Rows []struct {
		Elements []struct {
			Status   string       `json:"status"`
			Distance *matrixValue `json:"distance"`
			Duration *matrixValue `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Distance returns the travel distance and duration between two points.
// An empty mode means driving.
func (c *GoogleClient) Distance(ctx context.Context, origin, destination spatial.Point, mode string) (*Leg, error) {
	if mode == "" {
		mode = DefaultMode
	}

	params := url.Values{}
	params.Set("origins", latLng(origin))
	params.Set("destinations", latLng(destination))
	params.Set("mode", mode)

	fail := func(f *failure) error {
		return &ProviderError{Service: "distancematrix", Type: f.typ, Status: f.status, Message: f.msg, Err: f.err}
	}

	var resp distanceMatrixResponse
	if f := c.get(ctx, "/maps/api/distancematrix/json", params, &resp); f != nil {
		return nil, fail(f)
	}

	if resp.Status != "OK" {
		return nil, fail(statusFailure(resp.Status, resp.ErrorMessage))
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return nil, fail(&failure{typ: ErrorTypeUnknown, msg: "response has no rows or elements"})
	}

	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return nil, fail(statusFailure(el.Status, resp.ErrorMessage))
	}

	if el.Distance == nil || el.Duration == nil {
		return nil, fail(&failure{typ: ErrorTypeUnknown, msg: "element has no distance or duration"})
	}

	return &Leg{
		DistanceMeters:  el.Distance.Value,
		DurationSeconds: el.Duration.Value,
		DistanceText:    el.Distance.Text,
		DurationText:    el.Duration.Text,
	}, nil
}

type elevationResponse struct {
	Results []struct {
		Elevation  float64 `json:"elevation"`
		Resolution float64 `json:"resolution"`
	} `json:"results"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Elevation returns the elevation of p in meters. The call gives up after
// one second.
func (c *GoogleClient) Elevation(ctx context.Context, p spatial.Point) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, elevationTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("locations", latLng(p))

	fail := func(f *failure) error {
		return &ProviderError{Service: "elevation", Type: f.typ, Status: f.status, Message: f.msg, Err: f.err}
	}

	var resp elevationResponse
	if f := c.get(ctx, "/maps/api/elevation/json", params, &resp); f != nil {
		return 0, fail(f)
	}

	if resp.Status != "OK" {
		return 0, fail(statusFailure(resp.Status, resp.ErrorMessage))
	}

	if len(resp.Results) == 0 {
		return 0, fail(&failure{typ: ErrorTypeNotFound, msg: "no results"})
	}

	return resp.Results[0].Elevation, nil
}

// String identifies the client in logs without revealing the key.
func (c *GoogleClient) String() string {
	return fmt.Sprintf("google maps client (%s)", c.baseURL)
}
