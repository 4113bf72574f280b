package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/quickride/quickride/pkg/common"
	"github.com/quickride/quickride/pkg/config"
	"github.com/quickride/quickride/pkg/httpclient"
	"github.com/quickride/quickride/pkg/logger"
)

const (
	googleMapsBaseURL            = "https://maps.googleapis.com/maps/api"
	googleDistanceMatrixEndpoint = "/distancematrix/json"
)

// GoogleProvider resolves routes through the Google Distance Matrix API.
// Calls run through a circuit breaker so a misbehaving upstream fails fast
// instead of stalling every ride request.
type GoogleProvider struct {
	apiKey  string
	client  *httpclient.Client
	breaker *gobreaker.CircuitBreaker
}

// NewGoogleProvider creates a Distance Matrix backed route provider.
func NewGoogleProvider(cfg config.RoutesConfig) *GoogleProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = googleMapsBaseURL
	}

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "google-distance-matrix",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &GoogleProvider{
		apiKey:  cfg.GoogleAPIKey,
		client:  httpclient.NewClient(baseURL, time.Duration(timeout)*time.Second),
		breaker: breaker,
	}
}

type distanceMatrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int `json:"value"` // meters
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"` // seconds
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// Route resolves driving distance and duration between two addresses.
func (g *GoogleProvider) Route(ctx context.Context, origin, destination string) (*RouteEstimate, error) {
	if origin == "" || destination == "" {
		return nil, common.NewValidationError("origin and destination addresses are required")
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.fetch(ctx, origin, destination)
	})
	if err != nil {
		if errors.Is(err, ErrNoRoute) {
			return nil, err
		}
		return nil, common.NewUpstreamError("route lookup failed", err)
	}

	return result.(*RouteEstimate), nil
}

func (g *GoogleProvider) fetch(ctx context.Context, origin, destination string) (*RouteEstimate, error) {
	params := url.Values{}
	params.Set("origins", origin)
	params.Set("destinations", destination)
	params.Set("mode", "driving")
	params.Set("units", "metric")
	params.Set("key", g.apiKey)

	resp, err := g.client.Get(ctx, googleDistanceMatrixEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("distance matrix request failed: %w", err)
	}

	var matrix distanceMatrixResponse
	if err := json.Unmarshal(resp, &matrix); err != nil {
		return nil, fmt.Errorf("failed to parse distance matrix response: %w", err)
	}

	if matrix.Status != "OK" {
		return nil, fmt.Errorf("distance matrix error: %s - %s", matrix.Status, matrix.ErrorMessage)
	}
	if len(matrix.Rows) == 0 || len(matrix.Rows[0].Elements) == 0 {
		return nil, ErrNoRoute
	}

	element := matrix.Rows[0].Elements[0]
	switch element.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return nil, ErrNoRoute
	default:
		return nil, fmt.Errorf("distance matrix element error: %s", element.Status)
	}

	return &RouteEstimate{
		DistanceMeters:  element.Distance.Value,
		DurationSeconds: element.Duration.Value,
	}, nil
}
