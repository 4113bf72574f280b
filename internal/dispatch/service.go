package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/quickride/quickride/pkg/config"
	"github.com/quickride/quickride/pkg/eventbus"
	"github.com/quickride/quickride/pkg/geo"
	"github.com/quickride/quickride/pkg/logger"
	"github.com/quickride/quickride/pkg/websocket"
)

var (
	ridesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_rides_total",
		Help: "Rides processed by the dispatcher, by outcome",
	}, []string{"outcome"})

	offersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_sent_total",
		Help: "Ride offers pushed to driver connections",
	})

	eligibleDrivers = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_eligible_drivers",
		Help:    "Number of eligible drivers found per ride",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
	})
)

// CandidateSource lists available drivers for a vehicle class.
type CandidateSource interface {
	ListAvailableByClass(ctx context.Context, vehicleClass string) ([]*Candidate, error)
}

// Notifier pushes ride offers to driver connections.
type Notifier interface {
	SendToUser(userID string, msg *websocket.Message)
}

// Subscriber attaches a durable consumer to the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context, subject, consumerName string, handler eventbus.HandlerFunc) error
}

// EligibleDriver is a driver within the search radius.
type EligibleDriver struct {
	DriverID   uuid.UUID `json:"driver_id"`
	DistanceKm float64   `json:"distance_km"`
}

// Service finds nearby drivers for new rides and pushes them offers. It is
// driven by rides.created events, never by the request path, so a slow
// search cannot delay ride creation.
type Service struct {
	source   CandidateSource
	notifier Notifier
	cfg      config.DispatchConfig
}

// NewService creates a new dispatch service
func NewService(source CandidateSource, notifier Notifier, cfg config.DispatchConfig) *Service {
	return &Service{source: source, notifier: notifier, cfg: cfg}
}

// Subscribe attaches the dispatcher to the ride stream
func (s *Service) Subscribe(ctx context.Context, bus Subscriber) error {
	return bus.Subscribe(ctx, eventbus.SubjectRideCreated, "dispatch-rides", s.HandleRideCreated)
}

// HandleRideCreated processes one rides.created event. Errors here are
// swallowed after logging: a failed search must never affect the already
// committed ride, and redelivering the event would re-offer a possibly
// taken ride.
func (s *Service) HandleRideCreated(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.RideCreatedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Warn("malformed ride created event", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}

	eligible, err := s.FindEligibleDrivers(ctx, data.PickupLatitude, data.PickupLongitude, s.cfg.RadiusKm, data.VehicleClass)
	if err != nil {
		ridesDispatched.WithLabelValues("error").Inc()
		logger.ErrorContext(ctx, "driver search failed",
			zap.String("ride_id", data.RideID.String()),
			zap.Error(err),
		)
		return nil
	}

	eligibleDrivers.Observe(float64(len(eligible)))

	if len(eligible) == 0 {
		ridesDispatched.WithLabelValues("no_drivers").Inc()
		logger.InfoContext(ctx, "no eligible drivers for ride",
			zap.String("ride_id", data.RideID.String()),
			zap.String("vehicle_class", data.VehicleClass),
		)
		return nil
	}

	for _, driver := range eligible {
		s.notifier.SendToUser(driver.DriverID.String(), offerMessage(&data, driver.DistanceKm))
		offersSent.Inc()
	}

	ridesDispatched.WithLabelValues("offered").Inc()
	logger.InfoContext(ctx, "ride offered to drivers",
		zap.String("ride_id", data.RideID.String()),
		zap.Int("drivers", len(eligible)),
	)
	return nil
}

// FindEligibleDrivers filters available drivers of the exact vehicle class
// by great-circle distance from the pickup point. The radius boundary is
// inclusive; drivers without stored coordinates are skipped, not errored.
func (s *Service) FindEligibleDrivers(ctx context.Context, pickupLat, pickupLng, radiusKm float64, vehicleClass string) ([]EligibleDriver, error) {
	candidates, err := s.source.ListAvailableByClass(ctx, vehicleClass)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	eligible := make([]EligibleDriver, 0, len(candidates))
	for _, c := range candidates {
		if c.Latitude == nil || c.Longitude == nil {
			continue
		}
		distance := geo.Haversine(pickupLat, pickupLng, *c.Latitude, *c.Longitude)
		if distance <= radiusKm {
			eligible = append(eligible, EligibleDriver{DriverID: c.DriverID, DistanceKm: distance})
		}
	}
	return eligible, nil
}

// offerMessage builds the driver-facing push. The event payload carries no
// start code, so nothing needs stripping here, but the invariant stands:
// drivers learn the code from the passenger only.
func offerMessage(data *eventbus.RideCreatedData, distanceKm float64) *websocket.Message {
	return &websocket.Message{
		Type:      "ride_offer",
		RideID:    data.RideID.String(),
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"ride_id":          data.RideID.String(),
			"pickup_address":   data.PickupAddress,
			"pickup_latitude":  data.PickupLatitude,
			"pickup_longitude": data.PickupLongitude,
			"dropoff_address":  data.DropoffAddress,
			"vehicle_class":    data.VehicleClass,
			"payment_method":   data.PaymentMethod,
			"estimated_fare":   data.EstimatedFare,
			"offered_price":    data.OfferedPrice,
			"distance_km":      distanceKm,
			"requested_at":     data.RequestedAt,
		},
	}
}
