package drivers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quickride/quickride/pkg/common"
	"github.com/quickride/quickride/pkg/logger"
)

func errLocationUnknown(driverID uuid.UUID) error {
	return common.NewNotFoundError("no known location for driver " + driverID.String())
}

// Service implements driver-facing operations
type Service struct {
	store Store
	cache LocationCache
}

// NewService creates a new driver service
func NewService(store Store, cache LocationCache) *Service {
	return &Service{store: store, cache: cache}
}

// GetProfile returns the driver's profile and statistics
func (s *Service) GetProfile(ctx context.Context, driverID uuid.UUID) (*Driver, error) {
	return s.store.GetByID(ctx, driverID)
}

// SetAvailability toggles whether the driver is open for new rides
func (s *Service) SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error {
	if err := s.store.SetAvailability(ctx, driverID, available); err != nil {
		return err
	}

	logger.InfoContext(ctx, "driver availability changed",
		zap.String("driver_id", driverID.String()),
		zap.Bool("available", available),
	)
	return nil
}

// ReportLocation stores a driver position report. The database holds the
// durable copy; the cache write is best-effort.
func (s *Service) ReportLocation(ctx context.Context, driverID uuid.UUID, lat, lng float64) error {
	now := time.Now()

	if err := s.store.UpdateLocation(ctx, driverID, lat, lng, now); err != nil {
		return err
	}

	loc := Location{Latitude: lat, Longitude: lng, ReportedAt: now}
	if err := s.cache.SetLocation(ctx, driverID, loc); err != nil {
		logger.WarnContext(ctx, "failed to cache driver location",
			zap.String("driver_id", driverID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// LastKnownLocation returns the driver's most recent position, preferring
// the cache and falling back to the database.
func (s *Service) LastKnownLocation(ctx context.Context, driverID uuid.UUID) (*Location, error) {
	if loc, err := s.cache.GetLocation(ctx, driverID); err == nil {
		return loc, nil
	}

	driver, err := s.store.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver.LastLatitude == nil || driver.LastLongitude == nil || driver.LocationAt == nil {
		return nil, errLocationUnknown(driverID)
	}

	return &Location{
		Latitude:   *driver.LastLatitude,
		Longitude:  *driver.LastLongitude,
		ReportedAt: *driver.LocationAt,
	}, nil
}

// Coordinates returns the driver's last known position as a plain pair.
func (s *Service) Coordinates(ctx context.Context, driverID uuid.UUID) (float64, float64, error) {
	loc, err := s.LastKnownLocation(ctx, driverID)
	if err != nil {
		return 0, 0, err
	}
	return loc.Latitude, loc.Longitude, nil
}

// RecordCompletion increments the driver's completed ride counter and earnings
func (s *Service) RecordCompletion(ctx context.Context, driverID uuid.UUID, earnings int64) error {
	return s.store.RecordCompletion(ctx, driverID, earnings)
}

// RecordCancellation increments the driver's cancellation counter
func (s *Service) RecordCancellation(ctx context.Context, driverID uuid.UUID) error {
	return s.store.RecordCancellation(ctx, driverID)
}

// ApplyRating folds a star rating into the driver's running average
func (s *Service) ApplyRating(ctx context.Context, driverID uuid.UUID, stars int) error {
	return s.store.ApplyRating(ctx, driverID, stars)
}

// RideHistory returns the driver's ride IDs, newest first
func (s *Service) RideHistory(ctx context.Context, driverID uuid.UUID, limit, offset int) ([]uuid.UUID, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListRideIDs(ctx, driverID, limit, offset)
}
