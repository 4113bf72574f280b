package rides

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quickride/quickride/internal/routes"
	"github.com/quickride/quickride/pkg/async"
	"github.com/quickride/quickride/pkg/common"
	"github.com/quickride/quickride/pkg/config"
	"github.com/quickride/quickride/pkg/eventbus"
	"github.com/quickride/quickride/pkg/geo"
	"github.com/quickride/quickride/pkg/logger"
	"github.com/quickride/quickride/pkg/otp"
	"github.com/quickride/quickride/pkg/websocket"
)

// Service implements the ride lifecycle. Every state transition is a single
// conditional write in the store; the service layers guards, pricing, side
// effects and notifications around those writes. Side effects never affect
// the outcome of an already-committed transition.
type Service struct {
	store      Store
	drivers    DriverDirectory
	passengers PassengerDirectory
	router     routes.Provider
	fares      FareQuoter
	notifier   Notifier
	publisher  Publisher
	genCode    CodeGenerator
	dispatch   config.DispatchConfig
}

// NewService creates a new ride service
func NewService(
	store Store,
	drivers DriverDirectory,
	passengers PassengerDirectory,
	router routes.Provider,
	fares FareQuoter,
	notifier Notifier,
	publisher Publisher,
	dispatch config.DispatchConfig,
) *Service {
	return &Service{
		store:      store,
		drivers:    drivers,
		passengers: passengers,
		router:     router,
		fares:      fares,
		notifier:   notifier,
		publisher:  publisher,
		genCode:    otp.Generate,
		dispatch:   dispatch,
	}
}

// bestEffort runs a non-critical side effect. Failures are logged and
// discarded; they must never roll back the primary state change.
func (s *Service) bestEffort(ctx context.Context, effect string, fn func() error) {
	if err := fn(); err != nil {
		logger.WarnContext(ctx, "non-critical side effect failed",
			zap.String("effect", effect),
			zap.Error(err),
		)
	}
}

// route wraps the provider call; an unroutable address pair is the caller's
// problem, not an upstream failure
func (s *Service) route(ctx context.Context, origin, destination string) (*routes.RouteEstimate, error) {
	est, err := s.router.Route(ctx, origin, destination)
	if err != nil {
		if errors.Is(err, routes.ErrNoRoute) {
			return nil, common.NewValidationError("no route between the given addresses")
		}
		return nil, err
	}
	return est, nil
}

func conflictForStatus(status Status) error {
	switch status {
	case StatusAccepted:
		return common.NewStateConflictError("ride already accepted by another driver")
	case StatusOngoing:
		return common.NewStateConflictError("ride is already ongoing")
	case StatusCompleted:
		return common.NewStateConflictError("ride is already completed")
	case StatusCancelled:
		return common.NewStateConflictError("ride was cancelled")
	default:
		return common.NewStateConflictError(fmt.Sprintf("ride is in state %q", status))
	}
}

// Quote prices a trip between two addresses for every vehicle class
func (s *Service) Quote(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	est, err := s.route(ctx, req.PickupAddress, req.DropoffAddress)
	if err != nil {
		return nil, err
	}

	fares, err := s.fares.QuoteAll(est.DistanceMeters, est.DurationSeconds)
	if err != nil {
		return nil, err
	}

	return &QuoteResponse{
		DistanceMeters:  est.DistanceMeters,
		DurationSeconds: est.DurationSeconds,
		Fares:           fares,
	}, nil
}

// RequestRide creates a new ride in pending state and returns it to the
// passenger immediately. Driver dispatch happens through the rides.created
// event after the response is sent, so creation never waits on the search.
func (s *Service) RequestRide(ctx context.Context, passengerID uuid.UUID, req *CreateRideRequest) (*Ride, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = PaymentCash
	}

	est, err := s.route(ctx, req.PickupAddress, req.DropoffAddress)
	if err != nil {
		// A ride with an unknown fare must not be persisted
		return nil, err
	}

	fare, err := s.fares.Quote(est.DistanceMeters, est.DurationSeconds, req.VehicleClass)
	if err != nil {
		return nil, err
	}

	// An offer only ever raises the price, never lowers it
	finalPrice := fare
	if req.OfferedPrice != nil && *req.OfferedPrice > fare {
		finalPrice = *req.OfferedPrice
	}

	code, err := s.genCode()
	if err != nil {
		return nil, common.NewInternalError("failed to generate ride code")
	}

	now := time.Now()
	ride := &Ride{
		ID:               uuid.New(),
		PassengerID:      passengerID,
		Status:           StatusPending,
		VehicleClass:     req.VehicleClass,
		PaymentMethod:    req.PaymentMethod,
		PickupAddress:    req.PickupAddress,
		PickupLatitude:   req.PickupLatitude,
		PickupLongitude:  req.PickupLongitude,
		DropoffAddress:   req.DropoffAddress,
		DropoffLatitude:  req.DropoffLatitude,
		DropoffLongitude: req.DropoffLongitude,
		DistanceMeters:   est.DistanceMeters,
		DurationSeconds:  est.DurationSeconds,
		Fare:             fare,
		OfferedPrice:     req.OfferedPrice,
		FinalPrice:       finalPrice,
		StartCode:        code,
		RequestedAt:      now,
	}

	if err := s.store.Create(ctx, ride); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "ride requested",
		zap.String("ride_id", ride.ID.String()),
		zap.String("passenger_id", passengerID.String()),
		zap.String("vehicle_class", ride.VehicleClass),
		zap.Int64("fare", fare),
	)

	// Dispatch is decoupled from the request: publish and return
	s.publishRideCreated(ctx, ride)

	return ride, nil
}

func (s *Service) publishRideCreated(ctx context.Context, ride *Ride) {
	var offered int64
	if ride.OfferedPrice != nil {
		offered = *ride.OfferedPrice
	}
	data := eventbus.RideCreatedData{
		RideID:           ride.ID,
		PassengerID:      ride.PassengerID,
		PickupLatitude:   ride.PickupLatitude,
		PickupLongitude:  ride.PickupLongitude,
		PickupAddress:    ride.PickupAddress,
		DropoffLatitude:  ride.DropoffLatitude,
		DropoffLongitude: ride.DropoffLongitude,
		DropoffAddress:   ride.DropoffAddress,
		VehicleClass:     ride.VehicleClass,
		PaymentMethod:    ride.PaymentMethod,
		EstimatedFare:    ride.Fare,
		OfferedPrice:     offered,
		DistanceMeters:   ride.DistanceMeters,
		DurationSeconds:  ride.DurationSeconds,
		RequestedAt:      ride.RequestedAt,
	}

	async.Go(ctx, "publish-ride-created", func(bg context.Context) {
		event, err := eventbus.NewEvent(eventbus.SubjectRideCreated, "rides", data)
		if err != nil {
			logger.ErrorContext(bg, "failed to build ride created event", zap.Error(err))
			return
		}
		if err := s.publisher.Publish(bg, eventbus.SubjectRideCreated, event); err != nil {
			logger.ErrorContext(bg, "failed to publish ride created event",
				zap.String("ride_id", ride.ID.String()),
				zap.Error(err),
			)
		}
	})
}

// ConfirmRide assigns the ride to the driver. The store's conditional
// update arbitrates concurrent confirmations: exactly one driver wins,
// every other caller gets a state conflict.
func (s *Service) ConfirmRide(ctx context.Context, rideID, driverID uuid.UUID) (*Ride, error) {
	ride, err := s.store.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != StatusPending {
		return nil, conflictForStatus(ride.Status)
	}

	eta := s.estimateArrival(ctx, driverID, ride.PickupLatitude, ride.PickupLongitude)

	won, err := s.store.Confirm(ctx, rideID, driverID, eta, time.Now())
	if err != nil {
		return nil, err
	}
	if !won {
		// Lost the race; report the state that beat us
		current, err := s.store.GetByID(ctx, rideID)
		if err != nil {
			return nil, err
		}
		return nil, conflictForStatus(current.Status)
	}

	s.bestEffort(ctx, "mark driver busy", func() error {
		return s.drivers.SetAvailability(ctx, driverID, false)
	})

	ride, err = s.store.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "ride confirmed",
		zap.String("ride_id", rideID.String()),
		zap.String("driver_id", driverID.String()),
	)

	s.notifyUser(ride.PassengerID, "ride_accepted", ride)
	s.publishLifecycle(ctx, eventbus.SubjectRideAccepted, ride)

	return ride.Sanitized(), nil
}

// estimateArrival computes the driver's ETA to the pickup point from their
// last known position. Best effort: any failure falls back to a fixed
// estimate instead of failing the confirmation.
func (s *Service) estimateArrival(ctx context.Context, driverID uuid.UUID, pickupLat, pickupLng float64) *int {
	fallback := s.dispatch.FallbackETAMin

	lat, lng, err := s.drivers.Coordinates(ctx, driverID)
	if err != nil {
		logger.DebugContext(ctx, "driver location unknown, using fallback ETA",
			zap.String("driver_id", driverID.String()),
		)
		return &fallback
	}

	distanceKm := geo.Haversine(lat, lng, pickupLat, pickupLng)
	minutes := geo.EstimateMinutes(distanceKm, s.dispatch.AverageSpeedKmh)
	if minutes <= 0 {
		minutes = 1
	}
	return &minutes
}

// StartRide verifies the passenger's start code and begins the trip
func (s *Service) StartRide(ctx context.Context, rideID, driverID uuid.UUID, code string) (*Ride, error) {
	ride, err := s.store.GetByIDForDriver(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}
	if ride.Status != StatusAccepted {
		return nil, conflictForStatus(ride.Status)
	}
	if !otp.Matches(ride.StartCode, code) {
		return nil, common.NewInvalidOTPError()
	}

	ok, err := s.store.Start(ctx, rideID, driverID, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.store.GetByID(ctx, rideID)
		if err != nil {
			return nil, err
		}
		return nil, conflictForStatus(current.Status)
	}

	ride, err = s.store.GetByIDForDriver(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "ride started",
		zap.String("ride_id", rideID.String()),
		zap.String("driver_id", driverID.String()),
	)

	s.notifyUser(ride.PassengerID, "ride_started", ride)
	s.publishLifecycle(ctx, eventbus.SubjectRideStarted, ride)

	return ride.Sanitized(), nil
}

// EndRide completes the trip and settles statistics for both parties
func (s *Service) EndRide(ctx context.Context, rideID, driverID uuid.UUID) (*Ride, error) {
	ride, err := s.store.GetByIDForDriver(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}
	if ride.Status != StatusOngoing {
		return nil, conflictForStatus(ride.Status)
	}

	ok, err := s.store.Complete(ctx, rideID, driverID, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.store.GetByID(ctx, rideID)
		if err != nil {
			return nil, err
		}
		return nil, conflictForStatus(current.Status)
	}

	earnings := ride.FinalPrice
	if earnings == 0 {
		earnings = ride.Fare
	}

	s.bestEffort(ctx, "driver completion stats", func() error {
		return s.drivers.RecordCompletion(ctx, driverID, earnings)
	})
	s.bestEffort(ctx, "passenger completion stats", func() error {
		return s.passengers.RecordCompletion(ctx, ride.PassengerID)
	})
	s.bestEffort(ctx, "reopen driver availability", func() error {
		return s.drivers.SetAvailability(ctx, driverID, true)
	})

	ride, err = s.store.GetByIDForDriver(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "ride completed",
		zap.String("ride_id", rideID.String()),
		zap.String("driver_id", driverID.String()),
		zap.Int64("final_price", ride.FinalPrice),
	)

	s.notifyUser(ride.PassengerID, "ride_completed", ride)
	s.publishLifecycle(ctx, eventbus.SubjectRideCompleted, ride)

	return ride.Sanitized(), nil
}

// CancelRide cancels the ride on behalf of either party
func (s *Service) CancelRide(ctx context.Context, rideID uuid.UUID, cancelledBy string, callerID uuid.UUID, reason string) (*Ride, error) {
	if cancelledBy != PartyPassenger && cancelledBy != PartyDriver {
		return nil, common.NewValidationError("cancelled_by must be passenger or driver")
	}

	ride, err := s.store.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParty(ride, cancelledBy, callerID); err != nil {
		return nil, err
	}
	if ride.Status.Terminal() {
		return nil, conflictForStatus(ride.Status)
	}

	wasAccepted := ride.Status == StatusAccepted

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	ok, err := s.store.Cancel(ctx, rideID, cancelledBy, reasonPtr, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.store.GetByID(ctx, rideID)
		if err != nil {
			return nil, err
		}
		return nil, conflictForStatus(current.Status)
	}

	switch cancelledBy {
	case PartyPassenger:
		s.bestEffort(ctx, "passenger cancellation stats", func() error {
			return s.passengers.RecordCancellation(ctx, ride.PassengerID)
		})
	case PartyDriver:
		if ride.DriverID != nil {
			driverID := *ride.DriverID
			s.bestEffort(ctx, "driver cancellation stats", func() error {
				return s.drivers.RecordCancellation(ctx, driverID)
			})
		}
	}

	// A driver mid-assignment goes back into the pool
	if ride.DriverID != nil && wasAccepted {
		driverID := *ride.DriverID
		s.bestEffort(ctx, "reopen driver availability", func() error {
			return s.drivers.SetAvailability(ctx, driverID, true)
		})
	}

	ride, err = s.store.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "ride cancelled",
		zap.String("ride_id", rideID.String()),
		zap.String("cancelled_by", cancelledBy),
	)

	// Tell whichever party did not initiate
	if cancelledBy == PartyPassenger {
		if ride.DriverID != nil {
			s.notifyUser(*ride.DriverID, "ride_cancelled", ride.Sanitized())
		}
	} else {
		s.notifyUser(ride.PassengerID, "ride_cancelled", ride)
	}
	s.publishLifecycle(ctx, eventbus.SubjectRideCancelled, ride)

	if cancelledBy == PartyDriver {
		return ride.Sanitized(), nil
	}
	return ride, nil
}

// RateRide writes one half of the bidirectional rating and folds the stars
// into the rated party's running average
func (s *Service) RateRide(ctx context.Context, rideID uuid.UUID, ratedBy string, callerID uuid.UUID, stars int, comment string) (*Ride, error) {
	if stars < 1 || stars > 5 {
		return nil, common.NewValidationError("stars must be between 1 and 5")
	}
	if ratedBy != PartyPassenger && ratedBy != PartyDriver {
		return nil, common.NewValidationError("rated_by must be passenger or driver")
	}

	ride, err := s.store.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParty(ride, ratedBy, callerID); err != nil {
		return nil, err
	}
	if ride.Status != StatusCompleted {
		return nil, common.NewStateConflictError("only completed rides can be rated")
	}

	entry := RatingEntry{Stars: stars, Comment: comment, RatedAt: time.Now()}
	if err := s.store.SetRating(ctx, rideID, ratedBy, entry); err != nil {
		return nil, err
	}

	// The rated party is the other side of the trip
	switch ratedBy {
	case PartyPassenger:
		if ride.DriverID != nil {
			driverID := *ride.DriverID
			s.bestEffort(ctx, "driver rating aggregate", func() error {
				return s.drivers.ApplyRating(ctx, driverID, stars)
			})
		}
	case PartyDriver:
		s.bestEffort(ctx, "passenger rating aggregate", func() error {
			return s.passengers.ApplyRating(ctx, ride.PassengerID, stars)
		})
	}

	ride, err = s.store.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if ratedBy == PartyDriver {
		return ride.Sanitized(), nil
	}
	return ride, nil
}

// GetRide returns the ride scoped to the caller. Drivers never see the
// start code, and a ride the caller is not part of reads as not found.
func (s *Service) GetRide(ctx context.Context, rideID, callerID uuid.UUID, role string) (*Ride, error) {
	ride, err := s.store.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParty(ride, role, callerID); err != nil {
		return nil, err
	}

	if role == PartyDriver {
		return ride.Sanitized(), nil
	}
	return ride, nil
}

// authorizeParty treats a ride the caller does not own as not found
func (s *Service) authorizeParty(ride *Ride, party string, callerID uuid.UUID) error {
	switch party {
	case PartyPassenger:
		if ride.PassengerID != callerID {
			return common.NewNotFoundError("ride not found")
		}
	case PartyDriver:
		if ride.DriverID == nil || *ride.DriverID != callerID {
			return common.NewNotFoundError("ride not found")
		}
	default:
		return common.NewValidationError("unknown party role")
	}
	return nil
}

func (s *Service) notifyUser(userID uuid.UUID, eventType string, ride *Ride) {
	s.notifier.SendToUser(userID.String(), &websocket.Message{
		Type:      eventType,
		RideID:    ride.ID.String(),
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"ride": ride},
	})
}

func (s *Service) publishLifecycle(ctx context.Context, subject string, ride *Ride) {
	var driverID uuid.UUID
	if ride.DriverID != nil {
		driverID = *ride.DriverID
	}

	var data interface{}
	switch subject {
	case eventbus.SubjectRideAccepted:
		var eta time.Time
		if ride.AcceptedAt != nil {
			eta = *ride.AcceptedAt
		}
		data = eventbus.RideAcceptedData{
			RideID:           ride.ID,
			PassengerID:      ride.PassengerID,
			DriverID:         driverID,
			PickupLatitude:   ride.PickupLatitude,
			PickupLongitude:  ride.PickupLongitude,
			DropoffLatitude:  ride.DropoffLatitude,
			DropoffLongitude: ride.DropoffLongitude,
			AcceptedAt:       eta,
		}
	case eventbus.SubjectRideStarted:
		var at time.Time
		if ride.StartedAt != nil {
			at = *ride.StartedAt
		}
		data = eventbus.RideStartedData{
			RideID:      ride.ID,
			PassengerID: ride.PassengerID,
			DriverID:    driverID,
			StartedAt:   at,
		}
	case eventbus.SubjectRideCompleted:
		var at time.Time
		if ride.CompletedAt != nil {
			at = *ride.CompletedAt
		}
		data = eventbus.RideCompletedData{
			RideID:          ride.ID,
			PassengerID:     ride.PassengerID,
			DriverID:        driverID,
			FinalPrice:      ride.FinalPrice,
			DistanceMeters:  ride.DistanceMeters,
			DurationSeconds: ride.DurationSeconds,
			CompletedAt:     at,
		}
	case eventbus.SubjectRideCancelled:
		var at time.Time
		if ride.CancelledAt != nil {
			at = *ride.CancelledAt
		}
		cancelledBy := ""
		if ride.CancelledBy != nil {
			cancelledBy = *ride.CancelledBy
		}
		reason := ""
		if ride.CancelReason != nil {
			reason = *ride.CancelReason
		}
		data = eventbus.RideCancelledData{
			RideID:      ride.ID,
			PassengerID: ride.PassengerID,
			DriverID:    driverID,
			CancelledBy: cancelledBy,
			Reason:      reason,
			CancelledAt: at,
		}
	default:
		return
	}

	async.Go(ctx, "publish-"+subject, func(bg context.Context) {
		event, err := eventbus.NewEvent(subject, "rides", data)
		if err != nil {
			logger.ErrorContext(bg, "failed to build lifecycle event", zap.Error(err))
			return
		}
		if err := s.publisher.Publish(bg, subject, event); err != nil {
			logger.ErrorContext(bg, "failed to publish lifecycle event",
				zap.String("subject", subject),
				zap.String("ride_id", ride.ID.String()),
				zap.Error(err),
			)
		}
	})
}
