package application

import (
	"context"
	"log/slog"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/ports"
	"inviter/contexts/event-graph/repositories"
)

// maxPlusOneCount bounds how many extra seats one rider can bring along.
const maxPlusOneCount = 7

type CarpoolService struct {
	Carpool  *repositories.CarpoolRepository
	Hangouts *repositories.HangoutRepository
	Groups   *repositories.GroupRepository
	Clock    ports.Clock
	Logger   *slog.Logger
}

type OfferCarInput struct {
	UserID        string
	UserName      string
	HangoutID     string
	TotalCapacity int
	Notes         string
}

// OfferCar creates the caller's car. The driver occupies one seat, so a
// four-seat car starts with three available.
func (s CarpoolService) OfferCar(ctx context.Context, in OfferCarInput) (items.Car, error) {
	if in.TotalCapacity < 2 {
		return items.Car{}, domainerrors.Invalid("totalCapacity", "a car needs at least two seats")
	}
	hangout, err := s.Hangouts.GetMetadata(ctx, in.HangoutID)
	if err != nil {
		return items.Car{}, err
	}
	if !hangout.CarpoolEnabled {
		return items.Car{}, domainerrors.Invalid("hangoutId", "carpool is not enabled for this hangout")
	}
	car := items.Car{
		HangoutID:      in.HangoutID,
		DriverID:       in.UserID,
		DriverName:     in.UserName,
		TotalCapacity:  in.TotalCapacity,
		AvailableSeats: in.TotalCapacity - 1,
		Notes:          in.Notes,
	}
	if err := s.Carpool.OfferCar(ctx, car); err != nil {
		return items.Car{}, err
	}
	if err := s.refreshSummary(ctx, hangout); err != nil {
		return items.Car{}, err
	}
	// the driver no longer needs a ride
	_ = s.Carpool.CancelRideRequest(ctx, in.HangoutID, in.UserID)
	return car, nil
}

type ReserveSeatInput struct {
	UserID       string
	UserName     string
	HangoutID    string
	DriverID     string
	PlusOneCount int
	Notes        string
}

// ReserveSeat claims 1+plusOneCount seats at most once: the conditional
// pair in the repository rejects a duplicate rider or an oversell, and the
// summary refresh afterwards keeps the pointers honest.
func (s CarpoolService) ReserveSeat(ctx context.Context, in ReserveSeatInput) error {
	if in.PlusOneCount < 0 || in.PlusOneCount > maxPlusOneCount {
		return domainerrors.Invalid("plusOneCount", "plus-one count must be between 0 and 7")
	}
	if in.UserID == in.DriverID {
		return domainerrors.Invalid("driverId", "drivers do not reserve their own seats")
	}
	hangout, err := s.Hangouts.GetMetadata(ctx, in.HangoutID)
	if err != nil {
		return err
	}
	rider := items.CarRider{
		HangoutID:    in.HangoutID,
		DriverID:     in.DriverID,
		RiderID:      in.UserID,
		RiderName:    in.UserName,
		PlusOneCount: in.PlusOneCount,
		Notes:        in.Notes,
	}
	if err := s.Carpool.ReserveSeat(ctx, rider); err != nil {
		return err
	}
	_ = s.Carpool.CancelRideRequest(ctx, in.HangoutID, in.UserID)
	return s.refreshSummary(ctx, hangout)
}

// ReleaseSeat gives the caller's seats back.
func (s CarpoolService) ReleaseSeat(ctx context.Context, userID, hangoutID, driverID string) error {
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return err
	}
	rider, err := s.Carpool.GetRider(ctx, hangoutID, driverID, userID)
	if err != nil {
		return err
	}
	if err := s.Carpool.ReleaseSeat(ctx, rider); err != nil {
		return err
	}
	return s.refreshSummary(ctx, hangout)
}

// UpdateCapacity resizes the caller's car. Shrinking below the currently
// occupied seats fails ErrCapacityConflict; riders are never evicted.
func (s CarpoolService) UpdateCapacity(ctx context.Context, userID, hangoutID string, newCapacity int) error {
	if newCapacity < 2 {
		return domainerrors.Invalid("totalCapacity", "a car needs at least two seats")
	}
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return err
	}
	car, err := s.Carpool.GetCar(ctx, hangoutID, userID)
	if err != nil {
		return err
	}
	if err := s.Carpool.UpdateCapacity(ctx, hangoutID, userID, car.TotalCapacity, newCapacity); err != nil {
		return err
	}
	return s.refreshSummary(ctx, hangout)
}

// CancelCar withdraws the caller's car and every reservation in it.
func (s CarpoolService) CancelCar(ctx context.Context, userID, hangoutID string) error {
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return err
	}
	if _, err := s.Carpool.GetCar(ctx, hangoutID, userID); err != nil {
		return err
	}
	if err := s.Carpool.CancelCar(ctx, hangoutID, userID); err != nil {
		return err
	}
	serviceLogger(s.Logger, "car_canceled").Info("car canceled",
		"hangout_id", hangoutID, "driver_id", userID)
	return s.refreshSummary(ctx, hangout)
}

// RequestRide flags the caller as needing a seat.
func (s CarpoolService) RequestRide(ctx context.Context, userID, hangoutID, notes string) error {
	if _, err := s.Hangouts.GetMetadata(ctx, hangoutID); err != nil {
		return err
	}
	return s.Carpool.RequestRide(ctx, items.NeedsRide{
		HangoutID: hangoutID,
		UserID:    userID,
		Notes:     notes,
		CreatedAt: s.Clock.Now().UnixMilli(),
	})
}

func (s CarpoolService) CancelRideRequest(ctx context.Context, userID, hangoutID string) error {
	return s.Carpool.CancelRideRequest(ctx, hangoutID, userID)
}

// refreshSummary recomputes the carsSummary from the hangout partition and
// writes it onto every pointer. Seat counts move under conditional
// arithmetic first; this projection follows.
func (s CarpoolService) refreshSummary(ctx context.Context, hangout items.HangoutMetadata) error {
	detail, err := s.Hangouts.LoadDetail(ctx, hangout.HangoutID)
	if err != nil {
		return err
	}
	summary := carsSummaryOf(detail.Cars)
	partitions, err := pointerPartitions(hangout)
	if err != nil {
		return err
	}
	ops := make([]ports.TransactOp, 0, len(partitions))
	for _, partition := range partitions {
		op, err := s.Hangouts.PointerUpdateOp(partition, hangout.HangoutID,
			map[string]any{items.AttrCarsSummary: items.AsMap(summary)})
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	bumps, err := groupFeedBumpOps(s.Groups, hangout, s.Clock.Now().UnixMilli())
	if err != nil {
		return err
	}
	ops = append(ops, bumps...)
	if len(ops) == 0 {
		return nil
	}
	return s.Hangouts.Transact(ctx, ops)
}
