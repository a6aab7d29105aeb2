package repositories

import (
	"context"
	"errors"
	"log/slog"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/domain/keys"
	"inviter/contexts/event-graph/ports"
)

// CarpoolRepository owns the seat-count concurrency surface. Seat
// arithmetic happens only through conditional update expressions; the
// repository never reads-modifies-writes a seat count.
type CarpoolRepository struct {
	Store  ports.Store
	Logger *slog.Logger
}

func (r *CarpoolRepository) OfferCar(ctx context.Context, car items.Car) error {
	item, err := car.Item()
	if err != nil {
		return err
	}
	err = r.Store.Put(ctx, item, ports.IfNotExists())
	if errors.Is(err, ports.ErrConditionFailed) {
		return domainerrors.ErrAlreadyExists
	}
	if err != nil {
		return logError(r.Logger, "carpool_repo_offer_failed", mapStoreErr(err),
			"hangout_id", car.HangoutID, "driver_id", car.DriverID)
	}
	return nil
}

func (r *CarpoolRepository) GetCar(ctx context.Context, hangoutID, driverID string) (items.Car, error) {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return items.Car{}, domainerrors.Invalid("hangoutId", err.Error())
	}
	sk, err := keys.CarSK(driverID)
	if err != nil {
		return items.Car{}, domainerrors.Invalid("driverId", err.Error())
	}
	item, found, err := r.Store.Get(ctx, pk, sk)
	if err != nil {
		return items.Car{}, logError(r.Logger, "carpool_repo_get_car_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "driver_id", driverID)
	}
	if !found {
		return items.Car{}, domainerrors.ErrNotFound
	}
	return items.CarFromItem(item), nil
}

// ReserveSeat claims seats with a two-op transaction: the rider put is
// guarded against duplication and the seat decrement against underflow.
// The cancellation reason index tells apart "already reserved" (op 0) from
// "no seats" (op 1).
func (r *CarpoolRepository) ReserveSeat(ctx context.Context, rider items.CarRider) error {
	riderItem, err := rider.Item()
	if err != nil {
		return err
	}
	carPK, _ := keys.HangoutPK(rider.HangoutID)
	carSK, err := keys.CarSK(rider.DriverID)
	if err != nil {
		return domainerrors.Invalid("driverId", err.Error())
	}
	seats := int64(rider.TotalSeatsOccupied())
	err = r.Store.Transact(ctx, []ports.TransactOp{
		{Put: &ports.PutOp{Item: riderItem, Condition: ports.IfNotExists()}},
		{Update: &ports.UpdateOp{
			PK:        carPK,
			SK:        carSK,
			Update:    ports.Update{Add: map[string]int64{items.AttrAvailableSeats: -seats}},
			Condition: ports.IfAtLeast(items.AttrAvailableSeats, seats),
		}},
	})
	if canceled, ok := ports.AsTransactionCanceled(err); ok {
		for _, index := range canceled.FailedIndexes() {
			if index == 0 {
				return domainerrors.ErrAlreadyReserved
			}
		}
		return domainerrors.ErrNoSeatsAvailable
	}
	if err != nil {
		return logError(r.Logger, "carpool_repo_reserve_failed", mapStoreErr(err),
			"hangout_id", rider.HangoutID, "driver_id", rider.DriverID, "rider_id", rider.RiderID)
	}
	return nil
}

func (r *CarpoolRepository) GetRider(ctx context.Context, hangoutID, driverID, riderID string) (items.CarRider, error) {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return items.CarRider{}, domainerrors.Invalid("hangoutId", err.Error())
	}
	sk, err := keys.RiderSK(driverID, riderID)
	if err != nil {
		return items.CarRider{}, domainerrors.Invalid("riderId", err.Error())
	}
	item, found, err := r.Store.Get(ctx, pk, sk)
	if err != nil {
		return items.CarRider{}, logError(r.Logger, "carpool_repo_get_rider_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "driver_id", driverID, "rider_id", riderID)
	}
	if !found {
		return items.CarRider{}, domainerrors.ErrNotFound
	}
	return items.CarRiderFromItem(item), nil
}

// ReleaseSeat refunds the rider's occupied seats in the same transaction
// that removes the rider row.
func (r *CarpoolRepository) ReleaseSeat(ctx context.Context, rider items.CarRider) error {
	pk, _ := keys.HangoutPK(rider.HangoutID)
	riderSK, err := keys.RiderSK(rider.DriverID, rider.RiderID)
	if err != nil {
		return domainerrors.Invalid("riderId", err.Error())
	}
	carSK, _ := keys.CarSK(rider.DriverID)
	seats := int64(rider.TotalSeatsOccupied())
	err = r.Store.Transact(ctx, []ports.TransactOp{
		{Delete: &ports.DeleteOp{PK: pk, SK: riderSK, Condition: ports.IfExists()}},
		{Update: &ports.UpdateOp{
			PK:        pk,
			SK:        carSK,
			Update:    ports.Update{Add: map[string]int64{items.AttrAvailableSeats: seats}},
			Condition: ports.IfExists(),
		}},
	})
	if _, ok := ports.AsTransactionCanceled(err); ok {
		return domainerrors.ErrNotFound
	}
	if err != nil {
		return logError(r.Logger, "carpool_repo_release_failed", mapStoreErr(err),
			"hangout_id", rider.HangoutID, "driver_id", rider.DriverID, "rider_id", rider.RiderID)
	}
	return nil
}

// UpdateCapacity resizes a car. The guard keeps availableSeats non-negative
// after the resize: availableSeats >= oldCapacity - newCapacity.
func (r *CarpoolRepository) UpdateCapacity(ctx context.Context, hangoutID, driverID string, oldCapacity, newCapacity int) error {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	sk, err := keys.CarSK(driverID)
	if err != nil {
		return domainerrors.Invalid("driverId", err.Error())
	}
	delta := int64(newCapacity - oldCapacity)
	required := int64(oldCapacity - newCapacity)
	if required < 0 {
		required = 0
	}
	err = r.Store.Update(ctx, pk, sk, ports.Update{
		Set: map[string]any{items.AttrTotalCapacity: newCapacity},
		Add: map[string]int64{items.AttrAvailableSeats: delta},
	}, ports.IfAtLeast(items.AttrAvailableSeats, required))
	if errors.Is(err, ports.ErrConditionFailed) {
		return domainerrors.ErrCapacityConflict
	}
	if err != nil {
		return logError(r.Logger, "carpool_repo_update_capacity_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "driver_id", driverID)
	}
	return nil
}

// CancelCar deletes the car and every rider row under it.
func (r *CarpoolRepository) CancelCar(ctx context.Context, hangoutID, driverID string) error {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	riderPrefix, err := keys.RiderPrefixSK(driverID)
	if err != nil {
		return domainerrors.Invalid("driverId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk, SortPrefix: riderPrefix})
	if err != nil {
		return logError(r.Logger, "carpool_repo_cancel_scan_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "driver_id", driverID)
	}
	carSK, _ := keys.CarSK(driverID)
	ops := []ports.BatchOp{{DeletePK: pk, DeleteSK: carSK}}
	for _, item := range page.Items {
		ops = append(ops, ports.BatchOp{DeletePK: pk, DeleteSK: item.SK()})
	}
	if err := r.Store.BatchWrite(ctx, ops); err != nil {
		return logError(r.Logger, "carpool_repo_cancel_batch_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "driver_id", driverID)
	}
	return nil
}

func (r *CarpoolRepository) RequestRide(ctx context.Context, request items.NeedsRide) error {
	item, err := request.Item()
	if err != nil {
		return err
	}
	if err := r.Store.Put(ctx, item, ports.NoCondition()); err != nil {
		return logError(r.Logger, "carpool_repo_request_ride_failed", mapStoreErr(err),
			"hangout_id", request.HangoutID, "user_id", request.UserID)
	}
	return nil
}

func (r *CarpoolRepository) CancelRideRequest(ctx context.Context, hangoutID, userID string) error {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	sk, err := keys.NeedsRideSK(userID)
	if err != nil {
		return domainerrors.Invalid("userId", err.Error())
	}
	if err := r.Store.Delete(ctx, pk, sk, ports.NoCondition()); err != nil {
		return logError(r.Logger, "carpool_repo_cancel_request_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "user_id", userID)
	}
	return nil
}
