package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
)

func (e *testEnv) newCarpoolHangout(t *testing.T, hostID, groupID string) items.HangoutMetadata {
	t.Helper()
	return e.newHangout(t, CreateHangoutInput{
		UserID:           hostID,
		Title:            "Road trip",
		Time:             exactTime("2026-09-12T08:00:00Z"),
		AssociatedGroups: []string{groupID},
		CarpoolEnabled:   true,
	})
}

func TestOfferCarSeatsExcludeDriver(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	group := env.newGroup(t, admin, false)
	hangout := env.newCarpoolHangout(t, admin, group.GroupID)

	car, err := env.carpoolSvc.OfferCar(context.Background(), OfferCarInput{
		UserID: admin, UserName: "Admin", HangoutID: hangout.HangoutID, TotalCapacity: 4,
	})
	require.NoError(t, err)
	require.Equal(t, 3, car.AvailableSeats)

	// the pointer summary reflects the new car
	pointers, err := env.groups.ListHangoutPointers(context.Background(), group.GroupID)
	require.NoError(t, err)
	require.Equal(t, items.CarsSummary{CarCount: 1, AvailableSeats: 3}, pointers[0].CarsSummary)

	// one car per driver per hangout
	_, err = env.carpoolSvc.OfferCar(context.Background(), OfferCarInput{
		UserID: admin, UserName: "Admin", HangoutID: hangout.HangoutID, TotalCapacity: 2,
	})
	require.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestOfferCarValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	group := env.newGroup(t, admin, false)

	disabled := env.newHangout(t, CreateHangoutInput{
		UserID:           admin,
		Title:            "No carpool",
		Time:             exactTime("2026-09-12T08:00:00Z"),
		AssociatedGroups: []string{group.GroupID},
	})
	_, err := env.carpoolSvc.OfferCar(context.Background(), OfferCarInput{
		UserID: admin, HangoutID: disabled.HangoutID, TotalCapacity: 4,
	})
	require.True(t, domainerrors.IsInvalid(err))

	enabled := env.newCarpoolHangout(t, admin, group.GroupID)
	_, err = env.carpoolSvc.OfferCar(context.Background(), OfferCarInput{
		UserID: admin, HangoutID: enabled.HangoutID, TotalCapacity: 1,
	})
	require.True(t, domainerrors.IsInvalid(err))
}

func TestReserveSeatGuards(t *testing.T) {
	env := newTestEnv(t)
	admin, riderA, riderB := newID(), newID(), newID()
	group := env.newGroup(t, admin, false)
	env.addMember(t, group.GroupID, riderA, "Rider A")
	env.addMember(t, group.GroupID, riderB, "Rider B")
	hangout := env.newCarpoolHangout(t, admin, group.GroupID)

	_, err := env.carpoolSvc.OfferCar(context.Background(), OfferCarInput{
		UserID: admin, UserName: "Admin", HangoutID: hangout.HangoutID, TotalCapacity: 3,
	})
	require.NoError(t, err)

	// drivers cannot ride with themselves
	err = env.carpoolSvc.ReserveSeat(context.Background(), ReserveSeatInput{
		UserID: admin, HangoutID: hangout.HangoutID, DriverID: admin,
	})
	require.True(t, domainerrors.IsInvalid(err))

	// plus-one count is bounded on both sides
	err = env.carpoolSvc.ReserveSeat(context.Background(), ReserveSeatInput{
		UserID: riderA, HangoutID: hangout.HangoutID, DriverID: admin, PlusOneCount: -1,
	})
	require.True(t, domainerrors.IsInvalid(err))
	err = env.carpoolSvc.ReserveSeat(context.Background(), ReserveSeatInput{
		UserID: riderA, HangoutID: hangout.HangoutID, DriverID: admin, PlusOneCount: 8,
	})
	require.True(t, domainerrors.IsInvalid(err))

	// rider plus one guest takes both free seats
	require.NoError(t, env.carpoolSvc.ReserveSeat(context.Background(), ReserveSeatInput{
		UserID: riderA, UserName: "Rider A", HangoutID: hangout.HangoutID,
		DriverID: admin, PlusOneCount: 1,
	}))

	err = env.carpoolSvc.ReserveSeat(context.Background(), ReserveSeatInput{
		UserID: riderA, HangoutID: hangout.HangoutID, DriverID: admin,
	})
	require.ErrorIs(t, err, domainerrors.ErrAlreadyReserved)

	err = env.carpoolSvc.ReserveSeat(context.Background(), ReserveSeatInput{
		UserID: riderB, UserName: "Rider B", HangoutID: hangout.HangoutID, DriverID: admin,
	})
	require.ErrorIs(t, err, domainerrors.ErrNoSeatsAvailable)

	pointers, err := env.groups.ListHangoutPointers(context.Background(), group.GroupID)
	require.NoError(t, err)
	require.Equal(t, items.CarsSummary{CarCount: 1, AvailableSeats: 0}, pointers[0].CarsSummary)
}

func TestReleaseSeatRestoresCapacity(t *testing.T) {
	env := newTestEnv(t)
	admin, rider := newID(), newID()
	group := env.newGroup(t, admin, false)
	env.addMember(t, group.GroupID, rider, "Rider")
	hangout := env.newCarpoolHangout(t, admin, group.GroupID)

	_, err := env.carpoolSvc.OfferCar(context.Background(), OfferCarInput{
		UserID: admin, UserName: "Admin", HangoutID: hangout.HangoutID, TotalCapacity: 3,
	})
	require.NoError(t, err)
	require.NoError(t, env.carpoolSvc.ReserveSeat(context.Background(), ReserveSeatInput{
		UserID: rider, UserName: "Rider", HangoutID: hangout.HangoutID,
		DriverID: admin, PlusOneCount: 1,
	}))

	require.NoError(t, env.carpoolSvc.ReleaseSeat(context.Background(), rider, hangout.HangoutID, admin))

	detail, err := env.hangouts.LoadDetail(context.Background(), hangout.HangoutID)
	require.NoError(t, err)
	require.Len(t, detail.Cars, 1)
	require.Equal(t, 2, detail.Cars[0].AvailableSeats)
	require.Empty(t, detail.Riders)

	// releasing twice finds nothing to release
	require.ErrorIs(t,
		env.carpoolSvc.ReleaseSeat(context.Background(), rider, hangout.HangoutID, admin),
		domainerrors.ErrNotFound)
}

func TestUpdateCapacityNeverEvictsRiders(t *testing.T) {
	env := newTestEnv(t)
	admin, rider := newID(), newID()
	group := env.newGroup(t, admin, false)
	env.addMember(t, group.GroupID, rider, "Rider")
	hangout := env.newCarpoolHangout(t, admin, group.GroupID)

	_, err := env.carpoolSvc.OfferCar(context.Background(), OfferCarInput{
		UserID: admin, UserName: "Admin", HangoutID: hangout.HangoutID, TotalCapacity: 4,
	})
	require.NoError(t, err)
	require.NoError(t, env.carpoolSvc.ReserveSeat(context.Background(), ReserveSeatInput{
		UserID: rider, UserName: "Rider", HangoutID: hangout.HangoutID,
		DriverID: admin, PlusOneCount: 1,
	}))

	// 4 seats, driver + rider + guest occupy 3: shrinking to 2 would evict
	err = env.carpoolSvc.UpdateCapacity(context.Background(), admin, hangout.HangoutID, 2)
	require.ErrorIs(t, err, domainerrors.ErrCapacityConflict)

	require.NoError(t, env.carpoolSvc.UpdateCapacity(context.Background(), admin, hangout.HangoutID, 3))
	car, err := env.hangouts.LoadDetail(context.Background(), hangout.HangoutID)
	require.NoError(t, err)
	require.Equal(t, 3, car.Cars[0].TotalCapacity)
	require.Equal(t, 0, car.Cars[0].AvailableSeats)

	// growing back frees the difference
	require.NoError(t, env.carpoolSvc.UpdateCapacity(context.Background(), admin, hangout.HangoutID, 5))
	car, err = env.hangouts.LoadDetail(context.Background(), hangout.HangoutID)
	require.NoError(t, err)
	require.Equal(t, 2, car.Cars[0].AvailableSeats)
}

func TestCancelCarCascadesRiders(t *testing.T) {
	env := newTestEnv(t)
	admin, rider := newID(), newID()
	group := env.newGroup(t, admin, false)
	env.addMember(t, group.GroupID, rider, "Rider")
	hangout := env.newCarpoolHangout(t, admin, group.GroupID)

	_, err := env.carpoolSvc.OfferCar(context.Background(), OfferCarInput{
		UserID: admin, UserName: "Admin", HangoutID: hangout.HangoutID, TotalCapacity: 3,
	})
	require.NoError(t, err)
	require.NoError(t, env.carpoolSvc.ReserveSeat(context.Background(), ReserveSeatInput{
		UserID: rider, UserName: "Rider", HangoutID: hangout.HangoutID, DriverID: admin,
	}))

	require.NoError(t, env.carpoolSvc.CancelCar(context.Background(), admin, hangout.HangoutID))

	detail, err := env.hangouts.LoadDetail(context.Background(), hangout.HangoutID)
	require.NoError(t, err)
	require.Empty(t, detail.Cars)
	require.Empty(t, detail.Riders)

	pointers, err := env.groups.ListHangoutPointers(context.Background(), group.GroupID)
	require.NoError(t, err)
	require.Equal(t, items.CarsSummary{}, pointers[0].CarsSummary)
}

func TestRideRequestsClearOnReservation(t *testing.T) {
	env := newTestEnv(t)
	admin, rider := newID(), newID()
	group := env.newGroup(t, admin, false)
	env.addMember(t, group.GroupID, rider, "Rider")
	hangout := env.newCarpoolHangout(t, admin, group.GroupID)

	require.NoError(t, env.carpoolSvc.RequestRide(context.Background(), rider, hangout.HangoutID, "near downtown"))
	detail, err := env.hangouts.LoadDetail(context.Background(), hangout.HangoutID)
	require.NoError(t, err)
	require.Len(t, detail.NeedsRide, 1)
	require.Equal(t, "near downtown", detail.NeedsRide[0].Notes)

	_, err = env.carpoolSvc.OfferCar(context.Background(), OfferCarInput{
		UserID: admin, UserName: "Admin", HangoutID: hangout.HangoutID, TotalCapacity: 3,
	})
	require.NoError(t, err)
	require.NoError(t, env.carpoolSvc.ReserveSeat(context.Background(), ReserveSeatInput{
		UserID: rider, UserName: "Rider", HangoutID: hangout.HangoutID, DriverID: admin,
	}))

	detail, err = env.hangouts.LoadDetail(context.Background(), hangout.HangoutID)
	require.NoError(t, err)
	require.Empty(t, detail.NeedsRide)
}
