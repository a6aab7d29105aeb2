package items

import (
	"inviter/contexts/event-graph/domain/keys"
)

const (
	AttrDriverID       = "driverId"
	AttrDriverName     = "driverName"
	AttrRiderID        = "riderId"
	AttrRiderName      = "riderName"
	AttrTotalCapacity  = "totalCapacity"
	AttrAvailableSeats = "availableSeats"
	AttrPlusOneCount   = "plusOneCount"
	AttrNotes          = "notes"
)

// Car is a carpool offer. availableSeats starts at totalCapacity-1 (the
// driver occupies one seat) and is only ever mutated through conditional
// arithmetic so concurrent claims cannot oversell.
type Car struct {
	HangoutID      string
	DriverID       string
	DriverName     string
	TotalCapacity  int
	AvailableSeats int
	Notes          string
}

func (c Car) Item() (Item, error) {
	pk, err := keys.HangoutPK(c.HangoutID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.CarSK(c.DriverID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:             pk,
		AttrSK:             sk,
		AttrDriverID:       c.DriverID,
		AttrTotalCapacity:  c.TotalCapacity,
		AttrAvailableSeats: c.AvailableSeats,
	}
	setIfString(item, AttrDriverName, c.DriverName)
	setIfString(item, AttrNotes, c.Notes)
	return item, nil
}

func CarFromItem(item Item) Car {
	hangoutID, _ := keys.ParseHangoutPK(item.PK())
	driverID, _ := keys.ParseCarSK(item.SK())
	return Car{
		HangoutID:      hangoutID,
		DriverID:       driverID,
		DriverName:     item.String(AttrDriverName),
		TotalCapacity:  item.Int(AttrTotalCapacity),
		AvailableSeats: item.Int(AttrAvailableSeats),
		Notes:          item.String(AttrNotes),
	}
}

// CarRider occupies 1 + PlusOneCount seats.
type CarRider struct {
	HangoutID    string
	DriverID     string
	RiderID      string
	RiderName    string
	PlusOneCount int
	Notes        string
}

func (r CarRider) TotalSeatsOccupied() int {
	return 1 + r.PlusOneCount
}

func (r CarRider) Item() (Item, error) {
	pk, err := keys.HangoutPK(r.HangoutID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.RiderSK(r.DriverID, r.RiderID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:           pk,
		AttrSK:           sk,
		AttrDriverID:     r.DriverID,
		AttrRiderID:      r.RiderID,
		AttrPlusOneCount: r.PlusOneCount,
	}
	setIfString(item, AttrRiderName, r.RiderName)
	setIfString(item, AttrNotes, r.Notes)
	return item, nil
}

func CarRiderFromItem(item Item) CarRider {
	hangoutID, _ := keys.ParseHangoutPK(item.PK())
	key, _ := keys.ParseRiderSK(item.SK())
	return CarRider{
		HangoutID:    hangoutID,
		DriverID:     key.DriverID,
		RiderID:      key.RiderID,
		RiderName:    item.String(AttrRiderName),
		PlusOneCount: item.Int(AttrPlusOneCount),
		Notes:        item.String(AttrNotes),
	}
}

// NeedsRide flags a user looking for a seat.
type NeedsRide struct {
	HangoutID string
	UserID    string
	Notes     string
	CreatedAt int64
}

func (n NeedsRide) Item() (Item, error) {
	pk, err := keys.HangoutPK(n.HangoutID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.NeedsRideSK(n.UserID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:        pk,
		AttrSK:        sk,
		AttrUserID:    n.UserID,
		AttrCreatedAt: n.CreatedAt,
	}
	setIfString(item, AttrNotes, n.Notes)
	return item, nil
}

func NeedsRideFromItem(item Item) NeedsRide {
	hangoutID, _ := keys.ParseHangoutPK(item.PK())
	userID, _ := keys.ParseNeedsRideSK(item.SK())
	return NeedsRide{
		HangoutID: hangoutID,
		UserID:    userID,
		Notes:     item.String(AttrNotes),
		CreatedAt: item.Int64(AttrCreatedAt),
	}
}
