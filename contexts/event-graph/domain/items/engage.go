package items

import (
	"inviter/contexts/event-graph/domain/keys"
)

const (
	AttrName              = "name"
	AttrValue             = "value"
	AttrParticipationType = "participationType"
	AttrCapacity          = "capacity"
	AttrClaimedSpots      = "claimedSpots"
)

const (
	ParticipationTicketNeeded    = "TICKET_NEEDED"
	ParticipationTicketPurchased = "TICKET_PURCHASED"
	ParticipationTicketExtra     = "TICKET_EXTRA"
	ParticipationSection         = "SECTION"
	ParticipationClaimedSpot     = "CLAIMED_SPOT"
)

// Attribute is an arbitrary UUID-keyed key/value pair on a hangout.
type Attribute struct {
	HangoutID   string
	AttributeID string
	Name        string
	Value       string
}

func (a Attribute) Item() (Item, error) {
	pk, err := keys.HangoutPK(a.HangoutID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.AttributeSK(a.AttributeID)
	if err != nil {
		return nil, err
	}
	return Item{
		AttrPK:    pk,
		AttrSK:    sk,
		AttrName:  a.Name,
		AttrValue: a.Value,
	}, nil
}

func AttributeFromItem(item Item) Attribute {
	hangoutID, _ := keys.ParseHangoutPK(item.PK())
	attributeID, _ := keys.ParseAttributeSK(item.SK())
	return Attribute{
		HangoutID:   hangoutID,
		AttributeID: attributeID,
		Name:        item.String(AttrName),
		Value:       item.String(AttrValue),
	}
}

func (a Attribute) Summary() AttributeSummary {
	return AttributeSummary{AttributeID: a.AttributeID, Name: a.Name, Value: a.Value}
}

// Participation records a user's ticket/section/spot state for a hangout.
type Participation struct {
	HangoutID       string
	ParticipationID string
	UserID          string
	UserName        string
	Type            string
	CreatedAt       int64
}

func (p Participation) Item() (Item, error) {
	pk, err := keys.HangoutPK(p.HangoutID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.ParticipationSK(p.ParticipationID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:                pk,
		AttrSK:                sk,
		AttrUserID:            p.UserID,
		AttrParticipationType: p.Type,
		AttrCreatedAt:         p.CreatedAt,
	}
	setIfString(item, AttrUserName, p.UserName)
	return item, nil
}

func ParticipationFromItem(item Item) Participation {
	hangoutID, _ := keys.ParseHangoutPK(item.PK())
	participationID, _ := keys.ParseParticipationSK(item.SK())
	return Participation{
		HangoutID:       hangoutID,
		ParticipationID: participationID,
		UserID:          item.String(AttrUserID),
		UserName:        item.String(AttrUserName),
		Type:            item.String(AttrParticipationType),
		CreatedAt:       item.Int64(AttrCreatedAt),
	}
}

// ReservationOffer holds spots a user offers to claim for others.
// Capacity-constrained claims are guarded by claimedSpots < capacity.
type ReservationOffer struct {
	HangoutID    string
	OfferID      string
	UserID       string
	UserName     string
	Capacity     int
	ClaimedSpots int
	Notes        string
	CreatedAt    int64
}

func (o ReservationOffer) Item() (Item, error) {
	pk, err := keys.HangoutPK(o.HangoutID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.OfferSK(o.OfferID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:           pk,
		AttrSK:           sk,
		AttrUserID:       o.UserID,
		AttrCapacity:     o.Capacity,
		AttrClaimedSpots: o.ClaimedSpots,
		AttrCreatedAt:    o.CreatedAt,
	}
	setIfString(item, AttrUserName, o.UserName)
	setIfString(item, AttrNotes, o.Notes)
	return item, nil
}

func ReservationOfferFromItem(item Item) ReservationOffer {
	hangoutID, _ := keys.ParseHangoutPK(item.PK())
	offerID, _ := keys.ParseOfferSK(item.SK())
	return ReservationOffer{
		HangoutID:    hangoutID,
		OfferID:      offerID,
		UserID:       item.String(AttrUserID),
		UserName:     item.String(AttrUserName),
		Capacity:     item.Int(AttrCapacity),
		ClaimedSpots: item.Int(AttrClaimedSpots),
		Notes:        item.String(AttrNotes),
		CreatedAt:    item.Int64(AttrCreatedAt),
	}
}

func (o ReservationOffer) Summary() OfferSummary {
	return OfferSummary{
		OfferID:      o.OfferID,
		UserID:       o.UserID,
		Capacity:     o.Capacity,
		ClaimedSpots: o.ClaimedSpots,
	}
}
