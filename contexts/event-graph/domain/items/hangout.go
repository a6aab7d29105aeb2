package items

import (
	"inviter/contexts/event-graph/domain/keys"
)

const (
	AttrTitle                = "title"
	AttrDescription          = "description"
	AttrTimeInfo             = "timeInfo"
	AttrLocation             = "location"
	AttrVisibility           = "visibility"
	AttrAssociatedGroups     = "associatedGroups"
	AttrInvitedUsers         = "invitedUsers"
	AttrHosts                = "hosts"
	AttrCarpoolEnabled       = "carpoolEnabled"
	AttrTicketLink           = "ticketLink"
	AttrTicketsRequired      = "ticketsRequired"
	AttrDiscountCode         = "discountCode"
	AttrExternalID           = "externalId"
	AttrExternalSource       = "externalSource"
	AttrIsGeneratedTitle     = "isGeneratedTitle"
	AttrSeriesID             = "seriesId"
	AttrStatus               = "status"
	AttrParticipantCount     = "participantCount"
	AttrPollsSummary         = "pollsSummary"
	AttrCarsSummary          = "carsSummary"
	AttrAttributesSummary    = "attributes"
	AttrParticipationSummary = "participationSummary"
)

const (
	StatusScheduled       = "SCHEDULED"
	StatusNeedsScheduling = "NEEDS_SCHEDULING"

	VisibilityPublic  = "PUBLIC"
	VisibilityPrivate = "PRIVATE"
)

// HangoutMetadata is the canonical hangout record and the source of truth
// for every pointer fan-out target: one pointer per associated group, one
// per explicitly invited user.
type HangoutMetadata struct {
	HangoutID        string
	Title            string
	Description      string
	TimeInfo         map[string]string
	StartTimestamp   int64
	EndTimestamp     int64
	Location         map[string]string
	Visibility       string
	Status           string
	MainImagePath    string
	AssociatedGroups []string
	InvitedUsers     []string
	Hosts            []string
	CarpoolEnabled   bool
	TicketLink       string
	TicketsRequired  bool
	DiscountCode     string
	ExternalID       string
	ExternalSource   string
	IsGeneratedTitle bool
	SeriesID         string
	ParticipantCount int
	Version          int64
}

func (h HangoutMetadata) IsHost(userID string) bool {
	for _, host := range h.Hosts {
		if host == userID {
			return true
		}
	}
	return false
}

func (h HangoutMetadata) Item() (Item, error) {
	pk, err := keys.HangoutPK(h.HangoutID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:               pk,
		AttrSK:               keys.Metadata,
		AttrTitle:            h.Title,
		AttrTimeInfo:         h.TimeInfo,
		AttrStartTimestamp:   h.StartTimestamp,
		AttrEndTimestamp:     h.EndTimestamp,
		AttrVisibility:       h.Visibility,
		AttrStatus:           h.Status,
		AttrAssociatedGroups: h.AssociatedGroups,
		AttrInvitedUsers:     h.InvitedUsers,
		AttrHosts:            h.Hosts,
		AttrCarpoolEnabled:   h.CarpoolEnabled,
		AttrParticipantCount: h.ParticipantCount,
		AttrVersion:          h.Version,
	}
	if h.Location != nil {
		item[AttrLocation] = h.Location
	}
	setIfString(item, AttrDescription, h.Description)
	setIfString(item, AttrMainImagePath, h.MainImagePath)
	setIfString(item, AttrTicketLink, h.TicketLink)
	setIfString(item, AttrDiscountCode, h.DiscountCode)
	setIfString(item, AttrExternalID, h.ExternalID)
	setIfString(item, AttrExternalSource, h.ExternalSource)
	setIfString(item, AttrSeriesID, h.SeriesID)
	if h.TicketsRequired {
		item[AttrTicketsRequired] = true
	}
	if h.IsGeneratedTitle {
		item[AttrIsGeneratedTitle] = true
	}
	return item, nil
}

func HangoutMetadataFromItem(item Item) HangoutMetadata {
	hangoutID, _ := keys.ParseHangoutPK(item.PK())
	return HangoutMetadata{
		HangoutID:        hangoutID,
		Title:            item.String(AttrTitle),
		Description:      item.String(AttrDescription),
		TimeInfo:         item.StringMap(AttrTimeInfo),
		StartTimestamp:   item.Int64(AttrStartTimestamp),
		EndTimestamp:     item.Int64(AttrEndTimestamp),
		Location:         item.StringMap(AttrLocation),
		Visibility:       item.String(AttrVisibility),
		Status:           item.String(AttrStatus),
		MainImagePath:    item.String(AttrMainImagePath),
		AssociatedGroups: item.StringSlice(AttrAssociatedGroups),
		InvitedUsers:     item.StringSlice(AttrInvitedUsers),
		Hosts:            item.StringSlice(AttrHosts),
		CarpoolEnabled:   item.Bool(AttrCarpoolEnabled),
		TicketLink:       item.String(AttrTicketLink),
		TicketsRequired:  item.Bool(AttrTicketsRequired),
		DiscountCode:     item.String(AttrDiscountCode),
		ExternalID:       item.String(AttrExternalID),
		ExternalSource:   item.String(AttrExternalSource),
		IsGeneratedTitle: item.Bool(AttrIsGeneratedTitle),
		SeriesID:         item.String(AttrSeriesID),
		ParticipantCount: item.Int(AttrParticipantCount),
		Version:          item.Int64(AttrVersion),
	}
}

// PollsSummary and CarsSummary are the compact aggregates a list view
// renders without loading the hangout partition.
type PollsSummary struct {
	PollCount int `json:"pollCount"`
	VoteCount int `json:"voteCount"`
}

type CarsSummary struct {
	CarCount       int `json:"carCount"`
	AvailableSeats int `json:"availableSeats"`
}

// UserSummary identifies a user in denormalized list fields.
type UserSummary struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

// OfferSummary mirrors a reservation offer inside the participation summary.
type OfferSummary struct {
	OfferID      string `json:"offerId"`
	UserID       string `json:"userId"`
	Capacity     int    `json:"capacity"`
	ClaimedSpots int    `json:"claimedSpots"`
}

// ParticipationSummary is the aggregated ticket/reservation state carried on
// every hangout pointer. Buckets are capped by the maintaining service.
type ParticipationSummary struct {
	NeedingTicket    []UserSummary  `json:"needingTicket,omitempty"`
	WithTicket       []UserSummary  `json:"withTicket,omitempty"`
	ClaimedSpot      []UserSummary  `json:"claimedSpot,omitempty"`
	ExtraTicketCount int            `json:"extraTicketCount"`
	Offers           []OfferSummary `json:"offers,omitempty"`
}

// AttributeSummary mirrors an attribute on the pointer attributes field.
type AttributeSummary struct {
	AttributeID string `json:"attributeId"`
	Name        string `json:"name"`
	Value       string `json:"value"`
}

// HangoutPointer is the denormalized projection of a hangout into a group
// or user partition. PartitionPK is GROUP#{gid} or USER#{uid}; gsi1pk always
// equals the partition key so the time index serves the same partition.
type HangoutPointer struct {
	PartitionPK          string
	HangoutID            string
	Title                string
	Status               string
	TimeInfo             map[string]string
	Location             map[string]string
	ParticipantCount     int
	MainImagePath        string
	PollsSummary         PollsSummary
	CarsSummary          CarsSummary
	Attributes           []AttributeSummary
	ParticipationSummary ParticipationSummary
	ExternalID           string
	ExternalSource       string
	IsGeneratedTitle     bool
	StartTimestamp       int64
	EndTimestamp         int64
	SeriesID             string
}

func (p HangoutPointer) Item() (Item, error) {
	sk, err := keys.HangoutPointerSK(p.HangoutID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:                   p.PartitionPK,
		AttrSK:                   sk,
		AttrGSI1PK:               p.PartitionPK,
		AttrTitle:                p.Title,
		AttrStatus:               p.Status,
		AttrTimeInfo:             p.TimeInfo,
		AttrParticipantCount:     p.ParticipantCount,
		AttrStartTimestamp:       p.StartTimestamp,
		AttrEndTimestamp:         p.EndTimestamp,
		AttrPollsSummary:         structToMap(p.PollsSummary),
		AttrCarsSummary:          structToMap(p.CarsSummary),
		AttrParticipationSummary: structToMap(p.ParticipationSummary),
	}
	if p.Location != nil {
		item[AttrLocation] = p.Location
	}
	if len(p.Attributes) > 0 {
		item[AttrAttributesSummary] = sliceToMaps(p.Attributes)
	}
	setIfString(item, AttrMainImagePath, p.MainImagePath)
	setIfString(item, AttrExternalID, p.ExternalID)
	setIfString(item, AttrExternalSource, p.ExternalSource)
	setIfString(item, AttrSeriesID, p.SeriesID)
	if p.IsGeneratedTitle {
		item[AttrIsGeneratedTitle] = true
	}
	return item, nil
}

func HangoutPointerFromItem(item Item) HangoutPointer {
	hangoutID, _ := keys.ParseHangoutPointerSK(item.SK())
	pointer := HangoutPointer{
		PartitionPK:      item.PK(),
		HangoutID:        hangoutID,
		Title:            item.String(AttrTitle),
		Status:           item.String(AttrStatus),
		TimeInfo:         item.StringMap(AttrTimeInfo),
		Location:         item.StringMap(AttrLocation),
		ParticipantCount: item.Int(AttrParticipantCount),
		MainImagePath:    item.String(AttrMainImagePath),
		ExternalID:       item.String(AttrExternalID),
		ExternalSource:   item.String(AttrExternalSource),
		IsGeneratedTitle: item.Bool(AttrIsGeneratedTitle),
		StartTimestamp:   item.Int64(AttrStartTimestamp),
		EndTimestamp:     item.Int64(AttrEndTimestamp),
		SeriesID:         item.String(AttrSeriesID),
	}
	mapToStruct(item.Map(AttrPollsSummary), &pointer.PollsSummary)
	mapToStruct(item.Map(AttrCarsSummary), &pointer.CarsSummary)
	mapToStruct(item.Map(AttrParticipationSummary), &pointer.ParticipationSummary)
	if raw, ok := item[AttrAttributesSummary].([]any); ok {
		for _, entry := range raw {
			if m, ok := entry.(map[string]any); ok {
				var summary AttributeSummary
				mapToStruct(m, &summary)
				pointer.Attributes = append(pointer.Attributes, summary)
			}
		}
	}
	return pointer
}

// Interest marks a user as interested in a hangout; the pointer
// participantCount counts these.
type Interest struct {
	HangoutID string
	UserID    string
	UserName  string
	CreatedAt int64
}

func (i Interest) Item() (Item, error) {
	pk, err := keys.HangoutPK(i.HangoutID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.InterestSK(i.UserID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:        pk,
		AttrSK:        sk,
		AttrCreatedAt: i.CreatedAt,
	}
	setIfString(item, AttrUserName, i.UserName)
	return item, nil
}

func InterestFromItem(item Item) Interest {
	hangoutID, _ := keys.ParseHangoutPK(item.PK())
	userID, _ := keys.ParseInterestSK(item.SK())
	return Interest{
		HangoutID: hangoutID,
		UserID:    userID,
		UserName:  item.String(AttrUserName),
		CreatedAt: item.Int64(AttrCreatedAt),
	}
}
