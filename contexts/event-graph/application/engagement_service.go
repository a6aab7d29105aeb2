package application

import (
	"context"
	"log/slog"
	"strings"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/ports"
	"inviter/contexts/event-graph/repositories"
)

// reservedAttributeNames are rejected case-insensitively, as are the
// system_/internal_ prefixes: attribute names share a namespace with the
// table's own fields.
var reservedAttributeNames = map[string]struct{}{
	"id":       {},
	"type":     {},
	"system":   {},
	"internal": {},
	"pk":       {},
	"sk":       {},
	"gsi1pk":   {},
	"gsi1sk":   {},
}

func attributeNameReserved(name string) bool {
	lowered := strings.ToLower(strings.TrimSpace(name))
	if _, hit := reservedAttributeNames[lowered]; hit {
		return true
	}
	return strings.HasPrefix(lowered, "system_") ||
		strings.HasPrefix(lowered, "internal_") ||
		strings.HasPrefix(lowered, "gsi")
}

// EngagementService manages the hangout engagement rows and keeps the
// denormalized attributes and participationSummary pointer fields aligned
// with the partition's actual contents.
type EngagementService struct {
	Engage   *repositories.EngagementRepository
	Hangouts *repositories.HangoutRepository
	Groups   *repositories.GroupRepository
	Clock    ports.Clock
	IDs      ports.IDGenerator
	Logger   *slog.Logger
}

// SetAttribute writes a key/value attribute on the hangout and mirrors the
// attribute list onto every pointer in the same transaction.
func (s EngagementService) SetAttribute(ctx context.Context, userID, hangoutID, name, value string) (items.Attribute, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return items.Attribute{}, domainerrors.Invalid("name", "attribute name is required")
	}
	if attributeNameReserved(name) {
		return items.Attribute{}, domainerrors.ErrReservedName
	}
	detail, err := s.Hangouts.LoadDetail(ctx, hangoutID)
	if err != nil {
		return items.Attribute{}, err
	}
	if err := requireHost(detail.Hangout, userID); err != nil {
		return items.Attribute{}, err
	}

	attribute := items.Attribute{
		HangoutID:   hangoutID,
		AttributeID: s.IDs.NewID(),
		Name:        name,
		Value:       value,
	}
	for _, existing := range detail.Attributes {
		if strings.EqualFold(existing.Name, name) {
			attribute.AttributeID = existing.AttributeID
			break
		}
	}
	next := upsertAttribute(detail.Attributes, attribute)
	extraOps, err := s.attributePointerOps(detail.Hangout, next)
	if err != nil {
		return items.Attribute{}, err
	}
	if err := s.Engage.PutAttribute(ctx, attribute, extraOps); err != nil {
		return items.Attribute{}, err
	}
	return attribute, nil
}

// DeleteAttribute removes an attribute and its pointer mirror entries.
func (s EngagementService) DeleteAttribute(ctx context.Context, userID, hangoutID, attributeID string) error {
	detail, err := s.Hangouts.LoadDetail(ctx, hangoutID)
	if err != nil {
		return err
	}
	if err := requireHost(detail.Hangout, userID); err != nil {
		return err
	}
	remaining := make([]items.Attribute, 0, len(detail.Attributes))
	found := false
	for _, attribute := range detail.Attributes {
		if attribute.AttributeID == attributeID {
			found = true
			continue
		}
		remaining = append(remaining, attribute)
	}
	if !found {
		return domainerrors.ErrNotFound
	}
	extraOps, err := s.attributePointerOps(detail.Hangout, remaining)
	if err != nil {
		return err
	}
	return s.Engage.DeleteAttribute(ctx, hangoutID, attributeID, extraOps)
}

type ParticipationInput struct {
	UserID    string
	UserName  string
	HangoutID string
	Type      string
}

// SetParticipation records the caller's ticket/section/spot state and
// refreshes the participation summary on every pointer.
func (s EngagementService) SetParticipation(ctx context.Context, in ParticipationInput) (items.Participation, error) {
	switch in.Type {
	case items.ParticipationTicketNeeded, items.ParticipationTicketPurchased,
		items.ParticipationTicketExtra, items.ParticipationSection, items.ParticipationClaimedSpot:
	default:
		return items.Participation{}, domainerrors.Invalid("participationType", "unknown participation type")
	}
	detail, err := s.Hangouts.LoadDetail(ctx, in.HangoutID)
	if err != nil {
		return items.Participation{}, err
	}

	participation := items.Participation{
		HangoutID:       in.HangoutID,
		ParticipationID: s.IDs.NewID(),
		UserID:          in.UserID,
		UserName:        in.UserName,
		Type:            in.Type,
		CreatedAt:       s.Clock.Now().UnixMilli(),
	}
	next := make([]items.Participation, 0, len(detail.Participations)+1)
	for _, existing := range detail.Participations {
		// one row per (user, type); re-setting replaces it
		if existing.UserID == in.UserID && existing.Type == in.Type {
			participation.ParticipationID = existing.ParticipationID
			continue
		}
		next = append(next, existing)
	}
	next = append(next, participation)

	extraOps, err := s.participationPointerOps(detail.Hangout, next, detail.Offers)
	if err != nil {
		return items.Participation{}, err
	}
	if err := s.Engage.PutParticipation(ctx, participation, extraOps); err != nil {
		return items.Participation{}, err
	}
	return participation, nil
}

// ClearParticipation deletes one participation row; only its owner may.
func (s EngagementService) ClearParticipation(ctx context.Context, userID, hangoutID, participationID string) error {
	detail, err := s.Hangouts.LoadDetail(ctx, hangoutID)
	if err != nil {
		return err
	}
	remaining := make([]items.Participation, 0, len(detail.Participations))
	found := false
	for _, participation := range detail.Participations {
		if participation.ParticipationID == participationID {
			if participation.UserID != userID {
				return domainerrors.ErrForbidden
			}
			found = true
			continue
		}
		remaining = append(remaining, participation)
	}
	if !found {
		return domainerrors.ErrNotFound
	}
	extraOps, err := s.participationPointerOps(detail.Hangout, remaining, detail.Offers)
	if err != nil {
		return err
	}
	return s.Engage.DeleteParticipation(ctx, hangoutID, participationID, extraOps)
}

type OfferInput struct {
	UserID    string
	UserName  string
	HangoutID string
	Capacity  int
	Notes     string
}

// CreateOffer posts a capacity-bounded reservation offer.
func (s EngagementService) CreateOffer(ctx context.Context, in OfferInput) (items.ReservationOffer, error) {
	if in.Capacity < 1 {
		return items.ReservationOffer{}, domainerrors.Invalid("capacity", "offer capacity must be positive")
	}
	detail, err := s.Hangouts.LoadDetail(ctx, in.HangoutID)
	if err != nil {
		return items.ReservationOffer{}, err
	}
	offer := items.ReservationOffer{
		HangoutID: in.HangoutID,
		OfferID:   s.IDs.NewID(),
		UserID:    in.UserID,
		UserName:  in.UserName,
		Capacity:  in.Capacity,
		Notes:     in.Notes,
		CreatedAt: s.Clock.Now().UnixMilli(),
	}
	next := append(append([]items.ReservationOffer{}, detail.Offers...), offer)
	extraOps, err := s.participationPointerOps(detail.Hangout, detail.Participations, next)
	if err != nil {
		return items.ReservationOffer{}, err
	}
	if err := s.Engage.PutOffer(ctx, offer, extraOps); err != nil {
		return items.ReservationOffer{}, err
	}
	return offer, nil
}

// ClaimSpot takes one spot on an offer; the claim and the claimer's
// CLAIMED_SPOT participation land atomically.
func (s EngagementService) ClaimSpot(ctx context.Context, userID, userName, hangoutID, offerID string) error {
	detail, err := s.Hangouts.LoadDetail(ctx, hangoutID)
	if err != nil {
		return err
	}
	var offer *items.ReservationOffer
	for i := range detail.Offers {
		if detail.Offers[i].OfferID == offerID {
			offer = &detail.Offers[i]
			break
		}
	}
	if offer == nil {
		return domainerrors.ErrNotFound
	}
	for _, participation := range detail.Participations {
		if participation.UserID == userID && participation.Type == items.ParticipationClaimedSpot {
			return domainerrors.ErrAlreadyReserved
		}
	}

	claim := items.Participation{
		HangoutID:       hangoutID,
		ParticipationID: s.IDs.NewID(),
		UserID:          userID,
		UserName:        userName,
		Type:            items.ParticipationClaimedSpot,
		CreatedAt:       s.Clock.Now().UnixMilli(),
	}
	claimed := *offer
	claimed.ClaimedSpots++
	nextOffers := replaceOffer(detail.Offers, claimed)
	nextParticipations := append(append([]items.Participation{}, detail.Participations...), claim)
	extraOps, err := s.participationPointerOps(detail.Hangout, nextParticipations, nextOffers)
	if err != nil {
		return err
	}
	return s.Engage.ClaimOfferSpot(ctx, *offer, claim, extraOps)
}

// ReleaseSpot gives a claimed spot back.
func (s EngagementService) ReleaseSpot(ctx context.Context, userID, hangoutID, offerID, participationID string) error {
	detail, err := s.Hangouts.LoadDetail(ctx, hangoutID)
	if err != nil {
		return err
	}
	var claim *items.Participation
	remaining := make([]items.Participation, 0, len(detail.Participations))
	for i, participation := range detail.Participations {
		if participation.ParticipationID == participationID {
			claim = &detail.Participations[i]
			continue
		}
		remaining = append(remaining, participation)
	}
	if claim == nil {
		return domainerrors.ErrNotFound
	}
	if claim.UserID != userID {
		return domainerrors.ErrForbidden
	}
	nextOffers := make([]items.ReservationOffer, 0, len(detail.Offers))
	for _, offer := range detail.Offers {
		if offer.OfferID == offerID && offer.ClaimedSpots > 0 {
			offer.ClaimedSpots--
		}
		nextOffers = append(nextOffers, offer)
	}
	extraOps, err := s.participationPointerOps(detail.Hangout, remaining, nextOffers)
	if err != nil {
		return err
	}
	return s.Engage.ReleaseOfferSpot(ctx, hangoutID, offerID, participationID, extraOps)
}

// WithdrawOffer removes the caller's offer.
func (s EngagementService) WithdrawOffer(ctx context.Context, userID, hangoutID, offerID string) error {
	detail, err := s.Hangouts.LoadDetail(ctx, hangoutID)
	if err != nil {
		return err
	}
	remaining := make([]items.ReservationOffer, 0, len(detail.Offers))
	found := false
	for _, offer := range detail.Offers {
		if offer.OfferID == offerID {
			if offer.UserID != userID {
				return domainerrors.ErrForbidden
			}
			found = true
			continue
		}
		remaining = append(remaining, offer)
	}
	if !found {
		return domainerrors.ErrNotFound
	}
	extraOps, err := s.participationPointerOps(detail.Hangout, detail.Participations, remaining)
	if err != nil {
		return err
	}
	return s.Engage.DeleteOffer(ctx, hangoutID, offerID, extraOps)
}

func (s EngagementService) attributePointerOps(hangout items.HangoutMetadata, attributes []items.Attribute) ([]ports.TransactOp, error) {
	partitions, err := pointerPartitions(hangout)
	if err != nil {
		return nil, err
	}
	summaries := attributesSummaryOf(attributes)
	set := map[string]any{items.AttrAttributesSummary: items.AsMaps(summaries)}
	ops := make([]ports.TransactOp, 0, len(partitions))
	for _, partition := range partitions {
		op, err := s.Hangouts.PointerUpdateOp(partition, hangout.HangoutID, set)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	bumps, err := groupFeedBumpOps(s.Groups, hangout, s.Clock.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	return append(ops, bumps...), nil
}

func (s EngagementService) participationPointerOps(hangout items.HangoutMetadata, participations []items.Participation, offers []items.ReservationOffer) ([]ports.TransactOp, error) {
	partitions, err := pointerPartitions(hangout)
	if err != nil {
		return nil, err
	}
	summary := participationSummaryOf(participations, offers)
	set := map[string]any{items.AttrParticipationSummary: items.AsMap(summary)}
	ops := make([]ports.TransactOp, 0, len(partitions))
	for _, partition := range partitions {
		op, err := s.Hangouts.PointerUpdateOp(partition, hangout.HangoutID, set)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	bumps, err := groupFeedBumpOps(s.Groups, hangout, s.Clock.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	return append(ops, bumps...), nil
}

func upsertAttribute(attributes []items.Attribute, next items.Attribute) []items.Attribute {
	out := make([]items.Attribute, 0, len(attributes)+1)
	for _, attribute := range attributes {
		if attribute.AttributeID == next.AttributeID {
			continue
		}
		out = append(out, attribute)
	}
	return append(out, next)
}

func replaceOffer(offers []items.ReservationOffer, next items.ReservationOffer) []items.ReservationOffer {
	out := make([]items.ReservationOffer, 0, len(offers))
	for _, offer := range offers {
		if offer.OfferID == next.OfferID {
			out = append(out, next)
			continue
		}
		out = append(out, offer)
	}
	return out
}
