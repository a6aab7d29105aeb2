package repositories

import (
	"context"
	"log/slog"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/domain/keys"
	"inviter/contexts/event-graph/ports"
)

// EngagementRepository covers the per-hangout engagement rows: attributes,
// participations, reservation offers, and interest marks. All of them live
// in the hangout partition, so summaries can be recomputed from one query.
type EngagementRepository struct {
	Store  ports.Store
	Logger *slog.Logger
}

func (r *EngagementRepository) PutAttribute(ctx context.Context, attribute items.Attribute, extraOps []ports.TransactOp) error {
	item, err := attribute.Item()
	if err != nil {
		return err
	}
	ops := append([]ports.TransactOp{{Put: &ports.PutOp{Item: item}}}, extraOps...)
	if err := r.Store.Transact(ctx, ops); err != nil {
		return logError(r.Logger, "engage_repo_put_attribute_failed", mapStoreErr(err),
			"hangout_id", attribute.HangoutID, "attribute_id", attribute.AttributeID)
	}
	return nil
}

func (r *EngagementRepository) DeleteAttribute(ctx context.Context, hangoutID, attributeID string, extraOps []ports.TransactOp) error {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	sk, err := keys.AttributeSK(attributeID)
	if err != nil {
		return domainerrors.Invalid("attributeId", err.Error())
	}
	ops := append([]ports.TransactOp{{Delete: &ports.DeleteOp{PK: pk, SK: sk, Condition: ports.IfExists()}}}, extraOps...)
	err = r.Store.Transact(ctx, ops)
	if _, canceled := ports.AsTransactionCanceled(err); canceled {
		return domainerrors.ErrNotFound
	}
	if err != nil {
		return logError(r.Logger, "engage_repo_delete_attribute_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "attribute_id", attributeID)
	}
	return nil
}

func (r *EngagementRepository) ListAttributes(ctx context.Context, hangoutID string) ([]items.Attribute, error) {
	page, err := r.queryPrefix(ctx, hangoutID, keys.AttributePrefix, "engage_repo_list_attributes_failed")
	if err != nil {
		return nil, err
	}
	attributes := make([]items.Attribute, 0, len(page))
	for _, item := range page {
		attributes = append(attributes, items.AttributeFromItem(item))
	}
	return attributes, nil
}

func (r *EngagementRepository) PutParticipation(ctx context.Context, participation items.Participation, extraOps []ports.TransactOp) error {
	item, err := participation.Item()
	if err != nil {
		return err
	}
	ops := append([]ports.TransactOp{{Put: &ports.PutOp{Item: item}}}, extraOps...)
	if err := r.Store.Transact(ctx, ops); err != nil {
		return logError(r.Logger, "engage_repo_put_participation_failed", mapStoreErr(err),
			"hangout_id", participation.HangoutID, "participation_id", participation.ParticipationID)
	}
	return nil
}

func (r *EngagementRepository) GetParticipation(ctx context.Context, hangoutID, participationID string) (items.Participation, error) {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return items.Participation{}, domainerrors.Invalid("hangoutId", err.Error())
	}
	sk, err := keys.ParticipationSK(participationID)
	if err != nil {
		return items.Participation{}, domainerrors.Invalid("participationId", err.Error())
	}
	item, found, err := r.Store.Get(ctx, pk, sk)
	if err != nil {
		return items.Participation{}, logError(r.Logger, "engage_repo_get_participation_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "participation_id", participationID)
	}
	if !found {
		return items.Participation{}, domainerrors.ErrNotFound
	}
	return items.ParticipationFromItem(item), nil
}

func (r *EngagementRepository) DeleteParticipation(ctx context.Context, hangoutID, participationID string, extraOps []ports.TransactOp) error {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	sk, err := keys.ParticipationSK(participationID)
	if err != nil {
		return domainerrors.Invalid("participationId", err.Error())
	}
	ops := append([]ports.TransactOp{{Delete: &ports.DeleteOp{PK: pk, SK: sk, Condition: ports.IfExists()}}}, extraOps...)
	err = r.Store.Transact(ctx, ops)
	if _, canceled := ports.AsTransactionCanceled(err); canceled {
		return domainerrors.ErrNotFound
	}
	if err != nil {
		return logError(r.Logger, "engage_repo_delete_participation_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "participation_id", participationID)
	}
	return nil
}

func (r *EngagementRepository) ListParticipations(ctx context.Context, hangoutID string) ([]items.Participation, error) {
	page, err := r.queryPrefix(ctx, hangoutID, keys.ParticipationPrefix, "engage_repo_list_participations_failed")
	if err != nil {
		return nil, err
	}
	participations := make([]items.Participation, 0, len(page))
	for _, item := range page {
		participations = append(participations, items.ParticipationFromItem(item))
	}
	return participations, nil
}

func (r *EngagementRepository) PutOffer(ctx context.Context, offer items.ReservationOffer, extraOps []ports.TransactOp) error {
	item, err := offer.Item()
	if err != nil {
		return err
	}
	ops := append([]ports.TransactOp{{Put: &ports.PutOp{Item: item, Condition: ports.IfNotExists()}}}, extraOps...)
	err = r.Store.Transact(ctx, ops)
	if _, canceled := ports.AsTransactionCanceled(err); canceled {
		return domainerrors.ErrAlreadyExists
	}
	if err != nil {
		return logError(r.Logger, "engage_repo_put_offer_failed", mapStoreErr(err),
			"hangout_id", offer.HangoutID, "offer_id", offer.OfferID)
	}
	return nil
}

func (r *EngagementRepository) GetOffer(ctx context.Context, hangoutID, offerID string) (items.ReservationOffer, error) {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return items.ReservationOffer{}, domainerrors.Invalid("hangoutId", err.Error())
	}
	sk, err := keys.OfferSK(offerID)
	if err != nil {
		return items.ReservationOffer{}, domainerrors.Invalid("offerId", err.Error())
	}
	item, found, err := r.Store.Get(ctx, pk, sk)
	if err != nil {
		return items.ReservationOffer{}, logError(r.Logger, "engage_repo_get_offer_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "offer_id", offerID)
	}
	if !found {
		return items.ReservationOffer{}, domainerrors.ErrNotFound
	}
	return items.ReservationOfferFromItem(item), nil
}

// ClaimOfferSpot takes one spot on an offer and writes the claimer's
// participation row in the same transaction. The guard claimedSpots <
// capacity makes the claim at-most-once under contention.
func (r *EngagementRepository) ClaimOfferSpot(ctx context.Context, offer items.ReservationOffer, claim items.Participation, extraOps []ports.TransactOp) error {
	pk, err := keys.HangoutPK(offer.HangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	offerSK, err := keys.OfferSK(offer.OfferID)
	if err != nil {
		return domainerrors.Invalid("offerId", err.Error())
	}
	claimItem, err := claim.Item()
	if err != nil {
		return err
	}
	ops := []ports.TransactOp{
		{Update: &ports.UpdateOp{
			PK:        pk,
			SK:        offerSK,
			Update:    ports.Update{Add: map[string]int64{items.AttrClaimedSpots: 1}},
			Condition: ports.IfLessThan(items.AttrClaimedSpots, int64(offer.Capacity)),
		}},
		{Put: &ports.PutOp{Item: claimItem, Condition: ports.IfNotExists()}},
	}
	ops = append(ops, extraOps...)
	err = r.Store.Transact(ctx, ops)
	if canceled, ok := ports.AsTransactionCanceled(err); ok {
		for _, index := range canceled.FailedIndexes() {
			if index == 1 {
				return domainerrors.ErrAlreadyReserved
			}
		}
		return domainerrors.ErrNoSeatsAvailable
	}
	if err != nil {
		return logError(r.Logger, "engage_repo_claim_spot_failed", mapStoreErr(err),
			"hangout_id", offer.HangoutID, "offer_id", offer.OfferID)
	}
	return nil
}

// ReleaseOfferSpot refunds a claimed spot and deletes the claimer's
// participation row atomically.
func (r *EngagementRepository) ReleaseOfferSpot(ctx context.Context, hangoutID, offerID, participationID string, extraOps []ports.TransactOp) error {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	offerSK, err := keys.OfferSK(offerID)
	if err != nil {
		return domainerrors.Invalid("offerId", err.Error())
	}
	claimSK, err := keys.ParticipationSK(participationID)
	if err != nil {
		return domainerrors.Invalid("participationId", err.Error())
	}
	ops := []ports.TransactOp{
		{Delete: &ports.DeleteOp{PK: pk, SK: claimSK, Condition: ports.IfExists()}},
		{Update: &ports.UpdateOp{
			PK:        pk,
			SK:        offerSK,
			Update:    ports.Update{Add: map[string]int64{items.AttrClaimedSpots: -1}},
			Condition: ports.IfAtLeast(items.AttrClaimedSpots, 1),
		}},
	}
	ops = append(ops, extraOps...)
	err = r.Store.Transact(ctx, ops)
	if _, canceled := ports.AsTransactionCanceled(err); canceled {
		return domainerrors.ErrNotFound
	}
	if err != nil {
		return logError(r.Logger, "engage_repo_release_spot_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "offer_id", offerID)
	}
	return nil
}

func (r *EngagementRepository) DeleteOffer(ctx context.Context, hangoutID, offerID string, extraOps []ports.TransactOp) error {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	sk, err := keys.OfferSK(offerID)
	if err != nil {
		return domainerrors.Invalid("offerId", err.Error())
	}
	ops := append([]ports.TransactOp{{Delete: &ports.DeleteOp{PK: pk, SK: sk, Condition: ports.IfExists()}}}, extraOps...)
	err = r.Store.Transact(ctx, ops)
	if _, canceled := ports.AsTransactionCanceled(err); canceled {
		return domainerrors.ErrNotFound
	}
	if err != nil {
		return logError(r.Logger, "engage_repo_delete_offer_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "offer_id", offerID)
	}
	return nil
}

func (r *EngagementRepository) ListOffers(ctx context.Context, hangoutID string) ([]items.ReservationOffer, error) {
	page, err := r.queryPrefix(ctx, hangoutID, keys.OfferPrefix, "engage_repo_list_offers_failed")
	if err != nil {
		return nil, err
	}
	offers := make([]items.ReservationOffer, 0, len(page))
	for _, item := range page {
		offers = append(offers, items.ReservationOfferFromItem(item))
	}
	return offers, nil
}

// MarkInterest writes the user's interest row; duplicate marks fail the
// existence guard so the participant count is bumped at most once.
func (r *EngagementRepository) MarkInterest(ctx context.Context, interest items.Interest, extraOps []ports.TransactOp) error {
	item, err := interest.Item()
	if err != nil {
		return err
	}
	ops := append([]ports.TransactOp{{Put: &ports.PutOp{Item: item, Condition: ports.IfNotExists()}}}, extraOps...)
	err = r.Store.Transact(ctx, ops)
	if _, canceled := ports.AsTransactionCanceled(err); canceled {
		return domainerrors.ErrAlreadyExists
	}
	if err != nil {
		return logError(r.Logger, "engage_repo_mark_interest_failed", mapStoreErr(err),
			"hangout_id", interest.HangoutID, "user_id", interest.UserID)
	}
	return nil
}

func (r *EngagementRepository) UnmarkInterest(ctx context.Context, hangoutID, userID string, extraOps []ports.TransactOp) error {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	sk, err := keys.InterestSK(userID)
	if err != nil {
		return domainerrors.Invalid("userId", err.Error())
	}
	ops := append([]ports.TransactOp{{Delete: &ports.DeleteOp{PK: pk, SK: sk, Condition: ports.IfExists()}}}, extraOps...)
	err = r.Store.Transact(ctx, ops)
	if _, canceled := ports.AsTransactionCanceled(err); canceled {
		return domainerrors.ErrNotFound
	}
	if err != nil {
		return logError(r.Logger, "engage_repo_unmark_interest_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "user_id", userID)
	}
	return nil
}

func (r *EngagementRepository) queryPrefix(ctx context.Context, hangoutID, prefix, event string) ([]items.Item, error) {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return nil, domainerrors.Invalid("hangoutId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk, SortPrefix: prefix})
	if err != nil {
		return nil, logError(r.Logger, event, mapStoreErr(err), "hangout_id", hangoutID)
	}
	return page.Items, nil
}
