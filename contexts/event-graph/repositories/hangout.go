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

type HangoutRepository struct {
	Store  ports.Store
	Logger *slog.Logger
}

// HangoutDetail is the full item collection of one hangout partition,
// bucketed by sort-key shape. It is assembled from exactly one partition
// query.
type HangoutDetail struct {
	Hangout        items.HangoutMetadata
	Polls          []items.Poll
	Options        []items.PollOption
	Votes          []items.Vote
	Cars           []items.Car
	Riders         []items.CarRider
	NeedsRide      []items.NeedsRide
	Interests      []items.Interest
	Attributes     []items.Attribute
	Participations []items.Participation
	Offers         []items.ReservationOffer
}

// Create writes the canonical hangout plus every pointer in transact
// chunks. The canonical goes in the first chunk guarded against
// pre-existence; extraOps (feed validator bumps) ride in the same chunks.
func (r *HangoutRepository) Create(ctx context.Context, hangout items.HangoutMetadata, pointers []items.HangoutPointer, extraOps []ports.TransactOp) error {
	ops, err := r.CreateOps(hangout, pointers)
	if err != nil {
		return err
	}
	ops = append(ops, extraOps...)
	for _, chunk := range chunkOps(ops) {
		if err := r.Store.Transact(ctx, chunk); err != nil {
			if _, canceled := ports.AsTransactionCanceled(err); canceled {
				return domainerrors.ErrAlreadyExists
			}
			return logError(r.Logger, "hangout_repo_create_failed", mapStoreErr(err), "hangout_id", hangout.HangoutID)
		}
	}
	return nil
}

// CreateOps builds the transact members that write a canonical hangout and
// its pointer fan-out, for callers composing larger transactional units.
func (r *HangoutRepository) CreateOps(hangout items.HangoutMetadata, pointers []items.HangoutPointer) ([]ports.TransactOp, error) {
	canonicalItem, err := hangout.Item()
	if err != nil {
		return nil, err
	}
	ops := []ports.TransactOp{{Put: &ports.PutOp{Item: canonicalItem, Condition: ports.IfNotExists()}}}
	for _, pointer := range pointers {
		pointerItem, err := pointer.Item()
		if err != nil {
			return nil, err
		}
		ops = append(ops, ports.TransactOp{Put: &ports.PutOp{Item: pointerItem}})
	}
	return ops, nil
}

func (r *HangoutRepository) GetMetadata(ctx context.Context, hangoutID string) (items.HangoutMetadata, error) {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return items.HangoutMetadata{}, domainerrors.Invalid("hangoutId", err.Error())
	}
	item, found, err := r.Store.Get(ctx, pk, keys.Metadata)
	if err != nil {
		return items.HangoutMetadata{}, logError(r.Logger, "hangout_repo_get_failed", mapStoreErr(err), "hangout_id", hangoutID)
	}
	if !found {
		return items.HangoutMetadata{}, domainerrors.ErrNotFound
	}
	return items.HangoutMetadataFromItem(item), nil
}

// LoadDetail is the read backbone: one partition query, then pure
// classification. Closed and past polls are included by design.
func (r *HangoutRepository) LoadDetail(ctx context.Context, hangoutID string) (HangoutDetail, error) {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return HangoutDetail{}, domainerrors.Invalid("hangoutId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk})
	if err != nil {
		return HangoutDetail{}, logError(r.Logger, "hangout_repo_load_detail_failed", mapStoreErr(err), "hangout_id", hangoutID)
	}
	detail := HangoutDetail{}
	foundCanonical := false
	for _, item := range page.Items {
		switch keys.ClassifyIn(item.PK(), item.SK()) {
		case keys.KindHangoutCanonical:
			detail.Hangout = items.HangoutMetadataFromItem(item)
			foundCanonical = true
		case keys.KindPoll:
			detail.Polls = append(detail.Polls, items.PollFromItem(item))
		case keys.KindPollOption:
			detail.Options = append(detail.Options, items.PollOptionFromItem(item))
		case keys.KindVote:
			detail.Votes = append(detail.Votes, items.VoteFromItem(item))
		case keys.KindCar:
			detail.Cars = append(detail.Cars, items.CarFromItem(item))
		case keys.KindRider:
			detail.Riders = append(detail.Riders, items.CarRiderFromItem(item))
		case keys.KindNeedsRide:
			detail.NeedsRide = append(detail.NeedsRide, items.NeedsRideFromItem(item))
		case keys.KindInterest:
			detail.Interests = append(detail.Interests, items.InterestFromItem(item))
		case keys.KindAttribute:
			detail.Attributes = append(detail.Attributes, items.AttributeFromItem(item))
		case keys.KindParticipation:
			detail.Participations = append(detail.Participations, items.ParticipationFromItem(item))
		case keys.KindOffer:
			detail.Offers = append(detail.Offers, items.ReservationOfferFromItem(item))
		}
	}
	if !foundCanonical {
		return HangoutDetail{}, domainerrors.ErrNotFound
	}
	return detail, nil
}

// UpdateCanonical applies an optimistic-concurrency patch; version moves to
// expectedVersion+1 in the same write that guards on it.
func (r *HangoutRepository) UpdateCanonical(ctx context.Context, hangoutID string, set map[string]any, expectedVersion int64) error {
	op, err := r.CanonicalUpdateOp(hangoutID, set, expectedVersion)
	if err != nil {
		return err
	}
	err = r.Store.Update(ctx, op.Update.PK, op.Update.SK, op.Update.Update, op.Update.Condition)
	if errors.Is(err, ports.ErrConditionFailed) {
		return domainerrors.ErrConcurrencyConflict
	}
	if err != nil {
		return logError(r.Logger, "hangout_repo_update_canonical_failed", mapStoreErr(err), "hangout_id", hangoutID)
	}
	return nil
}

// CanonicalUpdateOp builds the version-guarded canonical patch for use
// inside a larger transact.
func (r *HangoutRepository) CanonicalUpdateOp(hangoutID string, set map[string]any, expectedVersion int64) (ports.TransactOp, error) {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return ports.TransactOp{}, domainerrors.Invalid("hangoutId", err.Error())
	}
	patch := make(map[string]any, len(set)+1)
	for name, value := range set {
		patch[name] = value
	}
	patch[items.AttrVersion] = expectedVersion + 1
	return ports.TransactOp{Update: &ports.UpdateOp{
		PK:        pk,
		SK:        keys.Metadata,
		Update:    ports.Update{Set: patch},
		Condition: ports.IfVersion(expectedVersion),
	}}, nil
}

// PointerUpdateOp builds an existence-guarded pointer patch for one target
// partition.
func (r *HangoutRepository) PointerUpdateOp(partitionPK, hangoutID string, set map[string]any) (ports.TransactOp, error) {
	sk, err := keys.HangoutPointerSK(hangoutID)
	if err != nil {
		return ports.TransactOp{}, domainerrors.Invalid("hangoutId", err.Error())
	}
	return ports.TransactOp{Update: &ports.UpdateOp{
		PK:        partitionPK,
		SK:        sk,
		Update:    ports.Update{Set: set},
		Condition: ports.IfExists(),
	}}, nil
}

// PointerAddOp builds an existence-guarded numeric delta on one pointer
// (participant counts).
func (r *HangoutRepository) PointerAddOp(partitionPK, hangoutID string, add map[string]int64) (ports.TransactOp, error) {
	sk, err := keys.HangoutPointerSK(hangoutID)
	if err != nil {
		return ports.TransactOp{}, domainerrors.Invalid("hangoutId", err.Error())
	}
	return ports.TransactOp{Update: &ports.UpdateOp{
		PK:        partitionPK,
		SK:        sk,
		Update:    ports.Update{Add: add},
		Condition: ports.IfExists(),
	}}, nil
}

// Transact runs caller-assembled ops; updates that touch the canonical, its
// pointers, and group feed validators go through here as one write.
func (r *HangoutRepository) Transact(ctx context.Context, ops []ports.TransactOp) error {
	for _, chunk := range chunkOps(ops) {
		if err := r.Store.Transact(ctx, chunk); err != nil {
			if _, canceled := ports.AsTransactionCanceled(err); canceled {
				return domainerrors.ErrConcurrencyConflict
			}
			return logError(r.Logger, "hangout_repo_transact_failed", mapStoreErr(err))
		}
	}
	return nil
}

// DeleteHangoutItems removes the whole hangout partition. Idempotent.
func (r *HangoutRepository) DeleteHangoutItems(ctx context.Context, hangoutID string) error {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk})
	if err != nil {
		return logError(r.Logger, "hangout_repo_delete_scan_failed", mapStoreErr(err), "hangout_id", hangoutID)
	}
	if len(page.Items) == 0 {
		return nil
	}
	ops := make([]ports.BatchOp, 0, len(page.Items))
	for _, item := range page.Items {
		ops = append(ops, ports.BatchOp{DeletePK: pk, DeleteSK: item.SK()})
	}
	if err := r.Store.BatchWrite(ctx, ops); err != nil {
		return logError(r.Logger, "hangout_repo_delete_batch_failed", mapStoreErr(err), "hangout_id", hangoutID)
	}
	return nil
}

// DeletePointer removes one pointer with an existence guard; a pointer that
// is already gone is success (cascades re-run idempotently).
func (r *HangoutRepository) DeletePointer(ctx context.Context, partitionPK, hangoutID string) error {
	sk, err := keys.HangoutPointerSK(hangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	err = r.Store.Delete(ctx, partitionPK, sk, ports.IfExists())
	if errors.Is(err, ports.ErrConditionFailed) {
		return nil
	}
	if err != nil {
		return logError(r.Logger, "hangout_repo_delete_pointer_failed", mapStoreErr(err),
			"partition", partitionPK, "hangout_id", hangoutID)
	}
	return nil
}

// chunkOps splits a transact op list into store-sized chunks.
func chunkOps(ops []ports.TransactOp) [][]ports.TransactOp {
	var chunks [][]ports.TransactOp
	for start := 0; start < len(ops); start += ports.MaxTransactSize {
		end := start + ports.MaxTransactSize
		if end > len(ops) {
			end = len(ops)
		}
		chunks = append(chunks, ops[start:end])
	}
	return chunks
}
