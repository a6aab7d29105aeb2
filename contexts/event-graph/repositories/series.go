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

type SeriesRepository struct {
	Store  ports.Store
	Logger *slog.Logger
}

// Create writes the canonical series, its group pointers, and any caller
// ops (member-hangout seriesId stamps, feed validator bumps) in chunked
// transacts. The canonical is guarded against pre-existence.
func (r *SeriesRepository) Create(ctx context.Context, series items.SeriesMetadata, pointers []items.SeriesPointer, extraOps []ports.TransactOp) error {
	canonicalItem, err := series.Item()
	if err != nil {
		return err
	}
	ops := []ports.TransactOp{{Put: &ports.PutOp{Item: canonicalItem, Condition: ports.IfNotExists()}}}
	for _, pointer := range pointers {
		pointerItem, err := pointer.Item()
		if err != nil {
			return err
		}
		ops = append(ops, ports.TransactOp{Put: &ports.PutOp{Item: pointerItem}})
	}
	ops = append(ops, extraOps...)
	for _, chunk := range chunkOps(ops) {
		if err := r.Store.Transact(ctx, chunk); err != nil {
			if _, canceled := ports.AsTransactionCanceled(err); canceled {
				return domainerrors.ErrAlreadyExists
			}
			return logError(r.Logger, "series_repo_create_failed", mapStoreErr(err), "series_id", series.SeriesID)
		}
	}
	return nil
}

func (r *SeriesRepository) GetMetadata(ctx context.Context, seriesID string) (items.SeriesMetadata, error) {
	pk, err := keys.SeriesPK(seriesID)
	if err != nil {
		return items.SeriesMetadata{}, domainerrors.Invalid("seriesId", err.Error())
	}
	item, found, err := r.Store.Get(ctx, pk, keys.Metadata)
	if err != nil {
		return items.SeriesMetadata{}, logError(r.Logger, "series_repo_get_failed", mapStoreErr(err), "series_id", seriesID)
	}
	if !found {
		return items.SeriesMetadata{}, domainerrors.ErrNotFound
	}
	return items.SeriesMetadataFromItem(item), nil
}

// UpdateCanonical is the version-guarded canonical patch; membership edits
// go through here so concurrent add/remove cannot lose a member.
func (r *SeriesRepository) UpdateCanonical(ctx context.Context, seriesID string, set map[string]any, expectedVersion int64) error {
	op, err := r.CanonicalUpdateOp(seriesID, set, expectedVersion)
	if err != nil {
		return err
	}
	err = r.Store.Update(ctx, op.Update.PK, op.Update.SK, op.Update.Update, op.Update.Condition)
	if errors.Is(err, ports.ErrConditionFailed) {
		return domainerrors.ErrConcurrencyConflict
	}
	if err != nil {
		return logError(r.Logger, "series_repo_update_failed", mapStoreErr(err), "series_id", seriesID)
	}
	return nil
}

func (r *SeriesRepository) CanonicalUpdateOp(seriesID string, set map[string]any, expectedVersion int64) (ports.TransactOp, error) {
	pk, err := keys.SeriesPK(seriesID)
	if err != nil {
		return ports.TransactOp{}, domainerrors.Invalid("seriesId", err.Error())
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

// PointerUpdateOp patches one group's series pointer inside a larger
// transact.
func (r *SeriesRepository) PointerUpdateOp(groupID, seriesID string, set map[string]any) (ports.TransactOp, error) {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return ports.TransactOp{}, domainerrors.Invalid("groupId", err.Error())
	}
	sk, err := keys.SeriesPointerSK(seriesID)
	if err != nil {
		return ports.TransactOp{}, domainerrors.Invalid("seriesId", err.Error())
	}
	return ports.TransactOp{Update: &ports.UpdateOp{
		PK:        pk,
		SK:        sk,
		Update:    ports.Update{Set: set},
		Condition: ports.IfExists(),
	}}, nil
}

func (r *SeriesRepository) PointerPutOp(pointer items.SeriesPointer) (ports.TransactOp, error) {
	item, err := pointer.Item()
	if err != nil {
		return ports.TransactOp{}, err
	}
	return ports.TransactOp{Put: &ports.PutOp{Item: item}}, nil
}

func (r *SeriesRepository) PointerDeleteOp(groupID, seriesID string) (ports.TransactOp, error) {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return ports.TransactOp{}, domainerrors.Invalid("groupId", err.Error())
	}
	sk, err := keys.SeriesPointerSK(seriesID)
	if err != nil {
		return ports.TransactOp{}, domainerrors.Invalid("seriesId", err.Error())
	}
	return ports.TransactOp{Delete: &ports.DeleteOp{PK: pk, SK: sk}}, nil
}

// Transact runs caller-assembled ops (series membership edits span the
// series canonical, member hangout canonicals, and group pointers).
func (r *SeriesRepository) Transact(ctx context.Context, ops []ports.TransactOp) error {
	for _, chunk := range chunkOps(ops) {
		if err := r.Store.Transact(ctx, chunk); err != nil {
			if _, canceled := ports.AsTransactionCanceled(err); canceled {
				return domainerrors.ErrConcurrencyConflict
			}
			return logError(r.Logger, "series_repo_transact_failed", mapStoreErr(err))
		}
	}
	return nil
}

// DeleteSeriesItems removes the series partition. Pointer cleanup is the
// caller's job since it knows the group list.
func (r *SeriesRepository) DeleteSeriesItems(ctx context.Context, seriesID string) error {
	pk, err := keys.SeriesPK(seriesID)
	if err != nil {
		return domainerrors.Invalid("seriesId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk})
	if err != nil {
		return logError(r.Logger, "series_repo_delete_scan_failed", mapStoreErr(err), "series_id", seriesID)
	}
	if len(page.Items) == 0 {
		return nil
	}
	ops := make([]ports.BatchOp, 0, len(page.Items))
	for _, item := range page.Items {
		ops = append(ops, ports.BatchOp{DeletePK: pk, DeleteSK: item.SK()})
	}
	if err := r.Store.BatchWrite(ctx, ops); err != nil {
		return logError(r.Logger, "series_repo_delete_batch_failed", mapStoreErr(err), "series_id", seriesID)
	}
	return nil
}
