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

type GroupRepository struct {
	Store  ports.Store
	Logger *slog.Logger
}

// CreateGroupWithCreator writes the canonical group and the founder's
// membership in one transaction; the group put is guarded against
// pre-existence.
func (r *GroupRepository) CreateGroupWithCreator(ctx context.Context, group items.GroupMetadata, first items.Membership) error {
	groupItem, err := group.Item()
	if err != nil {
		return err
	}
	memberItem, err := first.Item()
	if err != nil {
		return err
	}
	err = r.Store.Transact(ctx, []ports.TransactOp{
		{Put: &ports.PutOp{Item: groupItem, Condition: ports.IfNotExists()}},
		{Put: &ports.PutOp{Item: memberItem}},
	})
	if _, canceled := ports.AsTransactionCanceled(err); canceled {
		return domainerrors.ErrConflict
	}
	if err != nil {
		return logError(r.Logger, "group_repo_create_failed", mapStoreErr(err), "group_id", group.GroupID)
	}
	return nil
}

func (r *GroupRepository) GetMetadata(ctx context.Context, groupID string) (items.GroupMetadata, error) {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return items.GroupMetadata{}, domainerrors.Invalid("groupId", err.Error())
	}
	item, found, err := r.Store.Get(ctx, pk, keys.Metadata)
	if err != nil {
		return items.GroupMetadata{}, logError(r.Logger, "group_repo_get_metadata_failed", mapStoreErr(err), "group_id", groupID)
	}
	if !found {
		return items.GroupMetadata{}, domainerrors.ErrNotFound
	}
	return items.GroupMetadataFromItem(item), nil
}

// FindGroupsForUser serves the membership list from the UserGroupIndex in a
// single query. Membership rows carry the denormalized group name; no
// follow-up fetch to the group canonical is permitted here.
func (r *GroupRepository) FindGroupsForUser(ctx context.Context, userID string) ([]items.Membership, error) {
	pk, err := keys.UserPK(userID)
	if err != nil {
		return nil, domainerrors.Invalid("userId", err.Error())
	}
	page, err := r.Store.QueryIndex(ctx, ports.IndexQuery{
		Index:      ports.UserGroupIndex,
		PK:         pk,
		SortPrefix: keys.GroupPKPrefix,
	})
	if err != nil {
		return nil, logError(r.Logger, "group_repo_find_groups_failed", mapStoreErr(err), "user_id", userID)
	}
	memberships := make([]items.Membership, 0, len(page.Items))
	for _, item := range page.Items {
		memberships = append(memberships, items.MembershipFromItem(item))
	}
	return memberships, nil
}

func (r *GroupRepository) ListMembers(ctx context.Context, groupID string) ([]items.Membership, error) {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return nil, domainerrors.Invalid("groupId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk, SortPrefix: keys.MemberPrefix})
	if err != nil {
		return nil, logError(r.Logger, "group_repo_list_members_failed", mapStoreErr(err), "group_id", groupID)
	}
	members := make([]items.Membership, 0, len(page.Items))
	for _, item := range page.Items {
		members = append(members, items.MembershipFromItem(item))
	}
	return members, nil
}

func (r *GroupRepository) GetMembership(ctx context.Context, groupID, userID string) (items.Membership, bool, error) {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return items.Membership{}, false, domainerrors.Invalid("groupId", err.Error())
	}
	sk, err := keys.MemberSK(userID)
	if err != nil {
		return items.Membership{}, false, domainerrors.Invalid("userId", err.Error())
	}
	item, found, err := r.Store.Get(ctx, pk, sk)
	if err != nil {
		return items.Membership{}, false, logError(r.Logger, "group_repo_get_membership_failed", mapStoreErr(err),
			"group_id", groupID, "user_id", userID)
	}
	if !found {
		return items.Membership{}, false, nil
	}
	return items.MembershipFromItem(item), true, nil
}

func (r *GroupRepository) PutMembership(ctx context.Context, membership items.Membership) error {
	item, err := membership.Item()
	if err != nil {
		return err
	}
	if err := r.Store.Put(ctx, item, ports.NoCondition()); err != nil {
		return logError(r.Logger, "group_repo_put_membership_failed", mapStoreErr(err),
			"group_id", membership.GroupID, "user_id", membership.UserID)
	}
	return nil
}

// PutMembershipIfAbsent is the invite-join write: it fails ErrConditionFailed
// when the membership already exists so callers can return the existing row.
func (r *GroupRepository) PutMembershipIfAbsent(ctx context.Context, membership items.Membership) error {
	item, err := membership.Item()
	if err != nil {
		return err
	}
	err = r.Store.Put(ctx, item, ports.IfNotExists())
	if errors.Is(err, ports.ErrConditionFailed) {
		return ports.ErrConditionFailed
	}
	if err != nil {
		return logError(r.Logger, "group_repo_put_membership_absent_failed", mapStoreErr(err),
			"group_id", membership.GroupID, "user_id", membership.UserID)
	}
	return nil
}

func (r *GroupRepository) DeleteMembership(ctx context.Context, groupID, userID string) error {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return domainerrors.Invalid("groupId", err.Error())
	}
	sk, err := keys.MemberSK(userID)
	if err != nil {
		return domainerrors.Invalid("userId", err.Error())
	}
	if err := r.Store.Delete(ctx, pk, sk, ports.NoCondition()); err != nil {
		return logError(r.Logger, "group_repo_delete_membership_failed", mapStoreErr(err),
			"group_id", groupID, "user_id", userID)
	}
	return nil
}

func (r *GroupRepository) ListHangoutPointers(ctx context.Context, groupID string) ([]items.HangoutPointer, error) {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return nil, domainerrors.Invalid("groupId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk, SortPrefix: keys.HangoutPointerPrefix})
	if err != nil {
		return nil, logError(r.Logger, "group_repo_list_pointers_failed", mapStoreErr(err), "group_id", groupID)
	}
	pointers := make([]items.HangoutPointer, 0, len(page.Items))
	for _, item := range page.Items {
		pointers = append(pointers, items.HangoutPointerFromItem(item))
	}
	return pointers, nil
}

func (r *GroupRepository) ListSeriesPointers(ctx context.Context, groupID string) ([]items.SeriesPointer, error) {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return nil, domainerrors.Invalid("groupId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk, SortPrefix: keys.SeriesPointerPrefix})
	if err != nil {
		return nil, logError(r.Logger, "group_repo_list_series_pointers_failed", mapStoreErr(err), "group_id", groupID)
	}
	pointers := make([]items.SeriesPointer, 0, len(page.Items))
	for _, item := range page.Items {
		pointers = append(pointers, items.SeriesPointerFromItem(item))
	}
	return pointers, nil
}

// UpdateHangoutPointer patches denormalized pointer fields; the existence
// guard keeps a concurrently deleted pointer deleted.
func (r *GroupRepository) UpdateHangoutPointer(ctx context.Context, groupID, hangoutID string, set map[string]any) error {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return domainerrors.Invalid("groupId", err.Error())
	}
	sk, err := keys.HangoutPointerSK(hangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	err = r.Store.Update(ctx, pk, sk, ports.Update{Set: set}, ports.IfExists())
	if errors.Is(err, ports.ErrConditionFailed) {
		return domainerrors.ErrNotFound
	}
	if err != nil {
		return logError(r.Logger, "group_repo_update_pointer_failed", mapStoreErr(err),
			"group_id", groupID, "hangout_id", hangoutID)
	}
	return nil
}

// BumpFeedValidatorOp builds the transact member that advances the group's
// feed validator; every feed-affecting transact includes one per group.
func (r *GroupRepository) BumpFeedValidatorOp(groupID string, nowMs int64) (ports.TransactOp, error) {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return ports.TransactOp{}, domainerrors.Invalid("groupId", err.Error())
	}
	return ports.TransactOp{Update: &ports.UpdateOp{
		PK:        pk,
		SK:        keys.Metadata,
		Update:    ports.Update{Set: map[string]any{items.AttrLastHangoutModified: nowMs}},
		Condition: ports.IfExists(),
	}}, nil
}

func (r *GroupRepository) BumpFeedValidator(ctx context.Context, groupID string, nowMs int64) error {
	op, err := r.BumpFeedValidatorOp(groupID, nowMs)
	if err != nil {
		return err
	}
	err = r.Store.Update(ctx, op.Update.PK, op.Update.SK, op.Update.Update, op.Update.Condition)
	if errors.Is(err, ports.ErrConditionFailed) {
		return domainerrors.ErrNotFound
	}
	if err != nil {
		return logError(r.Logger, "group_repo_bump_validator_failed", mapStoreErr(err), "group_id", groupID)
	}
	return nil
}

// UpdateMetadata applies an optimistic-concurrency patch to the canonical
// group record.
func (r *GroupRepository) UpdateMetadata(ctx context.Context, groupID string, set map[string]any, expectedVersion int64) error {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return domainerrors.Invalid("groupId", err.Error())
	}
	patch := make(map[string]any, len(set)+1)
	for name, value := range set {
		patch[name] = value
	}
	patch[items.AttrVersion] = expectedVersion + 1
	err = r.Store.Update(ctx, pk, keys.Metadata, ports.Update{Set: patch}, ports.IfVersion(expectedVersion))
	if errors.Is(err, ports.ErrConditionFailed) {
		return domainerrors.ErrConcurrencyConflict
	}
	if err != nil {
		return logError(r.Logger, "group_repo_update_metadata_failed", mapStoreErr(err), "group_id", groupID)
	}
	return nil
}

// DeleteGroupItems removes every item in the group partition and reports
// the hangout ids that had pointers there so the caller can repair the
// canonical records. The batch deletes are idempotent; a partial failure
// re-runs safely.
func (r *GroupRepository) DeleteGroupItems(ctx context.Context, groupID string) ([]string, error) {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return nil, domainerrors.Invalid("groupId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk})
	if err != nil {
		return nil, logError(r.Logger, "group_repo_delete_scan_failed", mapStoreErr(err), "group_id", groupID)
	}
	var hangoutIDs []string
	ops := make([]ports.BatchOp, 0, len(page.Items))
	for _, item := range page.Items {
		if keys.Classify(item.SK()) == keys.KindHangoutPointer {
			if hangoutID, err := keys.ParseHangoutPointerSK(item.SK()); err == nil {
				hangoutIDs = append(hangoutIDs, hangoutID)
			}
		}
		ops = append(ops, ports.BatchOp{DeletePK: pk, DeleteSK: item.SK()})
	}
	if len(ops) == 0 {
		return nil, nil
	}
	if err := r.Store.BatchWrite(ctx, ops); err != nil {
		return nil, logError(r.Logger, "group_repo_delete_batch_failed", mapStoreErr(err), "group_id", groupID)
	}
	return hangoutIDs, nil
}
