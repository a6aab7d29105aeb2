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

type InviteRepository struct {
	Store  ports.Store
	Logger *slog.Logger
}

// ClaimCode reserves a code atomically; collision with an existing code is
// ports.ErrConditionFailed so the caller can retry with a fresh code.
func (r *InviteRepository) ClaimCode(ctx context.Context, invite items.InviteCode) error {
	item, err := invite.Item()
	if err != nil {
		return err
	}
	err = r.Store.Put(ctx, item, ports.IfNotExists())
	if errors.Is(err, ports.ErrConditionFailed) {
		return ports.ErrConditionFailed
	}
	if err != nil {
		return logError(r.Logger, "invite_repo_claim_failed", mapStoreErr(err), "group_id", invite.GroupID)
	}
	return nil
}

// FindByCode resolves a code to its group binding. The invite partition
// holds exactly one row, so a single-item partition query suffices.
func (r *InviteRepository) FindByCode(ctx context.Context, code string) (items.InviteCode, error) {
	pk, err := keys.InvitePK(code)
	if err != nil {
		return items.InviteCode{}, domainerrors.Invalid("code", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk, Limit: 1})
	if err != nil {
		return items.InviteCode{}, logError(r.Logger, "invite_repo_find_failed", mapStoreErr(err))
	}
	if len(page.Items) == 0 {
		return items.InviteCode{}, domainerrors.ErrNotFound
	}
	return items.InviteCodeFromItem(page.Items[0]), nil
}

// FindByGroup returns the existing code for a group, if any, via the
// UserGroupIndex projection (gsi1pk = GROUP#{gid}, gsi1sk = INVITE#{code}).
func (r *InviteRepository) FindByGroup(ctx context.Context, groupID string) (items.InviteCode, bool, error) {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return items.InviteCode{}, false, domainerrors.Invalid("groupId", err.Error())
	}
	page, err := r.Store.QueryIndex(ctx, ports.IndexQuery{
		Index:      ports.UserGroupIndex,
		PK:         pk,
		SortPrefix: keys.InvitePrefix,
		Limit:      1,
	})
	if err != nil {
		return items.InviteCode{}, false, logError(r.Logger, "invite_repo_find_by_group_failed", mapStoreErr(err), "group_id", groupID)
	}
	if len(page.Items) == 0 {
		return items.InviteCode{}, false, nil
	}
	return items.InviteCodeFromItem(page.Items[0]), true, nil
}

// DeleteCode removes the code binding, used when its group is deleted.
func (r *InviteRepository) DeleteCode(ctx context.Context, invite items.InviteCode) error {
	pk, err := keys.InvitePK(invite.Code)
	if err != nil {
		return domainerrors.Invalid("code", err.Error())
	}
	sk, err := keys.InviteGroupSK(invite.GroupID)
	if err != nil {
		return domainerrors.Invalid("groupId", err.Error())
	}
	if err := r.Store.Delete(ctx, pk, sk, ports.NoCondition()); err != nil {
		return logError(r.Logger, "invite_repo_delete_failed", mapStoreErr(err), "group_id", invite.GroupID)
	}
	return nil
}
