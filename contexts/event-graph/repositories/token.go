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

// TokenRepository stores refresh-token rows keyed by token hash.
type TokenRepository struct {
	Store  ports.Store
	Logger *slog.Logger
}

func (r *TokenRepository) Put(ctx context.Context, token items.RefreshToken) error {
	item, err := token.Item()
	if err != nil {
		return err
	}
	err = r.Store.Put(ctx, item, ports.IfNotExists())
	if errors.Is(err, ports.ErrConditionFailed) {
		return domainerrors.ErrAlreadyExists
	}
	if err != nil {
		return logError(r.Logger, "token_repo_put_failed", mapStoreErr(err), "user_id", token.UserID)
	}
	return nil
}

func (r *TokenRepository) GetByHash(ctx context.Context, tokenHash string) (items.RefreshToken, error) {
	pk, err := keys.RefreshPK(tokenHash)
	if err != nil {
		return items.RefreshToken{}, domainerrors.Invalid("token", err.Error())
	}
	item, found, err := r.Store.Get(ctx, pk, keys.Metadata)
	if err != nil {
		return items.RefreshToken{}, logError(r.Logger, "token_repo_get_failed", mapStoreErr(err))
	}
	if !found {
		return items.RefreshToken{}, domainerrors.ErrNotFound
	}
	return items.RefreshTokenFromItem(item), nil
}

// Rotate consumes the old token row and writes the successor atomically.
// A cancelled delete means a concurrent rotation already consumed the old
// token: that is the reuse signal, and the caller revokes the family.
func (r *TokenRepository) Rotate(ctx context.Context, oldHash string, next items.RefreshToken) error {
	oldPK, err := keys.RefreshPK(oldHash)
	if err != nil {
		return domainerrors.Invalid("token", err.Error())
	}
	nextItem, err := next.Item()
	if err != nil {
		return err
	}
	err = r.Store.Transact(ctx, []ports.TransactOp{
		{Delete: &ports.DeleteOp{PK: oldPK, SK: keys.Metadata, Condition: ports.IfExists()}},
		{Put: &ports.PutOp{Item: nextItem, Condition: ports.IfNotExists()}},
	})
	if _, canceled := ports.AsTransactionCanceled(err); canceled {
		return domainerrors.ErrTokenReused
	}
	if err != nil {
		return logError(r.Logger, "token_repo_rotate_failed", mapStoreErr(err), "user_id", next.UserID)
	}
	return nil
}

// ListForUser returns every live token of one user via the UserGroupIndex.
func (r *TokenRepository) ListForUser(ctx context.Context, userID string) ([]items.RefreshToken, error) {
	pk, err := keys.UserPK(userID)
	if err != nil {
		return nil, domainerrors.Invalid("userId", err.Error())
	}
	page, err := r.Store.QueryIndex(ctx, ports.IndexQuery{
		Index:      ports.UserGroupIndex,
		PK:         pk,
		SortPrefix: keys.RefreshPKPrefix,
	})
	if err != nil {
		return nil, logError(r.Logger, "token_repo_list_failed", mapStoreErr(err), "user_id", userID)
	}
	tokens := make([]items.RefreshToken, 0, len(page.Items))
	for _, item := range page.Items {
		tokens = append(tokens, items.RefreshTokenFromItem(item))
	}
	return tokens, nil
}

// RevokeAllForUser deletes the user's whole token family, used after a
// reuse signal.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	tokens, err := r.ListForUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}
	ops := make([]ports.BatchOp, 0, len(tokens))
	for _, token := range tokens {
		pk, err := keys.RefreshPK(token.TokenHash)
		if err != nil {
			continue
		}
		ops = append(ops, ports.BatchOp{DeletePK: pk, DeleteSK: keys.Metadata})
	}
	if err := r.Store.BatchWrite(ctx, ops); err != nil {
		return logError(r.Logger, "token_repo_revoke_all_failed", mapStoreErr(err), "user_id", userID)
	}
	return nil
}

func (r *TokenRepository) Delete(ctx context.Context, tokenHash string) error {
	pk, err := keys.RefreshPK(tokenHash)
	if err != nil {
		return domainerrors.Invalid("token", err.Error())
	}
	if err := r.Store.Delete(ctx, pk, keys.Metadata, ports.NoCondition()); err != nil {
		return logError(r.Logger, "token_repo_delete_failed", mapStoreErr(err))
	}
	return nil
}
