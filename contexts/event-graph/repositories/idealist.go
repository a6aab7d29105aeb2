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

// IdeaListRepository stores idea lists and their ideas inside a group
// partition. The list sort key prefixes its ideas, so one begins_with query
// loads a list with content.
type IdeaListRepository struct {
	Store  ports.Store
	Logger *slog.Logger
}

func (r *IdeaListRepository) CreateList(ctx context.Context, list items.IdeaList) error {
	item, err := list.Item()
	if err != nil {
		return err
	}
	err = r.Store.Put(ctx, item, ports.IfNotExists())
	if errors.Is(err, ports.ErrConditionFailed) {
		return domainerrors.ErrAlreadyExists
	}
	if err != nil {
		return logError(r.Logger, "idealist_repo_create_failed", mapStoreErr(err),
			"group_id", list.GroupID, "list_id", list.ListID)
	}
	return nil
}

// LoadList returns the list record and its ideas from one query.
func (r *IdeaListRepository) LoadList(ctx context.Context, groupID, listID string) (items.IdeaList, []items.Idea, error) {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return items.IdeaList{}, nil, domainerrors.Invalid("groupId", err.Error())
	}
	prefix, err := keys.IdeaListSK(listID)
	if err != nil {
		return items.IdeaList{}, nil, domainerrors.Invalid("listId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk, SortPrefix: prefix})
	if err != nil {
		return items.IdeaList{}, nil, logError(r.Logger, "idealist_repo_load_failed", mapStoreErr(err),
			"group_id", groupID, "list_id", listID)
	}
	var (
		list  items.IdeaList
		found bool
		ideas []items.Idea
	)
	for _, item := range page.Items {
		switch keys.Classify(item.SK()) {
		case keys.KindIdeaList:
			list = items.IdeaListFromItem(item)
			found = true
		case keys.KindIdea:
			ideas = append(ideas, items.IdeaFromItem(item))
		}
	}
	if !found {
		return items.IdeaList{}, nil, domainerrors.ErrNotFound
	}
	return list, ideas, nil
}

func (r *IdeaListRepository) ListLists(ctx context.Context, groupID string) ([]items.IdeaList, error) {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return nil, domainerrors.Invalid("groupId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk, SortPrefix: keys.ListPrefix})
	if err != nil {
		return nil, logError(r.Logger, "idealist_repo_list_failed", mapStoreErr(err), "group_id", groupID)
	}
	lists := make([]items.IdeaList, 0, len(page.Items))
	for _, item := range page.Items {
		if keys.Classify(item.SK()) == keys.KindIdeaList {
			lists = append(lists, items.IdeaListFromItem(item))
		}
	}
	return lists, nil
}

func (r *IdeaListRepository) PutIdea(ctx context.Context, idea items.Idea) error {
	item, err := idea.Item()
	if err != nil {
		return err
	}
	if err := r.Store.Put(ctx, item, ports.NoCondition()); err != nil {
		return logError(r.Logger, "idealist_repo_put_idea_failed", mapStoreErr(err),
			"group_id", idea.GroupID, "list_id", idea.ListID, "idea_id", idea.IdeaID)
	}
	return nil
}

func (r *IdeaListRepository) DeleteIdea(ctx context.Context, groupID, listID, ideaID string) error {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return domainerrors.Invalid("groupId", err.Error())
	}
	sk, err := keys.IdeaSK(listID, ideaID)
	if err != nil {
		return domainerrors.Invalid("ideaId", err.Error())
	}
	err = r.Store.Delete(ctx, pk, sk, ports.IfExists())
	if errors.Is(err, ports.ErrConditionFailed) {
		return domainerrors.ErrNotFound
	}
	if err != nil {
		return logError(r.Logger, "idealist_repo_delete_idea_failed", mapStoreErr(err),
			"group_id", groupID, "list_id", listID, "idea_id", ideaID)
	}
	return nil
}

// DeleteList removes the list record and all its ideas.
func (r *IdeaListRepository) DeleteList(ctx context.Context, groupID, listID string) error {
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return domainerrors.Invalid("groupId", err.Error())
	}
	prefix, err := keys.IdeaListSK(listID)
	if err != nil {
		return domainerrors.Invalid("listId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk, SortPrefix: prefix})
	if err != nil {
		return logError(r.Logger, "idealist_repo_delete_scan_failed", mapStoreErr(err),
			"group_id", groupID, "list_id", listID)
	}
	if len(page.Items) == 0 {
		return domainerrors.ErrNotFound
	}
	ops := make([]ports.BatchOp, 0, len(page.Items))
	for _, item := range page.Items {
		ops = append(ops, ports.BatchOp{DeletePK: pk, DeleteSK: item.SK()})
	}
	if err := r.Store.BatchWrite(ctx, ops); err != nil {
		return logError(r.Logger, "idealist_repo_delete_batch_failed", mapStoreErr(err),
			"group_id", groupID, "list_id", listID)
	}
	return nil
}
