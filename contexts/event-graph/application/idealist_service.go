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

// IdeaListService manages free-form hangout idea lists inside a group.
type IdeaListService struct {
	Ideas  *repositories.IdeaListRepository
	Groups *repositories.GroupRepository
	Clock  ports.Clock
	IDs    ports.IDGenerator
	Logger *slog.Logger
}

func (s IdeaListService) CreateList(ctx context.Context, userID, groupID, name string) (items.IdeaList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return items.IdeaList{}, domainerrors.Invalid("name", "list name is required")
	}
	if _, err := memberOf(ctx, s.Groups, groupID, userID); err != nil {
		return items.IdeaList{}, err
	}
	list := items.IdeaList{
		GroupID:   groupID,
		ListID:    s.IDs.NewID(),
		Name:      name,
		CreatedBy: userID,
		CreatedAt: s.Clock.Now().UnixMilli(),
	}
	if err := s.Ideas.CreateList(ctx, list); err != nil {
		return items.IdeaList{}, err
	}
	return list, nil
}

func (s IdeaListService) GetList(ctx context.Context, userID, groupID, listID string) (items.IdeaList, []items.Idea, error) {
	if _, err := memberOf(ctx, s.Groups, groupID, userID); err != nil {
		return items.IdeaList{}, nil, err
	}
	return s.Ideas.LoadList(ctx, groupID, listID)
}

func (s IdeaListService) ListLists(ctx context.Context, userID, groupID string) ([]items.IdeaList, error) {
	if _, err := memberOf(ctx, s.Groups, groupID, userID); err != nil {
		return nil, err
	}
	return s.Ideas.ListLists(ctx, groupID)
}

// AddIdea appends an idea at the end of the list.
func (s IdeaListService) AddIdea(ctx context.Context, userID, groupID, listID, text string) (items.Idea, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return items.Idea{}, domainerrors.Invalid("text", "idea text is required")
	}
	if _, err := memberOf(ctx, s.Groups, groupID, userID); err != nil {
		return items.Idea{}, err
	}
	_, existing, err := s.Ideas.LoadList(ctx, groupID, listID)
	if err != nil {
		return items.Idea{}, err
	}
	position := 0
	for _, idea := range existing {
		if idea.Position >= position {
			position = idea.Position + 1
		}
	}
	idea := items.Idea{
		GroupID:  groupID,
		ListID:   listID,
		IdeaID:   s.IDs.NewID(),
		Text:     text,
		Position: position,
		AddedBy:  userID,
	}
	if err := s.Ideas.PutIdea(ctx, idea); err != nil {
		return items.Idea{}, err
	}
	return idea, nil
}

// ReorderIdea moves one idea to a new position; positions are sparse, so a
// move rewrites only the moved row.
func (s IdeaListService) ReorderIdea(ctx context.Context, userID, groupID, listID, ideaID string, position int) error {
	if position < 0 {
		return domainerrors.Invalid("position", "position cannot be negative")
	}
	if _, err := memberOf(ctx, s.Groups, groupID, userID); err != nil {
		return err
	}
	_, ideas, err := s.Ideas.LoadList(ctx, groupID, listID)
	if err != nil {
		return err
	}
	for _, idea := range ideas {
		if idea.IdeaID == ideaID {
			idea.Position = position
			return s.Ideas.PutIdea(ctx, idea)
		}
	}
	return domainerrors.ErrNotFound
}

func (s IdeaListService) DeleteIdea(ctx context.Context, userID, groupID, listID, ideaID string) error {
	if _, err := memberOf(ctx, s.Groups, groupID, userID); err != nil {
		return err
	}
	return s.Ideas.DeleteIdea(ctx, groupID, listID, ideaID)
}

func (s IdeaListService) DeleteList(ctx context.Context, userID, groupID, listID string) error {
	if _, err := memberOf(ctx, s.Groups, groupID, userID); err != nil {
		return err
	}
	return s.Ideas.DeleteList(ctx, groupID, listID)
}
