package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/ports"
	"inviter/contexts/event-graph/repositories"
)

type GroupService struct {
	Groups   *repositories.GroupRepository
	Hangouts *repositories.HangoutRepository
	Invites  *repositories.InviteRepository
	Clock    ports.Clock
	IDs      ports.IDGenerator
	Logger   *slog.Logger
}

type CreateGroupInput struct {
	UserID   string
	UserName string
	Name     string
	IsPublic bool
}

func (s GroupService) CreateGroup(ctx context.Context, in CreateGroupInput) (items.GroupMetadata, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return items.GroupMetadata{}, domainerrors.Invalid("name", "group name is required")
	}
	group := items.GroupMetadata{
		GroupID:             s.IDs.NewID(),
		GroupName:           in.Name,
		IsPublic:            in.IsPublic,
		LastHangoutModified: s.Clock.Now().UnixMilli(),
		Version:             1,
	}
	membership := items.Membership{
		GroupID:   group.GroupID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Role:      items.RoleAdmin,
		GroupName: group.GroupName,
	}
	if err := s.Groups.CreateGroupWithCreator(ctx, group, membership); err != nil {
		return items.GroupMetadata{}, err
	}
	serviceLogger(s.Logger, "group_created").Info("group created", "group_id", group.GroupID)
	return group, nil
}

// GroupDetail is the group record plus its member list.
type GroupDetail struct {
	Group   items.GroupMetadata
	Members []items.Membership
}

func (s GroupService) GetGroup(ctx context.Context, userID, groupID string) (GroupDetail, error) {
	group, err := s.Groups.GetMetadata(ctx, groupID)
	if err != nil {
		return GroupDetail{}, err
	}
	if !group.IsPublic {
		if _, err := memberOf(ctx, s.Groups, groupID, userID); err != nil {
			return GroupDetail{}, err
		}
	}
	members, err := s.Groups.ListMembers(ctx, groupID)
	if err != nil {
		return GroupDetail{}, err
	}
	return GroupDetail{Group: group, Members: members}, nil
}

func (s GroupService) ListGroupsForUser(ctx context.Context, userID string) ([]items.Membership, error) {
	return s.Groups.FindGroupsForUser(ctx, userID)
}

type UpdateGroupInput struct {
	Name          *string
	IsPublic      *bool
	MainImagePath *string
}

// UpdateGroup patches the canonical group under optimistic concurrency. A
// rename also rewrites the denormalized groupName on every membership row;
// the main image stays canonical-only and is resolved at read time.
func (s GroupService) UpdateGroup(ctx context.Context, userID, groupID string, in UpdateGroupInput) (items.GroupMetadata, error) {
	membership, err := memberOf(ctx, s.Groups, groupID, userID)
	if err != nil {
		return items.GroupMetadata{}, err
	}
	if err := requireAdmin(membership); err != nil {
		return items.GroupMetadata{}, err
	}
	group, err := s.Groups.GetMetadata(ctx, groupID)
	if err != nil {
		return items.GroupMetadata{}, err
	}
	set := map[string]any{}
	renamed := false
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return items.GroupMetadata{}, domainerrors.Invalid("name", "group name is required")
		}
		if name != group.GroupName {
			set[items.AttrGroupName] = name
			group.GroupName = name
			renamed = true
		}
	}
	if in.IsPublic != nil {
		set[items.AttrIsPublic] = *in.IsPublic
		group.IsPublic = *in.IsPublic
	}
	if in.MainImagePath != nil {
		set[items.AttrMainImagePath] = *in.MainImagePath
		group.MainImagePath = *in.MainImagePath
	}
	if len(set) == 0 {
		return group, nil
	}
	if err := s.Groups.UpdateMetadata(ctx, groupID, set, group.Version); err != nil {
		return items.GroupMetadata{}, err
	}
	group.Version++
	if renamed {
		if err := s.renameMemberships(ctx, groupID, group.GroupName); err != nil {
			return items.GroupMetadata{}, err
		}
	}
	return group, nil
}

func (s GroupService) renameMemberships(ctx context.Context, groupID, name string) error {
	members, err := s.Groups.ListMembers(ctx, groupID)
	if err != nil {
		return err
	}
	for _, member := range members {
		member.GroupName = name
		if err := s.Groups.PutMembership(ctx, member); err != nil {
			return err
		}
	}
	return nil
}

// DeleteGroup removes the whole group partition, then repairs each hangout
// that pointed into it by dropping the group from its associatedGroups. The
// invite code binding is released last; every step re-runs safely.
func (s GroupService) DeleteGroup(ctx context.Context, userID, groupID string) error {
	membership, err := memberOf(ctx, s.Groups, groupID, userID)
	if err != nil {
		return err
	}
	if err := requireAdmin(membership); err != nil {
		return err
	}
	invite, hasInvite, err := s.Invites.FindByGroup(ctx, groupID)
	if err != nil {
		return err
	}
	hangoutIDs, err := s.Groups.DeleteGroupItems(ctx, groupID)
	if err != nil {
		return err
	}
	for _, hangoutID := range hangoutIDs {
		if err := s.detachGroupFromHangout(ctx, hangoutID, groupID); err != nil {
			return err
		}
	}
	if hasInvite {
		if err := s.Invites.DeleteCode(ctx, invite); err != nil {
			return err
		}
	}
	serviceLogger(s.Logger, "group_deleted").Info("group deleted",
		"group_id", groupID, "repaired_hangouts", len(hangoutIDs))
	return nil
}

func (s GroupService) detachGroupFromHangout(ctx context.Context, hangoutID, groupID string) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		var hangout items.HangoutMetadata
		hangout, err = s.Hangouts.GetMetadata(ctx, hangoutID)
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		remaining := make([]string, 0, len(hangout.AssociatedGroups))
		for _, gid := range hangout.AssociatedGroups {
			if gid != groupID {
				remaining = append(remaining, gid)
			}
		}
		if len(remaining) == len(hangout.AssociatedGroups) {
			return nil
		}
		err = s.Hangouts.UpdateCanonical(ctx, hangoutID,
			map[string]any{items.AttrAssociatedGroups: remaining}, hangout.Version)
		if !errors.Is(err, domainerrors.ErrConcurrencyConflict) {
			return err
		}
		// lost the race to another writer; re-read and retry
	}
	return err
}

// LeaveGroup removes the caller's own membership. The last admin cannot
// leave; they delete the group or promote someone first.
func (s GroupService) LeaveGroup(ctx context.Context, userID, groupID string) error {
	membership, err := memberOf(ctx, s.Groups, groupID, userID)
	if err != nil {
		return err
	}
	if membership.Role == items.RoleAdmin {
		members, err := s.Groups.ListMembers(ctx, groupID)
		if err != nil {
			return err
		}
		admins := 0
		for _, member := range members {
			if member.Role == items.RoleAdmin {
				admins++
			}
		}
		if admins <= 1 {
			return domainerrors.ErrConflict
		}
	}
	return s.Groups.DeleteMembership(ctx, groupID, userID)
}

// SetMemberRole promotes or demotes a member; admin-only.
func (s GroupService) SetMemberRole(ctx context.Context, callerID, groupID, userID, role string) error {
	if role != items.RoleAdmin && role != items.RoleMember {
		return domainerrors.Invalid("role", "unknown role")
	}
	caller, err := memberOf(ctx, s.Groups, groupID, callerID)
	if err != nil {
		return err
	}
	if err := requireAdmin(caller); err != nil {
		return err
	}
	target, found, err := s.Groups.GetMembership(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !found {
		return domainerrors.ErrNotFound
	}
	target.Role = role
	return s.Groups.PutMembership(ctx, target)
}
