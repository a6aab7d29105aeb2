package application

import (
	"context"
	"log/slog"
	"strings"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/domain/keys"
	"inviter/contexts/event-graph/domain/timeinfo"
	"inviter/contexts/event-graph/ports"
	"inviter/contexts/event-graph/repositories"
)

type HangoutService struct {
	Hangouts *repositories.HangoutRepository
	Groups   *repositories.GroupRepository
	Engage   *repositories.EngagementRepository
	Clock    ports.Clock
	IDs      ports.IDGenerator
	Logger   *slog.Logger
}

type CreateHangoutInput struct {
	UserID           string
	Title            string
	Description      string
	Time             timeinfo.Input
	Location         map[string]string
	Visibility       string
	MainImagePath    string
	AssociatedGroups []string
	InvitedUsers     []string
	CarpoolEnabled   bool
	TicketLink       string
	TicketsRequired  bool
	DiscountCode     string
	ExternalID       string
	ExternalSource   string
}

// CreateHangout writes the canonical record and its full pointer fan-out in
// one transactional unit, bumping every associated group's feed validator.
// A hangout without a time lands as NEEDS_SCHEDULING and sorts to the top
// of nothing until scheduled.
func (s HangoutService) CreateHangout(ctx context.Context, in CreateHangoutInput) (items.HangoutMetadata, error) {
	hangout, err := buildNewHangout(ctx, s.Groups, s.IDs, in)
	if err != nil {
		return items.HangoutMetadata{}, err
	}

	pointers, err := buildPointers(hangout)
	if err != nil {
		return items.HangoutMetadata{}, err
	}
	bumps, err := s.validatorBumps(hangout.AssociatedGroups)
	if err != nil {
		return items.HangoutMetadata{}, err
	}
	if err := s.Hangouts.Create(ctx, hangout, pointers, bumps); err != nil {
		return items.HangoutMetadata{}, err
	}
	serviceLogger(s.Logger, "hangout_created").Info("hangout created",
		"hangout_id", hangout.HangoutID, "pointer_count", len(pointers))
	return hangout, nil
}

// buildNewHangout validates the input and assembles the canonical record:
// title defaulting, visibility check, membership check per associated
// group, and time resolution.
func buildNewHangout(ctx context.Context, groups *repositories.GroupRepository, ids ports.IDGenerator, in CreateHangoutInput) (items.HangoutMetadata, error) {
	title := strings.TrimSpace(in.Title)
	generatedTitle := false
	if title == "" {
		title = "Untitled hangout"
		generatedTitle = true
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = items.VisibilityPrivate
	}
	if visibility != items.VisibilityPublic && visibility != items.VisibilityPrivate {
		return items.HangoutMetadata{}, domainerrors.Invalid("visibility", "unknown visibility")
	}
	for _, groupID := range in.AssociatedGroups {
		if _, err := memberOf(ctx, groups, groupID, in.UserID); err != nil {
			return items.HangoutMetadata{}, err
		}
	}

	hangout := items.HangoutMetadata{
		HangoutID:        ids.NewID(),
		Title:            title,
		Description:      strings.TrimSpace(in.Description),
		Location:         in.Location,
		Visibility:       visibility,
		Status:           items.StatusNeedsScheduling,
		MainImagePath:    in.MainImagePath,
		AssociatedGroups: in.AssociatedGroups,
		InvitedUsers:     in.InvitedUsers,
		Hosts:            []string{in.UserID},
		CarpoolEnabled:   in.CarpoolEnabled,
		TicketLink:       in.TicketLink,
		TicketsRequired:  in.TicketsRequired,
		DiscountCode:     in.DiscountCode,
		ExternalID:       in.ExternalID,
		ExternalSource:   in.ExternalSource,
		IsGeneratedTitle: generatedTitle,
		Version:          1,
	}
	if hasTime(in.Time) {
		resolved, err := timeinfo.Resolve(in.Time)
		if err != nil {
			return items.HangoutMetadata{}, err
		}
		hangout.TimeInfo = resolved.TimeInfo
		hangout.StartTimestamp = resolved.StartTimestamp
		hangout.EndTimestamp = resolved.EndTimestamp
		hangout.Status = items.StatusScheduled
	}
	return hangout, nil
}

// GetHangout loads the full detail with one partition query and authorizes
// from the loaded canonical: hosts, invitees, and members of any associated
// group may read a private hangout.
func (s HangoutService) GetHangout(ctx context.Context, userID, hangoutID string) (repositories.HangoutDetail, error) {
	detail, err := s.Hangouts.LoadDetail(ctx, hangoutID)
	if err != nil {
		return repositories.HangoutDetail{}, err
	}
	if err := s.authorizeRead(ctx, detail.Hangout, userID); err != nil {
		return repositories.HangoutDetail{}, err
	}
	return detail, nil
}

func (s HangoutService) authorizeRead(ctx context.Context, hangout items.HangoutMetadata, userID string) error {
	if hangout.Visibility == items.VisibilityPublic {
		return nil
	}
	if hangout.IsHost(userID) {
		return nil
	}
	for _, invited := range hangout.InvitedUsers {
		if invited == userID {
			return nil
		}
	}
	for _, groupID := range hangout.AssociatedGroups {
		if _, found, err := s.Groups.GetMembership(ctx, groupID, userID); err != nil {
			return err
		} else if found {
			return nil
		}
	}
	return domainerrors.ErrForbidden
}

type UpdateHangoutInput struct {
	Title         *string
	Description   *string
	Time          *timeinfo.Input
	Location      map[string]string
	MainImagePath *string
	TicketLink    *string
	DiscountCode  *string
}

// UpdateHangout patches the canonical record and rewrites the denormalized
// display fields on every pointer in the same transactional unit, with the
// feed validators of all associated groups bumped alongside.
func (s HangoutService) UpdateHangout(ctx context.Context, userID, hangoutID string, in UpdateHangoutInput) (items.HangoutMetadata, error) {
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return items.HangoutMetadata{}, err
	}
	if err := requireHost(hangout, userID); err != nil {
		return items.HangoutMetadata{}, err
	}

	canonicalSet := map[string]any{}
	pointerSet := map[string]any{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return items.HangoutMetadata{}, domainerrors.Invalid("title", "title cannot be empty")
		}
		canonicalSet[items.AttrTitle] = title
		canonicalSet[items.AttrIsGeneratedTitle] = false
		pointerSet[items.AttrTitle] = title
		pointerSet[items.AttrIsGeneratedTitle] = false
		hangout.Title = title
		hangout.IsGeneratedTitle = false
	}
	if in.Description != nil {
		canonicalSet[items.AttrDescription] = strings.TrimSpace(*in.Description)
		hangout.Description = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		canonicalSet[items.AttrLocation] = in.Location
		pointerSet[items.AttrLocation] = in.Location
		hangout.Location = in.Location
	}
	if in.MainImagePath != nil {
		canonicalSet[items.AttrMainImagePath] = *in.MainImagePath
		pointerSet[items.AttrMainImagePath] = *in.MainImagePath
		hangout.MainImagePath = *in.MainImagePath
	}
	if in.TicketLink != nil {
		canonicalSet[items.AttrTicketLink] = *in.TicketLink
		hangout.TicketLink = *in.TicketLink
	}
	if in.DiscountCode != nil {
		canonicalSet[items.AttrDiscountCode] = *in.DiscountCode
		hangout.DiscountCode = *in.DiscountCode
	}
	if in.Time != nil {
		resolved, err := timeinfo.Resolve(*in.Time)
		if err != nil {
			return items.HangoutMetadata{}, err
		}
		canonicalSet[items.AttrTimeInfo] = resolved.TimeInfo
		canonicalSet[items.AttrStartTimestamp] = resolved.StartTimestamp
		canonicalSet[items.AttrEndTimestamp] = resolved.EndTimestamp
		canonicalSet[items.AttrStatus] = items.StatusScheduled
		pointerSet[items.AttrTimeInfo] = resolved.TimeInfo
		pointerSet[items.AttrStartTimestamp] = resolved.StartTimestamp
		pointerSet[items.AttrEndTimestamp] = resolved.EndTimestamp
		pointerSet[items.AttrStatus] = items.StatusScheduled
		hangout.TimeInfo = resolved.TimeInfo
		hangout.StartTimestamp = resolved.StartTimestamp
		hangout.EndTimestamp = resolved.EndTimestamp
		hangout.Status = items.StatusScheduled
	}
	if len(canonicalSet) == 0 {
		return hangout, nil
	}

	ops, err := s.canonicalAndPointerOps(hangout, canonicalSet, pointerSet)
	if err != nil {
		return items.HangoutMetadata{}, err
	}
	if err := s.Hangouts.Transact(ctx, ops); err != nil {
		return items.HangoutMetadata{}, err
	}
	hangout.Version++
	return hangout, nil
}

func (s HangoutService) canonicalAndPointerOps(hangout items.HangoutMetadata, canonicalSet, pointerSet map[string]any) ([]ports.TransactOp, error) {
	canonicalOp, err := s.Hangouts.CanonicalUpdateOp(hangout.HangoutID, canonicalSet, hangout.Version)
	if err != nil {
		return nil, err
	}
	ops := []ports.TransactOp{canonicalOp}
	if len(pointerSet) > 0 {
		partitions, err := pointerPartitions(hangout)
		if err != nil {
			return nil, err
		}
		for _, partition := range partitions {
			op, err := s.Hangouts.PointerUpdateOp(partition, hangout.HangoutID, pointerSet)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
	}
	bumps, err := s.validatorBumps(hangout.AssociatedGroups)
	if err != nil {
		return nil, err
	}
	return append(ops, bumps...), nil
}

// DeleteHangout removes the canonical partition, every pointer, and bumps
// the owning groups. Pointer deletes tolerate already-missing rows so the
// cascade re-runs cleanly after a partial failure.
func (s HangoutService) DeleteHangout(ctx context.Context, userID, hangoutID string) error {
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return err
	}
	if err := requireHost(hangout, userID); err != nil {
		return err
	}
	partitions, err := pointerPartitions(hangout)
	if err != nil {
		return err
	}
	if err := s.Hangouts.DeleteHangoutItems(ctx, hangoutID); err != nil {
		return err
	}
	for _, partition := range partitions {
		if err := s.Hangouts.DeletePointer(ctx, partition, hangoutID); err != nil {
			return err
		}
	}
	now := s.Clock.Now().UnixMilli()
	for _, groupID := range hangout.AssociatedGroups {
		if err := s.Groups.BumpFeedValidator(ctx, groupID, now); err != nil {
			return err
		}
	}
	serviceLogger(s.Logger, "hangout_deleted").Info("hangout deleted", "hangout_id", hangoutID)
	return nil
}

// AssociateGroup adds a group to the hangout, writing the new pointer and
// the canonical membership edit together.
func (s HangoutService) AssociateGroup(ctx context.Context, userID, hangoutID, groupID string) error {
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return err
	}
	if err := requireHost(hangout, userID); err != nil {
		return err
	}
	if _, err := memberOf(ctx, s.Groups, groupID, userID); err != nil {
		return err
	}
	for _, gid := range hangout.AssociatedGroups {
		if gid == groupID {
			return domainerrors.ErrAlreadyExists
		}
	}
	updated := hangout
	updated.AssociatedGroups = append(append([]string{}, hangout.AssociatedGroups...), groupID)

	groupPK, err := keys.GroupPK(groupID)
	if err != nil {
		return domainerrors.Invalid("groupId", err.Error())
	}
	pointer := pointerFor(updated, groupPK)
	pointerItem, err := pointer.Item()
	if err != nil {
		return err
	}
	canonicalOp, err := s.Hangouts.CanonicalUpdateOp(hangoutID,
		map[string]any{items.AttrAssociatedGroups: updated.AssociatedGroups}, hangout.Version)
	if err != nil {
		return err
	}
	bump, err := s.Groups.BumpFeedValidatorOp(groupID, s.Clock.Now().UnixMilli())
	if err != nil {
		return err
	}
	return s.Hangouts.Transact(ctx, []ports.TransactOp{
		canonicalOp,
		{Put: &ports.PutOp{Item: pointerItem}},
		bump,
	})
}

// DissociateGroup removes a group's pointer and membership entry.
func (s HangoutService) DissociateGroup(ctx context.Context, userID, hangoutID, groupID string) error {
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return err
	}
	if err := requireHost(hangout, userID); err != nil {
		return err
	}
	remaining := make([]string, 0, len(hangout.AssociatedGroups))
	found := false
	for _, gid := range hangout.AssociatedGroups {
		if gid == groupID {
			found = true
			continue
		}
		remaining = append(remaining, gid)
	}
	if !found {
		return domainerrors.ErrNotFound
	}
	if err := s.Hangouts.UpdateCanonical(ctx, hangoutID,
		map[string]any{items.AttrAssociatedGroups: remaining}, hangout.Version); err != nil {
		return err
	}
	groupPK, err := keys.GroupPK(groupID)
	if err != nil {
		return domainerrors.Invalid("groupId", err.Error())
	}
	if err := s.Hangouts.DeletePointer(ctx, groupPK, hangoutID); err != nil {
		return err
	}
	return s.Groups.BumpFeedValidator(ctx, groupID, s.Clock.Now().UnixMilli())
}

// InviteUser projects the hangout into one user's partition.
func (s HangoutService) InviteUser(ctx context.Context, callerID, hangoutID, userID string) error {
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return err
	}
	if err := requireHost(hangout, callerID); err != nil {
		return err
	}
	for _, invited := range hangout.InvitedUsers {
		if invited == userID {
			return domainerrors.ErrAlreadyExists
		}
	}
	updated := hangout
	updated.InvitedUsers = append(append([]string{}, hangout.InvitedUsers...), userID)

	userPK, err := keys.UserPK(userID)
	if err != nil {
		return domainerrors.Invalid("userId", err.Error())
	}
	pointer := pointerFor(updated, userPK)
	pointerItem, err := pointer.Item()
	if err != nil {
		return err
	}
	canonicalOp, err := s.Hangouts.CanonicalUpdateOp(hangoutID,
		map[string]any{items.AttrInvitedUsers: updated.InvitedUsers}, hangout.Version)
	if err != nil {
		return err
	}
	return s.Hangouts.Transact(ctx, []ports.TransactOp{
		canonicalOp,
		{Put: &ports.PutOp{Item: pointerItem}},
	})
}

// MarkInterest records the caller's interest and bumps participantCount on
// the canonical and every pointer in the same transaction.
func (s HangoutService) MarkInterest(ctx context.Context, userID, userName, hangoutID string) error {
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return err
	}
	if err := s.authorizeRead(ctx, hangout, userID); err != nil {
		return err
	}
	extraOps, err := s.participantCountOps(hangout, 1)
	if err != nil {
		return err
	}
	interest := items.Interest{
		HangoutID: hangoutID,
		UserID:    userID,
		UserName:  userName,
		CreatedAt: s.Clock.Now().UnixMilli(),
	}
	return s.Engage.MarkInterest(ctx, interest, extraOps)
}

// UnmarkInterest is the inverse; the interest row's existence guard keeps
// the count exact under repeats.
func (s HangoutService) UnmarkInterest(ctx context.Context, userID, hangoutID string) error {
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return err
	}
	extraOps, err := s.participantCountOps(hangout, -1)
	if err != nil {
		return err
	}
	return s.Engage.UnmarkInterest(ctx, hangoutID, userID, extraOps)
}

func (s HangoutService) participantCountOps(hangout items.HangoutMetadata, delta int64) ([]ports.TransactOp, error) {
	pk, err := keys.HangoutPK(hangout.HangoutID)
	if err != nil {
		return nil, domainerrors.Invalid("hangoutId", err.Error())
	}
	ops := []ports.TransactOp{{Update: &ports.UpdateOp{
		PK:        pk,
		SK:        keys.Metadata,
		Update:    ports.Update{Add: map[string]int64{items.AttrParticipantCount: delta}},
		Condition: ports.IfExists(),
	}}}
	partitions, err := pointerPartitions(hangout)
	if err != nil {
		return nil, err
	}
	for _, partition := range partitions {
		op, err := s.Hangouts.PointerAddOp(partition, hangout.HangoutID,
			map[string]int64{items.AttrParticipantCount: delta})
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (s HangoutService) validatorBumps(groupIDs []string) ([]ports.TransactOp, error) {
	now := s.Clock.Now().UnixMilli()
	ops := make([]ports.TransactOp, 0, len(groupIDs))
	for _, groupID := range groupIDs {
		op, err := s.Groups.BumpFeedValidatorOp(groupID, now)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// pointerFor projects the canonical into one partition.
func pointerFor(hangout items.HangoutMetadata, partitionPK string) items.HangoutPointer {
	return items.HangoutPointer{
		PartitionPK:      partitionPK,
		HangoutID:        hangout.HangoutID,
		Title:            hangout.Title,
		Status:           hangout.Status,
		TimeInfo:         hangout.TimeInfo,
		Location:         hangout.Location,
		ParticipantCount: hangout.ParticipantCount,
		MainImagePath:    hangout.MainImagePath,
		ExternalID:       hangout.ExternalID,
		ExternalSource:   hangout.ExternalSource,
		IsGeneratedTitle: hangout.IsGeneratedTitle,
		StartTimestamp:   hangout.StartTimestamp,
		EndTimestamp:     hangout.EndTimestamp,
		SeriesID:         hangout.SeriesID,
	}
}

func hasTime(in timeinfo.Input) bool {
	return strings.TrimSpace(in.StartTime) != "" ||
		strings.TrimSpace(in.PeriodGranularity) != "" ||
		strings.TrimSpace(in.PeriodStart) != ""
}
