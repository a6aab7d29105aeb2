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

// minSeriesMembers is the floor below which a series stops being a series.
const minSeriesMembers = 2

type SeriesService struct {
	Series   *repositories.SeriesRepository
	Hangouts *repositories.HangoutRepository
	Groups   *repositories.GroupRepository
	Clock    ports.Clock
	IDs      ports.IDGenerator
	Logger   *slog.Logger
}

// ConvertToSeries promotes an existing hangout into a named series by
// creating its next occurrence alongside it: the canonical series, one
// pointer per participating group, the seriesId stamp on the existing
// hangout, and the new member with its full pointer fan-out land in one
// transactional unit.
func (s SeriesService) ConvertToSeries(ctx context.Context, userID, title, hangoutID string, newMember CreateHangoutInput) (items.SeriesMetadata, items.HangoutMetadata, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return items.SeriesMetadata{}, items.HangoutMetadata{}, domainerrors.Invalid("title", "series title is required")
	}
	existing, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return items.SeriesMetadata{}, items.HangoutMetadata{}, err
	}
	if err := requireHost(existing, userID); err != nil {
		return items.SeriesMetadata{}, items.HangoutMetadata{}, err
	}
	if existing.SeriesID != "" {
		return items.SeriesMetadata{}, items.HangoutMetadata{}, domainerrors.ErrConflict
	}

	newMember.UserID = userID
	created, err := buildNewHangout(ctx, s.Groups, s.IDs, newMember)
	if err != nil {
		return items.SeriesMetadata{}, items.HangoutMetadata{}, err
	}

	seriesID := s.IDs.NewID()
	created.SeriesID = seriesID
	members := []items.HangoutMetadata{existing, created}
	groupSet := map[string]struct{}{}
	var earliest int64
	for _, member := range members {
		for _, groupID := range member.AssociatedGroups {
			groupSet[groupID] = struct{}{}
		}
		if member.StartTimestamp > 0 && (earliest == 0 || member.StartTimestamp < earliest) {
			earliest = member.StartTimestamp
		}
	}
	groupIDs := make([]string, 0, len(groupSet))
	for groupID := range groupSet {
		groupIDs = append(groupIDs, groupID)
	}
	series := items.SeriesMetadata{
		SeriesID:         seriesID,
		SeriesTitle:      title,
		GroupIDs:         groupIDs,
		MemberHangoutIDs: []string{existing.HangoutID, created.HangoutID},
		StartTimestamp:   earliest,
		Version:          1,
	}

	pointers := make([]items.SeriesPointer, 0, len(groupIDs))
	for _, groupID := range groupIDs {
		pointers = append(pointers, items.SeriesPointer{
			GroupID:        groupID,
			SeriesID:       seriesID,
			SeriesTitle:    title,
			StartTimestamp: earliest,
			MemberCount:    len(members),
		})
	}

	// stamp the promoted hangout; the new member is born with its seriesId
	extraOps, err := s.stampMembers([]items.HangoutMetadata{existing}, seriesID)
	if err != nil {
		return items.SeriesMetadata{}, items.HangoutMetadata{}, err
	}
	createdPointers, err := buildPointers(created)
	if err != nil {
		return items.SeriesMetadata{}, items.HangoutMetadata{}, err
	}
	createOps, err := s.Hangouts.CreateOps(created, createdPointers)
	if err != nil {
		return items.SeriesMetadata{}, items.HangoutMetadata{}, err
	}
	extraOps = append(extraOps, createOps...)
	bumps, err := s.validatorBumps(groupIDs)
	if err != nil {
		return items.SeriesMetadata{}, items.HangoutMetadata{}, err
	}
	extraOps = append(extraOps, bumps...)
	if err := s.Series.Create(ctx, series, pointers, extraOps); err != nil {
		return items.SeriesMetadata{}, items.HangoutMetadata{}, err
	}
	serviceLogger(s.Logger, "series_created").Info("series created",
		"series_id", seriesID, "promoted_hangout_id", existing.HangoutID,
		"new_hangout_id", created.HangoutID)
	return series, created, nil
}

// stampMembers writes the seriesId onto each member canonical and each of
// the member's pointers.
func (s SeriesService) stampMembers(members []items.HangoutMetadata, seriesID string) ([]ports.TransactOp, error) {
	var ops []ports.TransactOp
	for _, hangout := range members {
		canonicalOp, err := s.Hangouts.CanonicalUpdateOp(hangout.HangoutID,
			map[string]any{items.AttrSeriesID: seriesID}, hangout.Version)
		if err != nil {
			return nil, err
		}
		ops = append(ops, canonicalOp)
		partitions, err := pointerPartitions(hangout)
		if err != nil {
			return nil, err
		}
		for _, partition := range partitions {
			op, err := s.Hangouts.PointerUpdateOp(partition, hangout.HangoutID,
				map[string]any{items.AttrSeriesID: seriesID})
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func (s SeriesService) GetSeries(ctx context.Context, seriesID string) (items.SeriesMetadata, error) {
	return s.Series.GetMetadata(ctx, seriesID)
}

// AddHangout links one more hangout into an existing series.
func (s SeriesService) AddHangout(ctx context.Context, userID, seriesID, hangoutID string) error {
	series, err := s.Series.GetMetadata(ctx, seriesID)
	if err != nil {
		return err
	}
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return err
	}
	if err := requireHost(hangout, userID); err != nil {
		return err
	}
	if hangout.SeriesID != "" {
		return domainerrors.ErrConflict
	}
	for _, member := range series.MemberHangoutIDs {
		if member == hangoutID {
			return domainerrors.ErrAlreadyExists
		}
	}

	memberIDs := append(append([]string{}, series.MemberHangoutIDs...), hangoutID)
	earliest := series.StartTimestamp
	if hangout.StartTimestamp > 0 && (earliest == 0 || hangout.StartTimestamp < earliest) {
		earliest = hangout.StartTimestamp
	}
	groupIDs := series.GroupIDs
	newGroups := []string{}
	for _, groupID := range hangout.AssociatedGroups {
		known := false
		for _, existing := range groupIDs {
			if existing == groupID {
				known = true
				break
			}
		}
		if !known {
			newGroups = append(newGroups, groupID)
		}
	}
	groupIDs = append(append([]string{}, groupIDs...), newGroups...)

	seriesOp, err := s.Series.CanonicalUpdateOp(seriesID, map[string]any{
		items.AttrMemberHangouts: memberIDs,
		items.AttrGroupIDs:       groupIDs,
		items.AttrStartTimestamp: earliest,
	}, series.Version)
	if err != nil {
		return err
	}
	ops := []ports.TransactOp{seriesOp}

	stamp, err := s.stampMembers([]items.HangoutMetadata{hangout}, seriesID)
	if err != nil {
		return err
	}
	ops = append(ops, stamp...)

	pointerSet := map[string]any{
		items.AttrMemberCount:    len(memberIDs),
		items.AttrStartTimestamp: earliest,
	}
	for _, groupID := range series.GroupIDs {
		op, err := s.Series.PointerUpdateOp(groupID, seriesID, pointerSet)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	for _, groupID := range newGroups {
		op, err := s.Series.PointerPutOp(items.SeriesPointer{
			GroupID:        groupID,
			SeriesID:       seriesID,
			SeriesTitle:    series.SeriesTitle,
			StartTimestamp: earliest,
			MemberCount:    len(memberIDs),
		})
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	bumps, err := s.validatorBumps(groupIDs)
	if err != nil {
		return err
	}
	return s.Series.Transact(ctx, append(ops, bumps...))
}

// RemoveHangout unlinks a member. Dropping below two members is rejected;
// the caller deletes the series instead.
func (s SeriesService) RemoveHangout(ctx context.Context, userID, seriesID, hangoutID string) error {
	series, err := s.Series.GetMetadata(ctx, seriesID)
	if err != nil {
		return err
	}
	if len(series.MemberHangoutIDs) <= minSeriesMembers {
		return domainerrors.Invalid("hangoutId", "a series keeps at least two hangouts; delete the series instead")
	}
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return err
	}
	if err := requireHost(hangout, userID); err != nil {
		return err
	}

	memberIDs := make([]string, 0, len(series.MemberHangoutIDs))
	found := false
	for _, member := range series.MemberHangoutIDs {
		if member == hangoutID {
			found = true
			continue
		}
		memberIDs = append(memberIDs, member)
	}
	if !found {
		return domainerrors.ErrNotFound
	}

	seriesOp, err := s.Series.CanonicalUpdateOp(seriesID,
		map[string]any{items.AttrMemberHangouts: memberIDs}, series.Version)
	if err != nil {
		return err
	}
	ops := []ports.TransactOp{seriesOp}

	unstampOp, err := s.Hangouts.CanonicalUpdateOp(hangoutID,
		map[string]any{items.AttrSeriesID: ""}, hangout.Version)
	if err != nil {
		return err
	}
	ops = append(ops, unstampOp)
	partitions, err := pointerPartitions(hangout)
	if err != nil {
		return err
	}
	for _, partition := range partitions {
		op, err := s.Hangouts.PointerUpdateOp(partition, hangoutID,
			map[string]any{items.AttrSeriesID: ""})
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	for _, groupID := range series.GroupIDs {
		op, err := s.Series.PointerUpdateOp(groupID, seriesID,
			map[string]any{items.AttrMemberCount: len(memberIDs)})
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	bumps, err := s.validatorBumps(series.GroupIDs)
	if err != nil {
		return err
	}
	return s.Series.Transact(ctx, append(ops, bumps...))
}

// UpdateSeries renames the series on the canonical and every pointer.
func (s SeriesService) UpdateSeries(ctx context.Context, userID, seriesID, title string) (items.SeriesMetadata, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return items.SeriesMetadata{}, domainerrors.Invalid("title", "series title is required")
	}
	series, err := s.Series.GetMetadata(ctx, seriesID)
	if err != nil {
		return items.SeriesMetadata{}, err
	}
	if err := s.requireMemberHost(ctx, series, userID); err != nil {
		return items.SeriesMetadata{}, err
	}
	seriesOp, err := s.Series.CanonicalUpdateOp(seriesID,
		map[string]any{items.AttrSeriesTitle: title}, series.Version)
	if err != nil {
		return items.SeriesMetadata{}, err
	}
	ops := []ports.TransactOp{seriesOp}
	for _, groupID := range series.GroupIDs {
		op, err := s.Series.PointerUpdateOp(groupID, seriesID,
			map[string]any{items.AttrSeriesTitle: title})
		if err != nil {
			return items.SeriesMetadata{}, err
		}
		ops = append(ops, op)
	}
	if err := s.Series.Transact(ctx, ops); err != nil {
		return items.SeriesMetadata{}, err
	}
	series.SeriesTitle = title
	series.Version++
	return series, nil
}

// DeleteSeries unlinks every member and removes the series partition plus
// its group pointers. Members survive as standalone hangouts.
func (s SeriesService) DeleteSeries(ctx context.Context, userID, seriesID string) error {
	series, err := s.Series.GetMetadata(ctx, seriesID)
	if err != nil {
		return err
	}
	if err := s.requireMemberHost(ctx, series, userID); err != nil {
		return err
	}
	for _, hangoutID := range series.MemberHangoutIDs {
		if err := s.unstampMember(ctx, hangoutID); err != nil {
			return err
		}
	}
	var ops []ports.TransactOp
	for _, groupID := range series.GroupIDs {
		op, err := s.Series.PointerDeleteOp(groupID, seriesID)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	bumps, err := s.validatorBumps(series.GroupIDs)
	if err != nil {
		return err
	}
	if len(ops) > 0 {
		if err := s.Series.Transact(ctx, append(ops, bumps...)); err != nil {
			return err
		}
	}
	return s.Series.DeleteSeriesItems(ctx, seriesID)
}

func (s SeriesService) unstampMember(ctx context.Context, hangoutID string) error {
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if errors.Is(err, domainerrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	ops, err := s.stampMembers([]items.HangoutMetadata{hangout}, "")
	if err != nil {
		return err
	}
	return s.Series.Transact(ctx, ops)
}

// requireMemberHost authorizes series mutations: the caller must host at
// least one member hangout.
func (s SeriesService) requireMemberHost(ctx context.Context, series items.SeriesMetadata, userID string) error {
	for _, hangoutID := range series.MemberHangoutIDs {
		hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
		if err != nil {
			continue
		}
		if hangout.IsHost(userID) {
			return nil
		}
	}
	return domainerrors.ErrForbidden
}

func (s SeriesService) validatorBumps(groupIDs []string) ([]ports.TransactOp, error) {
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
