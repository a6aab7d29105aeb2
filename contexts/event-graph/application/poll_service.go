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

// minPollOptions is the floor a poll never drops below.
const minPollOptions = 2

type PollService struct {
	Polls    *repositories.PollRepository
	Hangouts *repositories.HangoutRepository
	Groups   *repositories.GroupRepository
	Clock    ports.Clock
	IDs      ports.IDGenerator
	Logger   *slog.Logger
}

type CreatePollInput struct {
	UserID         string
	HangoutID      string
	Title          string
	MultipleChoice bool
	Options        []string
}

// CreatePoll writes the poll with its options atomically and refreshes the
// pollsSummary on every pointer. A poll may start with no options at all
// and be populated later through AddOption.
func (s PollService) CreatePoll(ctx context.Context, in CreatePollInput) (items.Poll, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return items.Poll{}, domainerrors.Invalid("title", "poll title is required")
	}
	detail, err := s.Hangouts.LoadDetail(ctx, in.HangoutID)
	if err != nil {
		return items.Poll{}, err
	}
	if err := s.authorize(ctx, detail.Hangout, in.UserID); err != nil {
		return items.Poll{}, err
	}

	poll := items.Poll{
		HangoutID:      in.HangoutID,
		PollID:         s.IDs.NewID(),
		Title:          in.Title,
		MultipleChoice: in.MultipleChoice,
		CreatedBy:      in.UserID,
		CreatedAt:      s.Clock.Now().UnixMilli(),
	}
	options := make([]items.PollOption, 0, len(in.Options))
	for _, text := range in.Options {
		text = strings.TrimSpace(text)
		if text == "" {
			return items.Poll{}, domainerrors.Invalid("options", "option text cannot be empty")
		}
		options = append(options, items.PollOption{
			HangoutID: in.HangoutID,
			PollID:    poll.PollID,
			OptionID:  s.IDs.NewID(),
			Text:      text,
		})
	}
	if err := s.Polls.CreatePoll(ctx, poll, options); err != nil {
		return items.Poll{}, err
	}
	summary := items.PollsSummary{
		PollCount: len(detail.Polls) + 1,
		VoteCount: len(detail.Votes),
	}
	if err := s.patchSummary(ctx, detail.Hangout, summary); err != nil {
		return items.Poll{}, err
	}
	return poll, nil
}

type VoteInput struct {
	UserID    string
	HangoutID string
	PollID    string
	OptionID  string
	VoteType  string
}

// Vote records a choice. On a single-choice poll the new vote replaces any
// prior vote by the same user in the same transaction, so two rapid votes
// still leave exactly one row.
func (s PollService) Vote(ctx context.Context, in VoteInput) error {
	if in.VoteType == "" {
		in.VoteType = items.VoteTypePreference
	}
	switch in.VoteType {
	case items.VoteTypePreference, items.VoteTypeYes, items.VoteTypeNo, items.VoteTypeMaybe:
	default:
		return domainerrors.Invalid("voteType", "unknown vote type")
	}
	detail, err := s.Hangouts.LoadDetail(ctx, in.HangoutID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, detail.Hangout, in.UserID); err != nil {
		return err
	}
	var poll *items.Poll
	optionExists := false
	for i := range detail.Polls {
		if detail.Polls[i].PollID == in.PollID {
			poll = &detail.Polls[i]
		}
	}
	if poll == nil {
		return domainerrors.ErrNotFound
	}
	for _, option := range detail.Options {
		if option.PollID == in.PollID && option.OptionID == in.OptionID {
			optionExists = true
			break
		}
	}
	if !optionExists {
		return domainerrors.ErrNotFound
	}

	var replaced []items.Vote
	if !poll.MultipleChoice {
		for _, vote := range detail.Votes {
			if vote.PollID == in.PollID && vote.UserID == in.UserID && vote.OptionID != in.OptionID {
				replaced = append(replaced, vote)
			}
		}
	}
	vote := items.Vote{
		HangoutID: in.HangoutID,
		PollID:    in.PollID,
		UserID:    in.UserID,
		OptionID:  in.OptionID,
		VoteType:  in.VoteType,
		CreatedAt: s.Clock.Now().UnixMilli(),
	}
	voteDelta := 1 - len(replaced)
	alreadyVoted := false
	for _, existing := range detail.Votes {
		if existing.PollID == in.PollID && existing.UserID == in.UserID && existing.OptionID == in.OptionID {
			alreadyVoted = true
		}
	}
	if alreadyVoted {
		voteDelta--
	}
	summary := items.PollsSummary{
		PollCount: len(detail.Polls),
		VoteCount: len(detail.Votes) + voteDelta,
	}
	extraOps, err := s.summaryOps(detail.Hangout, summary)
	if err != nil {
		return err
	}
	return s.Polls.CastVote(ctx, vote, replaced, extraOps)
}

// RemoveVote retracts the caller's vote for one option.
func (s PollService) RemoveVote(ctx context.Context, in VoteInput) error {
	detail, err := s.Hangouts.LoadDetail(ctx, in.HangoutID)
	if err != nil {
		return err
	}
	summary := items.PollsSummary{
		PollCount: len(detail.Polls),
		VoteCount: len(detail.Votes) - 1,
	}
	if summary.VoteCount < 0 {
		summary.VoteCount = 0
	}
	extraOps, err := s.summaryOps(detail.Hangout, summary)
	if err != nil {
		return err
	}
	return s.Polls.DeleteVote(ctx, items.Vote{
		HangoutID: in.HangoutID,
		PollID:    in.PollID,
		UserID:    in.UserID,
		OptionID:  in.OptionID,
	}, extraOps)
}

// AddOption extends an open poll with one more choice.
func (s PollService) AddOption(ctx context.Context, userID, hangoutID, pollID, text string) (items.PollOption, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return items.PollOption{}, domainerrors.Invalid("text", "option text cannot be empty")
	}
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return items.PollOption{}, err
	}
	if err := s.authorize(ctx, hangout, userID); err != nil {
		return items.PollOption{}, err
	}
	if _, err := s.Polls.GetPoll(ctx, hangoutID, pollID); err != nil {
		return items.PollOption{}, err
	}
	option := items.PollOption{
		HangoutID: hangoutID,
		PollID:    pollID,
		OptionID:  s.IDs.NewID(),
		Text:      text,
	}
	if err := s.Polls.AddOption(ctx, option); err != nil {
		return items.PollOption{}, err
	}
	return option, nil
}

// DeleteOption removes an option and cascades its votes. A poll keeps at
// least two options; below that the whole poll goes instead.
func (s PollService) DeleteOption(ctx context.Context, userID, hangoutID, pollID, optionID string) error {
	hangout, err := s.Hangouts.GetMetadata(ctx, hangoutID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, hangout, userID); err != nil {
		return err
	}
	_, options, votes, err := s.Polls.LoadPollItems(ctx, hangoutID, pollID)
	if err != nil {
		return err
	}
	if len(options) <= minPollOptions {
		return domainerrors.ErrInsufficientOptions
	}
	var target *items.PollOption
	for i := range options {
		if options[i].OptionID == optionID {
			target = &options[i]
			break
		}
	}
	if target == nil {
		return domainerrors.ErrNotFound
	}
	var orphaned []items.Vote
	for _, vote := range votes {
		if vote.OptionID == optionID {
			orphaned = append(orphaned, vote)
		}
	}
	return s.Polls.DeleteOption(ctx, *target, orphaned)
}

// DeletePoll removes the poll with its options and votes, then refreshes
// the pointer summaries.
func (s PollService) DeletePoll(ctx context.Context, userID, hangoutID, pollID string) error {
	detail, err := s.Hangouts.LoadDetail(ctx, hangoutID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, detail.Hangout, userID); err != nil {
		return err
	}
	if err := s.Polls.DeletePoll(ctx, hangoutID, pollID); err != nil {
		return err
	}
	remainingVotes := 0
	for _, vote := range detail.Votes {
		if vote.PollID != pollID {
			remainingVotes++
		}
	}
	summary := items.PollsSummary{
		PollCount: len(detail.Polls) - 1,
		VoteCount: remainingVotes,
	}
	if summary.PollCount < 0 {
		summary.PollCount = 0
	}
	return s.patchSummary(ctx, detail.Hangout, summary)
}

func (s PollService) authorize(ctx context.Context, hangout items.HangoutMetadata, userID string) error {
	if hangout.Visibility == items.VisibilityPublic || hangout.IsHost(userID) {
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

func (s PollService) summaryOps(hangout items.HangoutMetadata, summary items.PollsSummary) ([]ports.TransactOp, error) {
	partitions, err := pointerPartitions(hangout)
	if err != nil {
		return nil, err
	}
	ops := make([]ports.TransactOp, 0, len(partitions))
	for _, partition := range partitions {
		op, err := s.Hangouts.PointerUpdateOp(partition, hangout.HangoutID,
			map[string]any{items.AttrPollsSummary: items.AsMap(summary)})
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	bumps, err := groupFeedBumpOps(s.Groups, hangout, s.Clock.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	return append(ops, bumps...), nil
}

func (s PollService) patchSummary(ctx context.Context, hangout items.HangoutMetadata, summary items.PollsSummary) error {
	ops, err := s.summaryOps(hangout, summary)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	return s.Hangouts.Transact(ctx, ops)
}
