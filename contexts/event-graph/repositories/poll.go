package repositories

import (
	"context"
	"log/slog"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/domain/keys"
	"inviter/contexts/event-graph/ports"
)

type PollRepository struct {
	Store  ports.Store
	Logger *slog.Logger
}

// CreatePoll writes the poll and its options in one transaction so a poll
// is never visible without its choices.
func (r *PollRepository) CreatePoll(ctx context.Context, poll items.Poll, options []items.PollOption) error {
	pollItem, err := poll.Item()
	if err != nil {
		return err
	}
	ops := []ports.TransactOp{{Put: &ports.PutOp{Item: pollItem, Condition: ports.IfNotExists()}}}
	for _, option := range options {
		optionItem, err := option.Item()
		if err != nil {
			return err
		}
		ops = append(ops, ports.TransactOp{Put: &ports.PutOp{Item: optionItem}})
	}
	for _, chunk := range chunkOps(ops) {
		if err := r.Store.Transact(ctx, chunk); err != nil {
			if _, canceled := ports.AsTransactionCanceled(err); canceled {
				return domainerrors.ErrAlreadyExists
			}
			return logError(r.Logger, "poll_repo_create_failed", mapStoreErr(err),
				"hangout_id", poll.HangoutID, "poll_id", poll.PollID)
		}
	}
	return nil
}

func (r *PollRepository) GetPoll(ctx context.Context, hangoutID, pollID string) (items.Poll, error) {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return items.Poll{}, domainerrors.Invalid("hangoutId", err.Error())
	}
	sk, err := keys.PollSK(pollID)
	if err != nil {
		return items.Poll{}, domainerrors.Invalid("pollId", err.Error())
	}
	item, found, err := r.Store.Get(ctx, pk, sk)
	if err != nil {
		return items.Poll{}, logError(r.Logger, "poll_repo_get_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "poll_id", pollID)
	}
	if !found {
		return items.Poll{}, domainerrors.ErrNotFound
	}
	return items.PollFromItem(item), nil
}

// LoadPollItems returns every option and vote of one poll. A single
// begins_with query on POLL#{pid} covers the poll record, all options, and
// all votes because their sort keys share that prefix.
func (r *PollRepository) LoadPollItems(ctx context.Context, hangoutID, pollID string) (items.Poll, []items.PollOption, []items.Vote, error) {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return items.Poll{}, nil, nil, domainerrors.Invalid("hangoutId", err.Error())
	}
	prefix, err := keys.PollSK(pollID)
	if err != nil {
		return items.Poll{}, nil, nil, domainerrors.Invalid("pollId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk, SortPrefix: prefix})
	if err != nil {
		return items.Poll{}, nil, nil, logError(r.Logger, "poll_repo_load_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "poll_id", pollID)
	}
	var (
		poll    items.Poll
		found   bool
		options []items.PollOption
		votes   []items.Vote
	)
	for _, item := range page.Items {
		switch keys.Classify(item.SK()) {
		case keys.KindPoll:
			poll = items.PollFromItem(item)
			found = true
		case keys.KindPollOption:
			options = append(options, items.PollOptionFromItem(item))
		case keys.KindVote:
			votes = append(votes, items.VoteFromItem(item))
		}
	}
	if !found {
		return items.Poll{}, nil, nil, domainerrors.ErrNotFound
	}
	return poll, options, votes, nil
}

// ListUserVotes returns the votes one user cast in one poll, used to build
// the single-choice replace transaction.
func (r *PollRepository) ListUserVotes(ctx context.Context, hangoutID, pollID, userID string) ([]items.Vote, error) {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return nil, domainerrors.Invalid("hangoutId", err.Error())
	}
	prefix, err := keys.VotePrefixSK(pollID, userID)
	if err != nil {
		return nil, domainerrors.Invalid("userId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk, SortPrefix: prefix})
	if err != nil {
		return nil, logError(r.Logger, "poll_repo_list_votes_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "poll_id", pollID, "user_id", userID)
	}
	votes := make([]items.Vote, 0, len(page.Items))
	for _, item := range page.Items {
		votes = append(votes, items.VoteFromItem(item))
	}
	return votes, nil
}

// CastVote writes the new vote and deletes replaced votes atomically. For a
// multiple-choice poll replaced is empty and this degrades to a single put.
func (r *PollRepository) CastVote(ctx context.Context, vote items.Vote, replaced []items.Vote, extraOps []ports.TransactOp) error {
	voteItem, err := vote.Item()
	if err != nil {
		return err
	}
	ops := []ports.TransactOp{{Put: &ports.PutOp{Item: voteItem}}}
	for _, old := range replaced {
		sk, err := keys.VoteSK(old.PollID, old.UserID, old.OptionID)
		if err != nil {
			return domainerrors.Invalid("optionId", err.Error())
		}
		pk, _ := keys.HangoutPK(old.HangoutID)
		ops = append(ops, ports.TransactOp{Delete: &ports.DeleteOp{PK: pk, SK: sk}})
	}
	ops = append(ops, extraOps...)
	for _, chunk := range chunkOps(ops) {
		if err := r.Store.Transact(ctx, chunk); err != nil {
			if _, canceled := ports.AsTransactionCanceled(err); canceled {
				return domainerrors.ErrConflict
			}
			return logError(r.Logger, "poll_repo_cast_vote_failed", mapStoreErr(err),
				"hangout_id", vote.HangoutID, "poll_id", vote.PollID, "user_id", vote.UserID)
		}
	}
	return nil
}

func (r *PollRepository) DeleteVote(ctx context.Context, vote items.Vote, extraOps []ports.TransactOp) error {
	pk, err := keys.HangoutPK(vote.HangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	sk, err := keys.VoteSK(vote.PollID, vote.UserID, vote.OptionID)
	if err != nil {
		return domainerrors.Invalid("optionId", err.Error())
	}
	ops := []ports.TransactOp{{Delete: &ports.DeleteOp{PK: pk, SK: sk, Condition: ports.IfExists()}}}
	ops = append(ops, extraOps...)
	err = r.Store.Transact(ctx, ops)
	if _, canceled := ports.AsTransactionCanceled(err); canceled {
		return domainerrors.ErrNotFound
	}
	if err != nil {
		return logError(r.Logger, "poll_repo_delete_vote_failed", mapStoreErr(err),
			"hangout_id", vote.HangoutID, "poll_id", vote.PollID, "user_id", vote.UserID)
	}
	return nil
}

func (r *PollRepository) AddOption(ctx context.Context, option items.PollOption) error {
	item, err := option.Item()
	if err != nil {
		return err
	}
	if err := r.Store.Put(ctx, item, ports.NoCondition()); err != nil {
		return logError(r.Logger, "poll_repo_add_option_failed", mapStoreErr(err),
			"hangout_id", option.HangoutID, "poll_id", option.PollID)
	}
	return nil
}

// DeleteOption removes the option and every vote attached to it in one
// transaction. Callers enforce the two-options floor first.
func (r *PollRepository) DeleteOption(ctx context.Context, option items.PollOption, votes []items.Vote) error {
	pk, err := keys.HangoutPK(option.HangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	sk, err := keys.PollOptionSK(option.PollID, option.OptionID)
	if err != nil {
		return domainerrors.Invalid("optionId", err.Error())
	}
	ops := []ports.TransactOp{{Delete: &ports.DeleteOp{PK: pk, SK: sk, Condition: ports.IfExists()}}}
	for _, vote := range votes {
		voteSK, err := keys.VoteSK(vote.PollID, vote.UserID, vote.OptionID)
		if err != nil {
			continue
		}
		ops = append(ops, ports.TransactOp{Delete: &ports.DeleteOp{PK: pk, SK: voteSK}})
	}
	for _, chunk := range chunkOps(ops) {
		err := r.Store.Transact(ctx, chunk)
		if _, canceled := ports.AsTransactionCanceled(err); canceled {
			return domainerrors.ErrNotFound
		}
		if err != nil {
			return logError(r.Logger, "poll_repo_delete_option_failed", mapStoreErr(err),
				"hangout_id", option.HangoutID, "poll_id", option.PollID, "option_id", option.OptionID)
		}
	}
	return nil
}

// DeletePoll removes the poll record, its options, and its votes.
func (r *PollRepository) DeletePoll(ctx context.Context, hangoutID, pollID string) error {
	pk, err := keys.HangoutPK(hangoutID)
	if err != nil {
		return domainerrors.Invalid("hangoutId", err.Error())
	}
	prefix, err := keys.PollSK(pollID)
	if err != nil {
		return domainerrors.Invalid("pollId", err.Error())
	}
	page, err := r.Store.Query(ctx, ports.Query{PK: pk, SortPrefix: prefix})
	if err != nil {
		return logError(r.Logger, "poll_repo_delete_scan_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "poll_id", pollID)
	}
	if len(page.Items) == 0 {
		return domainerrors.ErrNotFound
	}
	ops := make([]ports.BatchOp, 0, len(page.Items))
	for _, item := range page.Items {
		ops = append(ops, ports.BatchOp{DeletePK: pk, DeleteSK: item.SK()})
	}
	if err := r.Store.BatchWrite(ctx, ops); err != nil {
		return logError(r.Logger, "poll_repo_delete_batch_failed", mapStoreErr(err),
			"hangout_id", hangoutID, "poll_id", pollID)
	}
	return nil
}
