package items

import (
	"inviter/contexts/event-graph/domain/keys"
)

const (
	AttrPollID         = "pollId"
	AttrUserID         = "userId"
	AttrOptionID       = "optionId"
	AttrMultipleChoice = "multipleChoice"
	AttrOptionText     = "text"
	AttrVoteType       = "voteType"
	AttrCreatedBy      = "createdBy"
)

const (
	VoteTypePreference = "PREFERENCE"
	VoteTypeYes        = "YES"
	VoteTypeNo         = "NO"
	VoteTypeMaybe      = "MAYBE"
)

// Poll lives inside its hangout's partition, so loadDetail picks it up in
// the same range query as everything else.
type Poll struct {
	HangoutID      string
	PollID         string
	Title          string
	MultipleChoice bool
	CreatedBy      string
	CreatedAt      int64
}

func (p Poll) Item() (Item, error) {
	pk, err := keys.HangoutPK(p.HangoutID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.PollSK(p.PollID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:             pk,
		AttrSK:             sk,
		AttrPollID:         p.PollID,
		AttrTitle:          p.Title,
		AttrMultipleChoice: p.MultipleChoice,
		AttrCreatedAt:      p.CreatedAt,
	}
	setIfString(item, AttrCreatedBy, p.CreatedBy)
	return item, nil
}

func PollFromItem(item Item) Poll {
	hangoutID, _ := keys.ParseHangoutPK(item.PK())
	pollID, _ := keys.ParsePollSK(item.SK())
	return Poll{
		HangoutID:      hangoutID,
		PollID:         pollID,
		Title:          item.String(AttrTitle),
		MultipleChoice: item.Bool(AttrMultipleChoice),
		CreatedBy:      item.String(AttrCreatedBy),
		CreatedAt:      item.Int64(AttrCreatedAt),
	}
}

type PollOption struct {
	HangoutID string
	PollID    string
	OptionID  string
	Text      string
}

func (o PollOption) Item() (Item, error) {
	pk, err := keys.HangoutPK(o.HangoutID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.PollOptionSK(o.PollID, o.OptionID)
	if err != nil {
		return nil, err
	}
	return Item{
		AttrPK:         pk,
		AttrSK:         sk,
		AttrPollID:     o.PollID,
		AttrOptionID:   o.OptionID,
		AttrOptionText: o.Text,
	}, nil
}

func PollOptionFromItem(item Item) PollOption {
	hangoutID, _ := keys.ParseHangoutPK(item.PK())
	key, _ := keys.ParsePollOptionSK(item.SK())
	return PollOption{
		HangoutID: hangoutID,
		PollID:    key.PollID,
		OptionID:  key.OptionID,
		Text:      item.String(AttrOptionText),
	}
}

// Vote's sort key embeds (pollId, userId, optionId), which makes the triple
// unique by construction.
type Vote struct {
	HangoutID string
	PollID    string
	UserID    string
	OptionID  string
	VoteType  string
	CreatedAt int64
}

func (v Vote) Item() (Item, error) {
	pk, err := keys.HangoutPK(v.HangoutID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.VoteSK(v.PollID, v.UserID, v.OptionID)
	if err != nil {
		return nil, err
	}
	return Item{
		AttrPK:        pk,
		AttrSK:        sk,
		AttrPollID:    v.PollID,
		AttrUserID:    v.UserID,
		AttrOptionID:  v.OptionID,
		AttrVoteType:  v.VoteType,
		AttrCreatedAt: v.CreatedAt,
	}, nil
}

func VoteFromItem(item Item) Vote {
	hangoutID, _ := keys.ParseHangoutPK(item.PK())
	key, _ := keys.ParseVoteSK(item.SK())
	return Vote{
		HangoutID: hangoutID,
		PollID:    key.PollID,
		UserID:    key.UserID,
		OptionID:  key.OptionID,
		VoteType:  item.String(AttrVoteType),
		CreatedAt: item.Int64(AttrCreatedAt),
	}
}
