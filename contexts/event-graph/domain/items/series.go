package items

import (
	"inviter/contexts/event-graph/domain/keys"
)

const (
	AttrSeriesTitle    = "seriesTitle"
	AttrGroupIDs       = "groupIds"
	AttrMemberHangouts = "memberHangoutIds"
	AttrMemberCount    = "memberCount"
)

// SeriesMetadata is the canonical record of a named collection of linked
// hangouts. A series always has at least two members; unlinking below two
// is rejected and callers delete the series instead.
type SeriesMetadata struct {
	SeriesID         string
	SeriesTitle      string
	GroupIDs         []string
	MemberHangoutIDs []string
	StartTimestamp   int64 // earliest member start, keeps the pointer sorted
	Version          int64
}

func (s SeriesMetadata) Item() (Item, error) {
	pk, err := keys.SeriesPK(s.SeriesID)
	if err != nil {
		return nil, err
	}
	return Item{
		AttrPK:             pk,
		AttrSK:             keys.Metadata,
		AttrSeriesTitle:    s.SeriesTitle,
		AttrGroupIDs:       s.GroupIDs,
		AttrMemberHangouts: s.MemberHangoutIDs,
		AttrStartTimestamp: s.StartTimestamp,
		AttrVersion:        s.Version,
	}, nil
}

func SeriesMetadataFromItem(item Item) SeriesMetadata {
	seriesID, _ := keys.ParseSeriesPK(item.PK())
	return SeriesMetadata{
		SeriesID:         seriesID,
		SeriesTitle:      item.String(AttrSeriesTitle),
		GroupIDs:         item.StringSlice(AttrGroupIDs),
		MemberHangoutIDs: item.StringSlice(AttrMemberHangouts),
		StartTimestamp:   item.Int64(AttrStartTimestamp),
		Version:          item.Int64(AttrVersion),
	}
}

// SeriesPointer projects a series into each participating group partition.
type SeriesPointer struct {
	GroupID        string
	SeriesID       string
	SeriesTitle    string
	StartTimestamp int64
	MemberCount    int
}

func (p SeriesPointer) Item() (Item, error) {
	pk, err := keys.GroupPK(p.GroupID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.SeriesPointerSK(p.SeriesID)
	if err != nil {
		return nil, err
	}
	return Item{
		AttrPK:             pk,
		AttrSK:             sk,
		AttrGSI1PK:         pk,
		AttrSeriesTitle:    p.SeriesTitle,
		AttrStartTimestamp: p.StartTimestamp,
		AttrMemberCount:    p.MemberCount,
	}, nil
}

func SeriesPointerFromItem(item Item) SeriesPointer {
	groupID, _ := keys.ParseGroupPK(item.PK())
	seriesID, _ := keys.ParseSeriesPointerSK(item.SK())
	return SeriesPointer{
		GroupID:        groupID,
		SeriesID:       seriesID,
		SeriesTitle:    item.String(AttrSeriesTitle),
		StartTimestamp: item.Int64(AttrStartTimestamp),
		MemberCount:    item.Int(AttrMemberCount),
	}
}
