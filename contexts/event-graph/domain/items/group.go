package items

import (
	"inviter/contexts/event-graph/domain/keys"
)

const (
	AttrGroupName           = "groupName"
	AttrIsPublic            = "isPublic"
	AttrMainImagePath       = "mainImagePath"
	AttrLastHangoutModified = "lastHangoutModified"
	AttrRole                = "role"
	AttrUserName            = "userName"
	AttrSubscriptionToken   = "subscriptionToken"
	AttrCreatedAt           = "createdAt"
)

const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// GroupMetadata is the canonical group record. LastHangoutModified is the
// feed ETag seed and is bumped by every write that changes the group's
// pointer set or a pointer's denormalized fields.
type GroupMetadata struct {
	GroupID             string
	GroupName           string
	IsPublic            bool
	MainImagePath       string
	LastHangoutModified int64 // unix ms
	Version             int64
}

func (g GroupMetadata) Item() (Item, error) {
	pk, err := keys.GroupPK(g.GroupID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:                  pk,
		AttrSK:                  keys.Metadata,
		AttrGroupName:           g.GroupName,
		AttrIsPublic:            g.IsPublic,
		AttrLastHangoutModified: g.LastHangoutModified,
		AttrVersion:             g.Version,
	}
	setIfString(item, AttrMainImagePath, g.MainImagePath)
	return item, nil
}

func GroupMetadataFromItem(item Item) GroupMetadata {
	groupID, _ := keys.ParseGroupPK(item.PK())
	return GroupMetadata{
		GroupID:             groupID,
		GroupName:           item.String(AttrGroupName),
		IsPublic:            item.Bool(AttrIsPublic),
		MainImagePath:       item.String(AttrMainImagePath),
		LastHangoutModified: item.Int64(AttrLastHangoutModified),
		Version:             item.Int64(AttrVersion),
	}
}

// Membership links a user to a group. GroupName is denormalized so that
// listing a user's groups never follows up to the canonical group record.
// SubscriptionToken, when set, authorizes the calendar feed for this member.
type Membership struct {
	GroupID           string
	UserID            string
	UserName          string
	Role              string
	GroupName         string
	SubscriptionToken string
}

func (m Membership) Item() (Item, error) {
	pk, err := keys.GroupPK(m.GroupID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.MemberSK(m.UserID)
	if err != nil {
		return nil, err
	}
	userPK, err := keys.UserPK(m.UserID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:        pk,
		AttrSK:        sk,
		AttrGSI1PK:    userPK,
		AttrGSI1SK:    pk,
		AttrRole:      m.Role,
		AttrGroupName: m.GroupName,
	}
	setIfString(item, AttrUserName, m.UserName)
	setIfString(item, AttrSubscriptionToken, m.SubscriptionToken)
	return item, nil
}

func MembershipFromItem(item Item) Membership {
	groupID, _ := keys.ParseGroupPK(item.PK())
	userID, _ := keys.ParseMemberSK(item.SK())
	return Membership{
		GroupID:           groupID,
		UserID:            userID,
		UserName:          item.String(AttrUserName),
		Role:              item.String(AttrRole),
		GroupName:         item.String(AttrGroupName),
		SubscriptionToken: item.String(AttrSubscriptionToken),
	}
}

// InviteCode maps an 8-char code to a single group. The GSI projection
// allows the idempotent "one code per group" lookup by group partition.
type InviteCode struct {
	Code      string
	GroupID   string
	CreatedAt int64 // unix ms
}

func (c InviteCode) Item() (Item, error) {
	pk, err := keys.InvitePK(c.Code)
	if err != nil {
		return nil, err
	}
	sk, err := keys.InviteGroupSK(c.GroupID)
	if err != nil {
		return nil, err
	}
	return Item{
		AttrPK:        pk,
		AttrSK:        sk,
		AttrGSI1PK:    sk,
		AttrGSI1SK:    pk,
		AttrCreatedAt: c.CreatedAt,
	}, nil
}

func InviteCodeFromItem(item Item) InviteCode {
	code, _ := keys.ParseInvitePK(item.PK())
	groupID, _ := keys.ParseGroupPK(item.SK())
	return InviteCode{
		Code:      code,
		GroupID:   groupID,
		CreatedAt: item.Int64(AttrCreatedAt),
	}
}
