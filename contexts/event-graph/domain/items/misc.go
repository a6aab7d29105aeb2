package items

import (
	"inviter/contexts/event-graph/domain/keys"
)

const (
	AttrPlatform          = "platform"
	AttrDeviceID          = "deviceId"
	AttrTokenHash         = "tokenHash"
	AttrHashSchemeVersion = "hashSchemeVersion"
	AttrIssuedAt          = "issuedAt"
	AttrRotatedFrom       = "rotatedFrom"
	AttrAddress           = "address"
	AttrPosition          = "position"
	AttrAddedBy           = "addedBy"
)

const (
	HashSchemeSHA256 = 2
	HashSchemeBCrypt = 1
)

// Device is a push-notification registration keyed by its token.
type Device struct {
	Token        string
	UserID       string
	Platform     string
	RegisteredAt int64
}

func (d Device) Item() (Item, error) {
	pk, err := keys.DevicePK(d.Token)
	if err != nil {
		return nil, err
	}
	userPK, err := keys.UserPK(d.UserID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:        pk,
		AttrSK:        keys.Metadata,
		AttrGSI1PK:    userPK,
		AttrGSI1SK:    pk,
		AttrUserID:    d.UserID,
		AttrCreatedAt: d.RegisteredAt,
	}
	setIfString(item, AttrPlatform, d.Platform)
	return item, nil
}

func DeviceFromItem(item Item) Device {
	return Device{
		Token:        trimPrefix(item.PK(), "DEVICE#"),
		UserID:       item.String(AttrUserID),
		Platform:     item.String(AttrPlatform),
		RegisteredAt: item.Int64(AttrCreatedAt),
	}
}

// RefreshToken is stored under the hash of the opaque token value. The
// scheme version selects the verification path: current tokens are SHA-256
// keyed, legacy rows still carry bcrypt digests.
type RefreshToken struct {
	TokenHash         string
	HashSchemeVersion int
	UserID            string
	DeviceID          string
	IssuedAt          int64
	RotatedFrom       string
}

func (t RefreshToken) Item() (Item, error) {
	pk, err := keys.RefreshPK(t.TokenHash)
	if err != nil {
		return nil, err
	}
	userPK, err := keys.UserPK(t.UserID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:                pk,
		AttrSK:                keys.Metadata,
		AttrGSI1PK:            userPK,
		AttrGSI1SK:            pk,
		AttrTokenHash:         t.TokenHash,
		AttrHashSchemeVersion: t.HashSchemeVersion,
		AttrUserID:            t.UserID,
		AttrIssuedAt:          t.IssuedAt,
	}
	setIfString(item, AttrDeviceID, t.DeviceID)
	setIfString(item, AttrRotatedFrom, t.RotatedFrom)
	return item, nil
}

func RefreshTokenFromItem(item Item) RefreshToken {
	return RefreshToken{
		TokenHash:         item.String(AttrTokenHash),
		HashSchemeVersion: item.Int(AttrHashSchemeVersion),
		UserID:            item.String(AttrUserID),
		DeviceID:          item.String(AttrDeviceID),
		IssuedAt:          item.Int64(AttrIssuedAt),
		RotatedFrom:       item.String(AttrRotatedFrom),
	}
}

// IdeaList groups free-form hangout ideas inside a group partition.
type IdeaList struct {
	GroupID   string
	ListID    string
	Name      string
	CreatedBy string
	CreatedAt int64
}

func (l IdeaList) Item() (Item, error) {
	pk, err := keys.GroupPK(l.GroupID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.IdeaListSK(l.ListID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:        pk,
		AttrSK:        sk,
		AttrName:      l.Name,
		AttrCreatedAt: l.CreatedAt,
	}
	setIfString(item, AttrCreatedBy, l.CreatedBy)
	return item, nil
}

func IdeaListFromItem(item Item) IdeaList {
	groupID, _ := keys.ParseGroupPK(item.PK())
	listID, _ := keys.ParseIdeaListSK(item.SK())
	return IdeaList{
		GroupID:   groupID,
		ListID:    listID,
		Name:      item.String(AttrName),
		CreatedBy: item.String(AttrCreatedBy),
		CreatedAt: item.Int64(AttrCreatedAt),
	}
}

type Idea struct {
	GroupID  string
	ListID   string
	IdeaID   string
	Text     string
	Position int
	AddedBy  string
}

func (i Idea) Item() (Item, error) {
	pk, err := keys.GroupPK(i.GroupID)
	if err != nil {
		return nil, err
	}
	sk, err := keys.IdeaSK(i.ListID, i.IdeaID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:       pk,
		AttrSK:       sk,
		AttrValue:    i.Text,
		AttrPosition: i.Position,
	}
	setIfString(item, AttrAddedBy, i.AddedBy)
	return item, nil
}

func IdeaFromItem(item Item) Idea {
	groupID, _ := keys.ParseGroupPK(item.PK())
	key, _ := keys.ParseIdeaSK(item.SK())
	return Idea{
		GroupID:  groupID,
		ListID:   key.ListID,
		IdeaID:   key.IdeaID,
		Text:     item.String(AttrValue),
		Position: item.Int(AttrPosition),
		AddedBy:  item.String(AttrAddedBy),
	}
}

// Place is a saved location, scoped to a user or a group partition.
type Place struct {
	OwnerPK   string // USER#{uid} or GROUP#{gid}
	PlaceID   string
	Name      string
	Address   string
	Notes     string
	CreatedBy string
}

func (p Place) Item() (Item, error) {
	sk, err := keys.PlaceSK(p.PlaceID)
	if err != nil {
		return nil, err
	}
	item := Item{
		AttrPK:   p.OwnerPK,
		AttrSK:   sk,
		AttrName: p.Name,
	}
	setIfString(item, AttrAddress, p.Address)
	setIfString(item, AttrNotes, p.Notes)
	setIfString(item, AttrCreatedBy, p.CreatedBy)
	return item, nil
}

func PlaceFromItem(item Item) Place {
	placeID, _ := keys.ParsePlaceSK(item.SK())
	return Place{
		OwnerPK:   item.PK(),
		PlaceID:   placeID,
		Name:      item.String(AttrName),
		Address:   item.String(AttrAddress),
		Notes:     item.String(AttrNotes),
		CreatedBy: item.String(AttrCreatedBy),
	}
}

func trimPrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}
