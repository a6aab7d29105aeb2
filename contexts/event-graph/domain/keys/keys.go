// Package keys builds and parses the composite keys of the single-table
// layout. The sort-key shape is the type contract for every stored item, so
// all construction and parsing funnels through here.
package keys

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	groupPrefix     = "GROUP#"
	userPrefix      = "USER#"
	eventPrefix     = "EVENT#"
	hangoutPrefix   = "HANGOUT#"
	seriesPrefix    = "SERIES#"
	pollPrefix      = "POLL#"
	optionInfix     = "#OPTION#"
	voteInfix       = "#VOTE#"
	carPrefix       = "CAR#"
	riderInfix      = "#RIDER#"
	needsRidePrefix = "NEEDS_RIDE#"
	attributePrefix = "ATTRIBUTE#"
	participPrefix  = "PARTICIPATION#"
	offerPrefix     = "OFFER#"
	interestPrefix  = "INTEREST#"
	invitePrefix    = "INVITE#"
	devicePrefix    = "DEVICE#"
	refreshPrefix   = "REFRESH#"
	listPrefix      = "LIST#"
	ideaInfix       = "#IDEA#"
	placePrefix     = "PLACE#"

	// Metadata is the sort key of every canonical single-item record.
	Metadata = "METADATA"
)

// InvalidKeyError reports a malformed identifier or key string.
type InvalidKeyError struct {
	Key    string
	Reason string
}

func (e InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %q: %s", e.Key, e.Reason)
}

func invalidKey(key, reason string) error {
	return InvalidKeyError{Key: key, Reason: reason}
}

// requireUUID rejects identifiers that are not UUIDv4-shaped. Sequential
// identifiers would hot-spot partitions, so the shape is enforced at key
// construction rather than trusted from callers.
func requireUUID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", invalidKey(id, "identifier is not a UUID")
	}
	return parsed.String(), nil
}

func mustUUID(id string) string {
	normalized, err := requireUUID(id)
	if err != nil {
		panic(err)
	}
	return normalized
}

// ---- partition keys ----

func GroupPK(groupID string) (string, error) {
	id, err := requireUUID(groupID)
	if err != nil {
		return "", err
	}
	return groupPrefix + id, nil
}

func UserPK(userID string) (string, error) {
	id, err := requireUUID(userID)
	if err != nil {
		return "", err
	}
	return userPrefix + id, nil
}

func HangoutPK(hangoutID string) (string, error) {
	id, err := requireUUID(hangoutID)
	if err != nil {
		return "", err
	}
	return eventPrefix + id, nil
}

func SeriesPK(seriesID string) (string, error) {
	id, err := requireUUID(seriesID)
	if err != nil {
		return "", err
	}
	return seriesPrefix + id, nil
}

func InvitePK(code string) (string, error) {
	if !ValidInviteCode(code) {
		return "", invalidKey(code, "invite code must be 8 lowercase alphanumerics")
	}
	return invitePrefix + code, nil
}

func DevicePK(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", invalidKey(token, "device token is empty")
	}
	return devicePrefix + token, nil
}

func RefreshPK(tokenHash string) (string, error) {
	if strings.TrimSpace(tokenHash) == "" {
		return "", invalidKey(tokenHash, "token hash is empty")
	}
	return refreshPrefix + tokenHash, nil
}

// ValidInviteCode reports whether code matches the 8-char lowercase
// alphanumeric invite alphabet.
func ValidInviteCode(code string) bool {
	if len(code) != 8 {
		return false
	}
	for _, r := range code {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// ---- sort keys ----

func MemberSK(userID string) (string, error) {
	id, err := requireUUID(userID)
	if err != nil {
		return "", err
	}
	return userPrefix + id, nil
}

func HangoutPointerSK(hangoutID string) (string, error) {
	id, err := requireUUID(hangoutID)
	if err != nil {
		return "", err
	}
	return hangoutPrefix + id, nil
}

func SeriesPointerSK(seriesID string) (string, error) {
	id, err := requireUUID(seriesID)
	if err != nil {
		return "", err
	}
	return seriesPrefix + id, nil
}

func PollSK(pollID string) (string, error) {
	id, err := requireUUID(pollID)
	if err != nil {
		return "", err
	}
	return pollPrefix + id, nil
}

func PollOptionSK(pollID, optionID string) (string, error) {
	pid, err := requireUUID(pollID)
	if err != nil {
		return "", err
	}
	oid, err := requireUUID(optionID)
	if err != nil {
		return "", err
	}
	return pollPrefix + pid + optionInfix + oid, nil
}

func VoteSK(pollID, userID, optionID string) (string, error) {
	pid, err := requireUUID(pollID)
	if err != nil {
		return "", err
	}
	uid, err := requireUUID(userID)
	if err != nil {
		return "", err
	}
	oid, err := requireUUID(optionID)
	if err != nil {
		return "", err
	}
	return pollPrefix + pid + voteInfix + uid + "#OPTION#" + oid, nil
}

// VotePrefixSK is the begins_with prefix covering every vote a user cast in
// a poll, used by the single-choice replace transact.
func VotePrefixSK(pollID, userID string) (string, error) {
	pid, err := requireUUID(pollID)
	if err != nil {
		return "", err
	}
	uid, err := requireUUID(userID)
	if err != nil {
		return "", err
	}
	return pollPrefix + pid + voteInfix + uid + "#", nil
}

func CarSK(driverID string) (string, error) {
	id, err := requireUUID(driverID)
	if err != nil {
		return "", err
	}
	return carPrefix + id, nil
}

func RiderSK(driverID, riderID string) (string, error) {
	did, err := requireUUID(driverID)
	if err != nil {
		return "", err
	}
	rid, err := requireUUID(riderID)
	if err != nil {
		return "", err
	}
	return carPrefix + did + riderInfix + rid, nil
}

func RiderPrefixSK(driverID string) (string, error) {
	did, err := requireUUID(driverID)
	if err != nil {
		return "", err
	}
	return carPrefix + did + riderInfix, nil
}

func NeedsRideSK(userID string) (string, error) {
	id, err := requireUUID(userID)
	if err != nil {
		return "", err
	}
	return needsRidePrefix + id, nil
}

func AttributeSK(attributeID string) (string, error) {
	id, err := requireUUID(attributeID)
	if err != nil {
		return "", err
	}
	return attributePrefix + id, nil
}

func ParticipationSK(participationID string) (string, error) {
	id, err := requireUUID(participationID)
	if err != nil {
		return "", err
	}
	return participPrefix + id, nil
}

func OfferSK(offerID string) (string, error) {
	id, err := requireUUID(offerID)
	if err != nil {
		return "", err
	}
	return offerPrefix + id, nil
}

func InterestSK(userID string) (string, error) {
	id, err := requireUUID(userID)
	if err != nil {
		return "", err
	}
	return interestPrefix + id, nil
}

func InviteGroupSK(groupID string) (string, error) {
	id, err := requireUUID(groupID)
	if err != nil {
		return "", err
	}
	return groupPrefix + id, nil
}

func IdeaListSK(listID string) (string, error) {
	id, err := requireUUID(listID)
	if err != nil {
		return "", err
	}
	return listPrefix + id, nil
}

func IdeaSK(listID, ideaID string) (string, error) {
	lid, err := requireUUID(listID)
	if err != nil {
		return "", err
	}
	iid, err := requireUUID(ideaID)
	if err != nil {
		return "", err
	}
	return listPrefix + lid + ideaInfix + iid, nil
}

func PlaceSK(placeID string) (string, error) {
	id, err := requireUUID(placeID)
	if err != nil {
		return "", err
	}
	return placePrefix + id, nil
}

// ---- prefixes for range queries ----

const (
	MemberPrefix         = userPrefix
	HangoutPointerPrefix = hangoutPrefix
	SeriesPointerPrefix  = seriesPrefix
	PollPrefix           = pollPrefix
	CarPrefix            = carPrefix
	NeedsRidePrefix      = needsRidePrefix
	AttributePrefix      = attributePrefix
	ParticipationPrefix  = participPrefix
	OfferPrefix          = offerPrefix
	InterestPrefix       = interestPrefix
	InvitePrefix         = invitePrefix
	DevicePKPrefix       = devicePrefix
	RefreshPKPrefix      = refreshPrefix
	ListPrefix           = listPrefix
	PlacePrefix          = placePrefix
	GroupPKPrefix        = groupPrefix
	UserPKPrefix         = userPrefix
	EventPKPrefix        = eventPrefix
)

// ---- parsers ----

func ParseGroupPK(pk string) (string, error) {
	return parseSuffixUUID(pk, groupPrefix, "group partition key")
}

func ParseUserPK(pk string) (string, error) {
	return parseSuffixUUID(pk, userPrefix, "user partition key")
}

func ParseHangoutPK(pk string) (string, error) {
	return parseSuffixUUID(pk, eventPrefix, "hangout partition key")
}

func ParseSeriesPK(pk string) (string, error) {
	return parseSuffixUUID(pk, seriesPrefix, "series partition key")
}

func ParseMemberSK(sk string) (string, error) {
	return parseSuffixUUID(sk, userPrefix, "membership sort key")
}

func ParseHangoutPointerSK(sk string) (string, error) {
	return parseSuffixUUID(sk, hangoutPrefix, "hangout pointer sort key")
}

func ParseSeriesPointerSK(sk string) (string, error) {
	return parseSuffixUUID(sk, seriesPrefix, "series pointer sort key")
}

func ParsePollSK(sk string) (string, error) {
	if strings.Contains(sk, optionInfix) || strings.Contains(sk, voteInfix) {
		return "", invalidKey(sk, "not a poll sort key")
	}
	return parseSuffixUUID(sk, pollPrefix, "poll sort key")
}

// PollOptionKey is the parsed form of POLL#{pid}#OPTION#{oid}.
type PollOptionKey struct {
	PollID   string
	OptionID string
}

func ParsePollOptionSK(sk string) (PollOptionKey, error) {
	if !strings.HasPrefix(sk, pollPrefix) || strings.Contains(sk, voteInfix) {
		return PollOptionKey{}, invalidKey(sk, "not a poll option sort key")
	}
	rest := strings.TrimPrefix(sk, pollPrefix)
	parts := strings.Split(rest, optionInfix)
	if len(parts) != 2 {
		return PollOptionKey{}, invalidKey(sk, "not a poll option sort key")
	}
	pid, err := requireUUID(parts[0])
	if err != nil {
		return PollOptionKey{}, invalidKey(sk, "poll id is not a UUID")
	}
	oid, err := requireUUID(parts[1])
	if err != nil {
		return PollOptionKey{}, invalidKey(sk, "option id is not a UUID")
	}
	return PollOptionKey{PollID: pid, OptionID: oid}, nil
}

// VoteKey is the parsed form of POLL#{pid}#VOTE#{uid}#OPTION#{oid}.
type VoteKey struct {
	PollID   string
	UserID   string
	OptionID string
}

func ParseVoteSK(sk string) (VoteKey, error) {
	if !strings.HasPrefix(sk, pollPrefix) || !strings.Contains(sk, voteInfix) {
		return VoteKey{}, invalidKey(sk, "not a vote sort key")
	}
	rest := strings.TrimPrefix(sk, pollPrefix)
	parts := strings.Split(rest, voteInfix)
	if len(parts) != 2 {
		return VoteKey{}, invalidKey(sk, "not a vote sort key")
	}
	pid, err := requireUUID(parts[0])
	if err != nil {
		return VoteKey{}, invalidKey(sk, "poll id is not a UUID")
	}
	tail := strings.Split(parts[1], optionInfix)
	if len(tail) != 2 {
		return VoteKey{}, invalidKey(sk, "vote sort key is missing option segment")
	}
	uid, err := requireUUID(tail[0])
	if err != nil {
		return VoteKey{}, invalidKey(sk, "user id is not a UUID")
	}
	oid, err := requireUUID(tail[1])
	if err != nil {
		return VoteKey{}, invalidKey(sk, "option id is not a UUID")
	}
	return VoteKey{PollID: pid, UserID: uid, OptionID: oid}, nil
}

func ParseCarSK(sk string) (string, error) {
	if strings.Contains(sk, riderInfix) {
		return "", invalidKey(sk, "not a car sort key")
	}
	return parseSuffixUUID(sk, carPrefix, "car sort key")
}

// RiderKey is the parsed form of CAR#{driverId}#RIDER#{riderId}.
type RiderKey struct {
	DriverID string
	RiderID  string
}

func ParseRiderSK(sk string) (RiderKey, error) {
	if !strings.HasPrefix(sk, carPrefix) || !strings.Contains(sk, riderInfix) {
		return RiderKey{}, invalidKey(sk, "not a rider sort key")
	}
	rest := strings.TrimPrefix(sk, carPrefix)
	parts := strings.Split(rest, riderInfix)
	if len(parts) != 2 {
		return RiderKey{}, invalidKey(sk, "not a rider sort key")
	}
	did, err := requireUUID(parts[0])
	if err != nil {
		return RiderKey{}, invalidKey(sk, "driver id is not a UUID")
	}
	rid, err := requireUUID(parts[1])
	if err != nil {
		return RiderKey{}, invalidKey(sk, "rider id is not a UUID")
	}
	return RiderKey{DriverID: did, RiderID: rid}, nil
}

func ParseNeedsRideSK(sk string) (string, error) {
	return parseSuffixUUID(sk, needsRidePrefix, "needs-ride sort key")
}

func ParseAttributeSK(sk string) (string, error) {
	return parseSuffixUUID(sk, attributePrefix, "attribute sort key")
}

func ParseParticipationSK(sk string) (string, error) {
	return parseSuffixUUID(sk, participPrefix, "participation sort key")
}

func ParseOfferSK(sk string) (string, error) {
	return parseSuffixUUID(sk, offerPrefix, "offer sort key")
}

func ParseInterestSK(sk string) (string, error) {
	return parseSuffixUUID(sk, interestPrefix, "interest sort key")
}

func ParsePlaceSK(sk string) (string, error) {
	return parseSuffixUUID(sk, placePrefix, "place sort key")
}

func ParseIdeaListSK(sk string) (string, error) {
	if strings.Contains(sk, ideaInfix) {
		return "", invalidKey(sk, "not an idea list sort key")
	}
	return parseSuffixUUID(sk, listPrefix, "idea list sort key")
}

// IdeaKey is the parsed form of LIST#{lid}#IDEA#{id}.
type IdeaKey struct {
	ListID string
	IdeaID string
}

func ParseIdeaSK(sk string) (IdeaKey, error) {
	if !strings.HasPrefix(sk, listPrefix) || !strings.Contains(sk, ideaInfix) {
		return IdeaKey{}, invalidKey(sk, "not an idea sort key")
	}
	rest := strings.TrimPrefix(sk, listPrefix)
	parts := strings.Split(rest, ideaInfix)
	if len(parts) != 2 {
		return IdeaKey{}, invalidKey(sk, "not an idea sort key")
	}
	lid, err := requireUUID(parts[0])
	if err != nil {
		return IdeaKey{}, invalidKey(sk, "list id is not a UUID")
	}
	iid, err := requireUUID(parts[1])
	if err != nil {
		return IdeaKey{}, invalidKey(sk, "idea id is not a UUID")
	}
	return IdeaKey{ListID: lid, IdeaID: iid}, nil
}

func ParseInvitePK(pk string) (string, error) {
	if !strings.HasPrefix(pk, invitePrefix) {
		return "", invalidKey(pk, "not an invite partition key")
	}
	code := strings.TrimPrefix(pk, invitePrefix)
	if !ValidInviteCode(code) {
		return "", invalidKey(pk, "invite code must be 8 lowercase alphanumerics")
	}
	return code, nil
}

func parseSuffixUUID(key, prefix, what string) (string, error) {
	if !strings.HasPrefix(key, prefix) {
		return "", invalidKey(key, "not a "+what)
	}
	id, err := requireUUID(strings.TrimPrefix(key, prefix))
	if err != nil {
		return "", invalidKey(key, what+" suffix is not a UUID")
	}
	return id, nil
}
