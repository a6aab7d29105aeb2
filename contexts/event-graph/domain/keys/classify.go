package keys

import "strings"

// ItemKind tags the concrete record type derived from a sort-key shape.
type ItemKind int

const (
	KindOther ItemKind = iota
	KindHangoutCanonical
	KindHangoutPointer
	KindMembership
	KindPoll
	KindPollOption
	KindVote
	KindCar
	KindRider
	KindNeedsRide
	KindAttribute
	KindInterest
	KindParticipation
	KindOffer
	KindPlace
	KindIdea
	KindIdeaList
	KindSeriesCanonical
	KindSeriesPointer
)

func (k ItemKind) String() string {
	switch k {
	case KindHangoutCanonical:
		return "hangout"
	case KindHangoutPointer:
		return "hangout_pointer"
	case KindMembership:
		return "membership"
	case KindPoll:
		return "poll"
	case KindPollOption:
		return "poll_option"
	case KindVote:
		return "vote"
	case KindCar:
		return "car"
	case KindRider:
		return "rider"
	case KindNeedsRide:
		return "needs_ride"
	case KindAttribute:
		return "attribute"
	case KindInterest:
		return "interest"
	case KindParticipation:
		return "participation"
	case KindOffer:
		return "offer"
	case KindPlace:
		return "place"
	case KindIdea:
		return "idea"
	case KindIdeaList:
		return "idea_list"
	case KindSeriesCanonical:
		return "series"
	case KindSeriesPointer:
		return "series_pointer"
	default:
		return "other"
	}
}

// Classify derives the item kind from a sort key. The sort-key shape is the
// only type discriminator in the table, so a CAR# key is a car only when no
// #RIDER# segment follows, and a POLL# key splits three ways on its infixes.
// Canonical-vs-pointer for SERIES#/HANGOUT# keys depends on the partition:
// within an EVENT# partition nothing is a pointer, so Classify is given only
// the sort key and reports the pointer kinds; ClassifyIn refines with the pk.
func Classify(sk string) ItemKind {
	switch {
	case sk == Metadata:
		return KindHangoutCanonical
	case strings.HasPrefix(sk, pollPrefix):
		if strings.Contains(sk, voteInfix) {
			return KindVote
		}
		if strings.Contains(sk, optionInfix) {
			return KindPollOption
		}
		return KindPoll
	case strings.HasPrefix(sk, carPrefix):
		if strings.Contains(sk, riderInfix) {
			return KindRider
		}
		return KindCar
	case strings.HasPrefix(sk, needsRidePrefix):
		return KindNeedsRide
	case strings.HasPrefix(sk, attributePrefix):
		return KindAttribute
	case strings.HasPrefix(sk, interestPrefix):
		return KindInterest
	case strings.HasPrefix(sk, participPrefix):
		return KindParticipation
	case strings.HasPrefix(sk, offerPrefix):
		return KindOffer
	case strings.HasPrefix(sk, placePrefix):
		return KindPlace
	case strings.HasPrefix(sk, listPrefix):
		if strings.Contains(sk, ideaInfix) {
			return KindIdea
		}
		return KindIdeaList
	case strings.HasPrefix(sk, hangoutPrefix):
		return KindHangoutPointer
	case strings.HasPrefix(sk, seriesPrefix):
		return KindSeriesPointer
	case strings.HasPrefix(sk, userPrefix):
		return KindMembership
	default:
		return KindOther
	}
}

// ClassifyIn resolves the canonical/pointer ambiguity using the partition
// key: METADATA under SERIES# is the series canonical, METADATA elsewhere is
// the hangout or group canonical depending on the partition prefix.
func ClassifyIn(pk, sk string) ItemKind {
	if sk == Metadata {
		switch {
		case strings.HasPrefix(pk, seriesPrefix):
			return KindSeriesCanonical
		case strings.HasPrefix(pk, eventPrefix):
			return KindHangoutCanonical
		default:
			return KindOther
		}
	}
	return Classify(sk)
}
