package keys

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	uuidA = "0b7a34e4-6f55-4f3a-a9c7-2f1d5f9be111"
	uuidB = "9c1e22d0-3a44-4e6b-8cd0-77aa51c0b222"
	uuidC = "5d2f6780-1b9c-4d3e-9f10-3e8b74d0c333"
)

func TestPartitionKeysRequireUUIDs(t *testing.T) {
	pk, err := GroupPK(uuidA)
	require.NoError(t, err)
	require.Equal(t, "GROUP#"+uuidA, pk)

	_, err = GroupPK("group-1")
	require.Error(t, err)
	var invalid InvalidKeyError
	require.ErrorAs(t, err, &invalid)

	_, err = UserPK("")
	require.Error(t, err)
	_, err = HangoutPK("EVENT#"+uuidA)
	require.Error(t, err)
}

func TestPartitionKeyRoundTrips(t *testing.T) {
	pk, err := HangoutPK(uuidA)
	require.NoError(t, err)
	id, err := ParseHangoutPK(pk)
	require.NoError(t, err)
	require.Equal(t, uuidA, id)

	spk, err := SeriesPK(uuidB)
	require.NoError(t, err)
	sid, err := ParseSeriesPK(spk)
	require.NoError(t, err)
	require.Equal(t, uuidB, sid)

	// a group pk is not a user pk
	gpk, err := GroupPK(uuidA)
	require.NoError(t, err)
	_, err = ParseUserPK(gpk)
	require.Error(t, err)
}

func TestCompositeSortKeys(t *testing.T) {
	voteSK, err := VoteSK(uuidA, uuidB, uuidC)
	require.NoError(t, err)
	key, err := ParseVoteSK(voteSK)
	require.NoError(t, err)
	require.Equal(t, uuidA, key.PollID)
	require.Equal(t, uuidB, key.UserID)
	require.Equal(t, uuidC, key.OptionID)

	prefix, err := VotePrefixSK(uuidA, uuidB)
	require.NoError(t, err)
	require.Equal(t, "POLL#"+uuidA+"#VOTE#"+uuidB+"#", prefix)

	riderSK, err := RiderSK(uuidA, uuidB)
	require.NoError(t, err)
	rider, err := ParseRiderSK(riderSK)
	require.NoError(t, err)
	require.Equal(t, uuidA, rider.DriverID)
	require.Equal(t, uuidB, rider.RiderID)

	// option keys never parse as votes and vice versa
	optionSK, err := PollOptionSK(uuidA, uuidC)
	require.NoError(t, err)
	_, err = ParseVoteSK(optionSK)
	require.Error(t, err)
	_, err = ParsePollOptionSK(voteSK)
	require.Error(t, err)
}

func TestInviteCodeValidation(t *testing.T) {
	require.True(t, ValidInviteCode("abc12xyz"))
	require.False(t, ValidInviteCode("ABC12XYZ"))
	require.False(t, ValidInviteCode("abc12"))
	require.False(t, ValidInviteCode("abc12xyz9"))
	require.False(t, ValidInviteCode("abc-2xyz"))

	pk, err := InvitePK("abc12xyz")
	require.NoError(t, err)
	code, err := ParseInvitePK(pk)
	require.NoError(t, err)
	require.Equal(t, "abc12xyz", code)

	_, err = InvitePK("SHOUTING")
	require.Error(t, err)
}

func TestClassifySortKeyShapes(t *testing.T) {
	carSK, _ := CarSK(uuidA)
	riderSK, _ := RiderSK(uuidA, uuidB)
	pollSK, _ := PollSK(uuidA)
	optionSK, _ := PollOptionSK(uuidA, uuidB)
	voteSK, _ := VoteSK(uuidA, uuidB, uuidC)
	memberSK, _ := MemberSK(uuidA)
	pointerSK, _ := HangoutPointerSK(uuidA)
	listSK, _ := IdeaListSK(uuidA)
	ideaSK, _ := IdeaSK(uuidA, uuidB)

	cases := map[string]ItemKind{
		Metadata:  KindHangoutCanonical,
		carSK:     KindCar,
		riderSK:   KindRider,
		pollSK:    KindPoll,
		optionSK:  KindPollOption,
		voteSK:    KindVote,
		memberSK:  KindMembership,
		pointerSK: KindHangoutPointer,
		listSK:    KindIdeaList,
		ideaSK:    KindIdea,
		"WHAT#":   KindOther,
	}
	for sk, want := range cases {
		require.Equal(t, want, Classify(sk), "sort key %q", sk)
	}
}

func TestClassifyInResolvesCanonicals(t *testing.T) {
	seriesPK, _ := SeriesPK(uuidA)
	eventPK, _ := HangoutPK(uuidA)
	groupPK, _ := GroupPK(uuidA)

	require.Equal(t, KindSeriesCanonical, ClassifyIn(seriesPK, Metadata))
	require.Equal(t, KindHangoutCanonical, ClassifyIn(eventPK, Metadata))
	require.Equal(t, KindOther, ClassifyIn(groupPK, Metadata))

	pointerSK, _ := HangoutPointerSK(uuidB)
	require.Equal(t, KindHangoutPointer, ClassifyIn(groupPK, pointerSK))
}
