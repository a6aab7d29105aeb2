package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
)

func TestSetAttributeRejectsReservedNames(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	group := env.newGroup(t, admin, false)
	hangout := env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Concert", AssociatedGroups: []string{group.GroupID},
	})

	for _, name := range []string{"pk", "SK", "Type", "gsi1pk", "GSI1SK", "system_flags", "Internal_notes", "gsiAnything"} {
		_, err := env.engageSvc.SetAttribute(context.Background(), admin, hangout.HangoutID, name, "x")
		require.ErrorIs(t, err, domainerrors.ErrReservedName, "name %q", name)
	}
	_, err := env.engageSvc.SetAttribute(context.Background(), admin, hangout.HangoutID, "  ", "x")
	require.True(t, domainerrors.IsInvalid(err))
}

func TestSetAttributeUpsertsByName(t *testing.T) {
	env := newTestEnv(t)
	admin, member := newID(), newID()
	group := env.newGroup(t, admin, false)
	env.addMember(t, group.GroupID, member, "Member")
	hangout := env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Concert", AssociatedGroups: []string{group.GroupID},
	})

	first, err := env.engageSvc.SetAttribute(context.Background(), admin, hangout.HangoutID, "dress_code", "casual")
	require.NoError(t, err)
	// same name, case-insensitively, replaces instead of duplicating
	second, err := env.engageSvc.SetAttribute(context.Background(), admin, hangout.HangoutID, "Dress_Code", "fancy")
	require.NoError(t, err)
	require.Equal(t, first.AttributeID, second.AttributeID)

	detail, err := env.hangouts.LoadDetail(context.Background(), hangout.HangoutID)
	require.NoError(t, err)
	require.Len(t, detail.Attributes, 1)
	require.Equal(t, "fancy", detail.Attributes[0].Value)

	pointers, err := env.groups.ListHangoutPointers(context.Background(), group.GroupID)
	require.NoError(t, err)
	require.Equal(t, []items.AttributeSummary{
		{AttributeID: second.AttributeID, Name: "Dress_Code", Value: "fancy"},
	}, pointers[0].Attributes)

	// only hosts write attributes
	_, err = env.engageSvc.SetAttribute(context.Background(), member, hangout.HangoutID, "parking", "street")
	require.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestDeleteAttributeClearsPointerMirror(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	group := env.newGroup(t, admin, false)
	hangout := env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Concert", AssociatedGroups: []string{group.GroupID},
	})
	attribute, err := env.engageSvc.SetAttribute(context.Background(), admin, hangout.HangoutID, "dress_code", "casual")
	require.NoError(t, err)

	require.NoError(t, env.engageSvc.DeleteAttribute(context.Background(), admin, hangout.HangoutID, attribute.AttributeID))
	require.ErrorIs(t,
		env.engageSvc.DeleteAttribute(context.Background(), admin, hangout.HangoutID, attribute.AttributeID),
		domainerrors.ErrNotFound)

	pointers, err := env.groups.ListHangoutPointers(context.Background(), group.GroupID)
	require.NoError(t, err)
	require.Empty(t, pointers[0].Attributes)
}

func TestSetParticipationReplacesPerUserAndType(t *testing.T) {
	env := newTestEnv(t)
	admin, member := newID(), newID()
	group := env.newGroup(t, admin, false)
	env.addMember(t, group.GroupID, member, "Member")
	hangout := env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Concert", AssociatedGroups: []string{group.GroupID},
	})

	_, err := env.engageSvc.SetParticipation(context.Background(), ParticipationInput{
		UserID: member, UserName: "Member", HangoutID: hangout.HangoutID,
		Type: items.ParticipationTicketNeeded,
	})
	require.NoError(t, err)
	// re-setting the same type replaces the row
	_, err = env.engageSvc.SetParticipation(context.Background(), ParticipationInput{
		UserID: member, UserName: "Member", HangoutID: hangout.HangoutID,
		Type: items.ParticipationTicketNeeded,
	})
	require.NoError(t, err)
	// a different type coexists
	_, err = env.engageSvc.SetParticipation(context.Background(), ParticipationInput{
		UserID: member, UserName: "Member", HangoutID: hangout.HangoutID,
		Type: items.ParticipationTicketPurchased,
	})
	require.NoError(t, err)

	detail, err := env.hangouts.LoadDetail(context.Background(), hangout.HangoutID)
	require.NoError(t, err)
	require.Len(t, detail.Participations, 2)

	pointers, err := env.groups.ListHangoutPointers(context.Background(), group.GroupID)
	require.NoError(t, err)
	summary := pointers[0].ParticipationSummary
	require.Len(t, summary.NeedingTicket, 1)
	require.Len(t, summary.WithTicket, 1)
	require.Equal(t, member, summary.NeedingTicket[0].UserID)

	_, err = env.engageSvc.SetParticipation(context.Background(), ParticipationInput{
		UserID: member, HangoutID: hangout.HangoutID, Type: "VIBES",
	})
	require.True(t, domainerrors.IsInvalid(err))
}

func TestClaimSpotCapacityAndDuplicates(t *testing.T) {
	env := newTestEnv(t)
	admin, memberA, memberB := newID(), newID(), newID()
	group := env.newGroup(t, admin, false)
	env.addMember(t, group.GroupID, memberA, "Member A")
	env.addMember(t, group.GroupID, memberB, "Member B")
	hangout := env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Concert", AssociatedGroups: []string{group.GroupID},
	})

	offer, err := env.engageSvc.CreateOffer(context.Background(), OfferInput{
		UserID: admin, UserName: "Admin", HangoutID: hangout.HangoutID,
		Capacity: 1, Notes: "table for the early crowd",
	})
	require.NoError(t, err)

	require.NoError(t, env.engageSvc.ClaimSpot(context.Background(),
		memberA, "Member A", hangout.HangoutID, offer.OfferID))
	require.ErrorIs(t, env.engageSvc.ClaimSpot(context.Background(),
		memberA, "Member A", hangout.HangoutID, offer.OfferID),
		domainerrors.ErrAlreadyReserved)
	require.ErrorIs(t, env.engageSvc.ClaimSpot(context.Background(),
		memberB, "Member B", hangout.HangoutID, offer.OfferID),
		domainerrors.ErrNoSeatsAvailable)

	detail, err := env.hangouts.LoadDetail(context.Background(), hangout.HangoutID)
	require.NoError(t, err)
	require.Len(t, detail.Offers, 1)
	require.Equal(t, 1, detail.Offers[0].ClaimedSpots)
}

func TestReleaseSpotRefundsTheOffer(t *testing.T) {
	env := newTestEnv(t)
	admin, member := newID(), newID()
	group := env.newGroup(t, admin, false)
	env.addMember(t, group.GroupID, member, "Member")
	hangout := env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Concert", AssociatedGroups: []string{group.GroupID},
	})
	offer, err := env.engageSvc.CreateOffer(context.Background(), OfferInput{
		UserID: admin, UserName: "Admin", HangoutID: hangout.HangoutID, Capacity: 2,
	})
	require.NoError(t, err)
	require.NoError(t, env.engageSvc.ClaimSpot(context.Background(),
		member, "Member", hangout.HangoutID, offer.OfferID))

	detail, err := env.hangouts.LoadDetail(context.Background(), hangout.HangoutID)
	require.NoError(t, err)
	require.Len(t, detail.Participations, 1)
	claim := detail.Participations[0]

	// only the claimer releases their own spot
	require.ErrorIs(t, env.engageSvc.ReleaseSpot(context.Background(),
		admin, hangout.HangoutID, offer.OfferID, claim.ParticipationID),
		domainerrors.ErrForbidden)
	require.NoError(t, env.engageSvc.ReleaseSpot(context.Background(),
		member, hangout.HangoutID, offer.OfferID, claim.ParticipationID))

	detail, err = env.hangouts.LoadDetail(context.Background(), hangout.HangoutID)
	require.NoError(t, err)
	require.Empty(t, detail.Participations)
	require.Equal(t, 0, detail.Offers[0].ClaimedSpots)
}

func TestWithdrawOfferOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	admin, member := newID(), newID()
	group := env.newGroup(t, admin, false)
	env.addMember(t, group.GroupID, member, "Member")
	hangout := env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Concert", AssociatedGroups: []string{group.GroupID},
	})
	offer, err := env.engageSvc.CreateOffer(context.Background(), OfferInput{
		UserID: admin, UserName: "Admin", HangoutID: hangout.HangoutID, Capacity: 2,
	})
	require.NoError(t, err)

	require.ErrorIs(t,
		env.engageSvc.WithdrawOffer(context.Background(), member, hangout.HangoutID, offer.OfferID),
		domainerrors.ErrForbidden)
	require.NoError(t,
		env.engageSvc.WithdrawOffer(context.Background(), admin, hangout.HangoutID, offer.OfferID))

	detail, err := env.hangouts.LoadDetail(context.Background(), hangout.HangoutID)
	require.NoError(t, err)
	require.Empty(t, detail.Offers)
}
