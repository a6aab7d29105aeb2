package application

import (
	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/domain/keys"
	"inviter/contexts/event-graph/ports"
	"inviter/contexts/event-graph/repositories"
)

// summaryBucketCap bounds the user lists inside a participation summary so a
// pointer stays well under item size limits.
const summaryBucketCap = 10

// pointerPartitions lists every partition a hangout projects into: one per
// associated group and one per explicitly invited user.
func pointerPartitions(hangout items.HangoutMetadata) ([]string, error) {
	partitions := make([]string, 0, len(hangout.AssociatedGroups)+len(hangout.InvitedUsers))
	for _, groupID := range hangout.AssociatedGroups {
		pk, err := keys.GroupPK(groupID)
		if err != nil {
			return nil, domainerrors.Invalid("associatedGroups", err.Error())
		}
		partitions = append(partitions, pk)
	}
	for _, userID := range hangout.InvitedUsers {
		pk, err := keys.UserPK(userID)
		if err != nil {
			return nil, domainerrors.Invalid("invitedUsers", err.Error())
		}
		partitions = append(partitions, pk)
	}
	return partitions, nil
}

// groupFeedBumpOps advances the feed validator of every group the hangout
// projects into. Any transact that rewrites denormalized pointer fields
// carries these alongside, so cached group feeds go stale immediately.
func groupFeedBumpOps(groups *repositories.GroupRepository, hangout items.HangoutMetadata, nowMs int64) ([]ports.TransactOp, error) {
	ops := make([]ports.TransactOp, 0, len(hangout.AssociatedGroups))
	for _, groupID := range hangout.AssociatedGroups {
		op, err := groups.BumpFeedValidatorOp(groupID, nowMs)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// buildPointers projects the canonical record into each target partition.
func buildPointers(hangout items.HangoutMetadata) ([]items.HangoutPointer, error) {
	partitions, err := pointerPartitions(hangout)
	if err != nil {
		return nil, err
	}
	pointers := make([]items.HangoutPointer, 0, len(partitions))
	for _, partition := range partitions {
		pointers = append(pointers, pointerFor(hangout, partition))
	}
	return pointers, nil
}

// participationSummaryOf recomputes the aggregated ticket/reservation state
// from the hangout partition's engagement rows. Buckets are capped; counts
// stay exact.
func participationSummaryOf(participations []items.Participation, offers []items.ReservationOffer) items.ParticipationSummary {
	summary := items.ParticipationSummary{}
	for _, p := range participations {
		user := items.UserSummary{UserID: p.UserID, Name: p.UserName}
		switch p.Type {
		case items.ParticipationTicketNeeded:
			if len(summary.NeedingTicket) < summaryBucketCap {
				summary.NeedingTicket = append(summary.NeedingTicket, user)
			}
		case items.ParticipationTicketPurchased, items.ParticipationSection:
			if len(summary.WithTicket) < summaryBucketCap {
				summary.WithTicket = append(summary.WithTicket, user)
			}
		case items.ParticipationClaimedSpot:
			if len(summary.ClaimedSpot) < summaryBucketCap {
				summary.ClaimedSpot = append(summary.ClaimedSpot, user)
			}
		case items.ParticipationTicketExtra:
			summary.ExtraTicketCount++
		}
	}
	for _, offer := range offers {
		summary.Offers = append(summary.Offers, offer.Summary())
	}
	return summary
}

// carsSummaryOf aggregates the carpool state for pointer denormalization.
func carsSummaryOf(cars []items.Car) items.CarsSummary {
	summary := items.CarsSummary{CarCount: len(cars)}
	for _, car := range cars {
		summary.AvailableSeats += car.AvailableSeats
	}
	return summary
}

// pollsSummaryOf aggregates poll counts for pointer denormalization.
func pollsSummaryOf(polls []items.Poll, votes []items.Vote) items.PollsSummary {
	return items.PollsSummary{PollCount: len(polls), VoteCount: len(votes)}
}

// attributesSummaryOf mirrors the attribute rows onto the pointer field.
func attributesSummaryOf(attributes []items.Attribute) []items.AttributeSummary {
	if len(attributes) == 0 {
		return nil
	}
	summaries := make([]items.AttributeSummary, 0, len(attributes))
	for _, attribute := range attributes {
		summaries = append(summaries, attribute.Summary())
	}
	return summaries
}
