package application

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/ports"
	"inviter/contexts/event-graph/repositories"
)

const (
	inviteCodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	inviteCodeLength   = 8
	// inviteCodeAttempts bounds collision retries; at 36^8 codes the odds
	// of exhausting it are negligible.
	inviteCodeAttempts = 5
)

type InviteService struct {
	Invites *repositories.InviteRepository
	Groups  *repositories.GroupRepository
	Clock   ports.Clock
	Limiter ports.RateLimiter
	Logger  *slog.Logger
}

// GenerateCode returns the group's invite code, minting one on first call.
// Repeat calls return the same code; a racing duplicate mint loses the
// conditional put and falls back to the winner's code.
func (s InviteService) GenerateCode(ctx context.Context, userID, groupID string) (items.InviteCode, error) {
	membership, err := memberOf(ctx, s.Groups, groupID, userID)
	if err != nil {
		return items.InviteCode{}, err
	}
	if err := requireAdmin(membership); err != nil {
		return items.InviteCode{}, err
	}
	if existing, found, err := s.Invites.FindByGroup(ctx, groupID); err != nil {
		return items.InviteCode{}, err
	} else if found {
		return existing, nil
	}

	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := randomInviteCode()
		if err != nil {
			return items.InviteCode{}, err
		}
		invite := items.InviteCode{
			Code:      code,
			GroupID:   groupID,
			CreatedAt: s.Clock.Now().UnixMilli(),
		}
		err = s.Invites.ClaimCode(ctx, invite)
		if err == nil {
			serviceLogger(s.Logger, "invite_code_generated").Info("invite code generated", "group_id", groupID)
			return invite, nil
		}
		if !errors.Is(err, ports.ErrConditionFailed) {
			return items.InviteCode{}, err
		}
		// code collision; try a fresh one
	}
	// a racing generator may have claimed a code for this group meanwhile
	if existing, found, err := s.Invites.FindByGroup(ctx, groupID); err == nil && found {
		return existing, nil
	}
	return items.InviteCode{}, domainerrors.ErrConflict
}

// InvitePreview is the deliberately thin response of the unauthenticated
// preview: enough to render a join screen, nothing more.
type InvitePreview struct {
	IsPrivate     bool
	GroupName     string
	MainImagePath string
}

// PreviewCode resolves a code for a not-yet-member. The limiter keys on the
// caller (IP or user), and private groups reveal only their privacy bit.
func (s InviteService) PreviewCode(ctx context.Context, callerKey, code string) (InvitePreview, error) {
	if s.Limiter != nil {
		allowed, err := s.Limiter.Allow(ctx, "invite-preview:"+callerKey)
		if err != nil {
			serviceLogger(s.Logger, "invite_preview_limiter_failed").Warn("rate limiter unavailable",
				"error", err.Error())
		} else if !allowed {
			return InvitePreview{}, domainerrors.ErrRateLimited
		}
	}
	invite, err := s.Invites.FindByCode(ctx, code)
	if err != nil {
		return InvitePreview{}, err
	}
	group, err := s.Groups.GetMetadata(ctx, invite.GroupID)
	if err != nil {
		return InvitePreview{}, err
	}
	if !group.IsPublic {
		return InvitePreview{IsPrivate: true}, nil
	}
	return InvitePreview{
		IsPrivate:     false,
		GroupName:     group.GroupName,
		MainImagePath: group.MainImagePath,
	}, nil
}

// JoinViaCode redeems a code into a MEMBER membership. Joining twice is a
// no-op that returns the existing membership.
func (s InviteService) JoinViaCode(ctx context.Context, userID, userName, code string) (items.Membership, error) {
	invite, err := s.Invites.FindByCode(ctx, code)
	if err != nil {
		return items.Membership{}, err
	}
	group, err := s.Groups.GetMetadata(ctx, invite.GroupID)
	if err != nil {
		return items.Membership{}, err
	}
	membership := items.Membership{
		GroupID:   invite.GroupID,
		UserID:    userID,
		UserName:  userName,
		Role:      items.RoleMember,
		GroupName: group.GroupName,
	}
	err = s.Groups.PutMembershipIfAbsent(ctx, membership)
	if errors.Is(err, ports.ErrConditionFailed) {
		existing, found, err := s.Groups.GetMembership(ctx, invite.GroupID, userID)
		if err != nil {
			return items.Membership{}, err
		}
		if found {
			return existing, nil
		}
		return membership, nil
	}
	if err != nil {
		return items.Membership{}, err
	}
	serviceLogger(s.Logger, "invite_redeemed").Info("invite redeemed", "group_id", invite.GroupID)
	return membership, nil
}

func randomInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", domainerrors.ErrInternal
	}
	code := make([]byte, inviteCodeLength)
	for i, b := range buf {
		code[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(code), nil
}
