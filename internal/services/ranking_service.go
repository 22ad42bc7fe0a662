package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"payfesa/internal/db"
	"payfesa/internal/metrics"
	"payfesa/internal/notify"
	"payfesa/internal/store"
	"payfesa/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const (
	PositionAssigned = "assigned"
	PositionEarlier  = "earlier"
	PositionLater    = "later"
)

// PositionChange records one member's movement in the payout rotation.
type PositionChange struct {
	MemberID    string `json:"member_id"`
	UserID      string `json:"user_id"`
	OldPosition *int   `json:"old_position,omitempty"`
	NewPosition int    `json:"new_position"`
	Kind        string `json:"kind"`
	TrustScore  int    `json:"trust_score"`
}

// RankingService orders a group's members for payout: trust score
// descending, ties broken by join time ascending, then by user id so the
// order is fully deterministic.
type RankingService struct {
	txRunner db.TxRunner
	groups   GroupStore
	members  MemberStore
	audit    AuditStore
	notifier notify.Notifier
	hub      UpdateHub
	log      *logrus.Logger
}

func NewRankingService(txRunner db.TxRunner, groups GroupStore, members MemberStore, audit AuditStore, notifier notify.Notifier, hub UpdateHub, log *logrus.Logger) *RankingService {
	return &RankingService{
		txRunner: txRunner,
		groups:   groups,
		members:  members,
		audit:    audit,
		notifier: notifier,
		hub:      hub,
		log:      log,
	}
}

// Recompute reassigns payout positions for one group and returns the changes.
// The group row is locked for the duration of the transaction, so concurrent
// recomputes for the same group serialize. Running it twice with no
// membership or trust changes yields zero changes and zero notifications.
func (s *RankingService) Recompute(ctx context.Context, groupID string) ([]PositionChange, error) {
	var changes []PositionChange
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		changes = changes[:0]
		if _, err := s.groups.GetForUpdate(ctx, tx, groupID); err != nil {
			return err
		}
		ranks, err := s.members.ListForRanking(ctx, tx, groupID)
		if err != nil {
			return err
		}
		SortByPayoutPriority(ranks)
		for i, member := range ranks {
			position := i + 1
			change, changed := classifyChange(member, position)
			if !changed {
				continue
			}
			if err := s.members.UpdatePosition(ctx, tx, member.MemberID, position); err != nil {
				return err
			}
			data, _ := json.Marshal(change)
			if err := s.audit.Log(ctx, tx, member.UserID, "payout_position_changed", "group_member", member.MemberID, string(data)); err != nil {
				return err
			}
			changes = append(changes, change)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, groupID, changes)
	return changes, nil
}

// RecomputeForUser reruns ranking for every group the user belongs to, after
// something that shifts their trust score.
func (s *RankingService) RecomputeForUser(ctx context.Context, userID string) error {
	groups, err := s.groups.ListByMember(ctx, userID)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if _, err := s.Recompute(ctx, group.ID); err != nil {
			s.log.WithError(err).WithField("group_id", group.ID).Error("position recompute failed")
		}
	}
	return nil
}

// RecomputeAllActive reruns ranking for every active group. One group's
// failure does not stop the rest.
func (s *RankingService) RecomputeAllActive(ctx context.Context) error {
	groups, err := s.groups.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if _, err := s.Recompute(ctx, group.ID); err != nil {
			s.log.WithError(err).WithField("group_id", group.ID).Error("position recompute failed")
		}
	}
	return nil
}

// SortByPayoutPriority orders members for payout: higher trust first, earlier
// joiners first on equal trust, user id as the final deterministic tie-break.
func SortByPayoutPriority(ranks []store.MemberRank) {
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].TrustScore != ranks[j].TrustScore {
			return ranks[i].TrustScore > ranks[j].TrustScore
		}
		if !ranks[i].JoinedAt.Equal(ranks[j].JoinedAt) {
			return ranks[i].JoinedAt.Before(ranks[j].JoinedAt)
		}
		return ranks[i].UserID < ranks[j].UserID
	})
}

func classifyChange(member store.MemberRank, position int) (PositionChange, bool) {
	change := PositionChange{
		MemberID:    member.MemberID,
		UserID:      member.UserID,
		OldPosition: member.PayoutPosition,
		NewPosition: position,
		TrustScore:  member.TrustScore,
	}
	switch {
	case member.PayoutPosition == nil:
		change.Kind = PositionAssigned
	case *member.PayoutPosition > position:
		change.Kind = PositionEarlier
	case *member.PayoutPosition < position:
		change.Kind = PositionLater
	default:
		return PositionChange{}, false
	}
	return change, true
}

func (s *RankingService) announce(ctx context.Context, groupID string, changes []PositionChange) {
	for _, change := range changes {
		metrics.PositionChanges.Inc()
		body := positionMessage(change)
		if err := s.notifier.Notify(ctx, notify.Notification{
			UserIDs: []string{change.UserID},
			Title:   "Payout position updated",
			Body:    body,
			Data: map[string]any{
				"group_id":    groupID,
				"position":    change.NewPosition,
				"change":      change.Kind,
				"trust_score": change.TrustScore,
			},
		}); err != nil {
			s.log.WithError(err).WithField("user_id", change.UserID).Warn("position notification failed")
		} else {
			metrics.NotificationsSent.Inc()
		}
		s.hub.Broadcast(change.UserID, websocket.Update{
			Type:     websocket.UpdatePayoutPosition,
			GroupID:  groupID,
			Position: change.NewPosition,
		})
	}
}

func positionMessage(change PositionChange) string {
	switch change.Kind {
	case PositionAssigned:
		return fmt.Sprintf("You are number %d in the payout rotation (trust score %d).", change.NewPosition, change.TrustScore)
	case PositionEarlier:
		return fmt.Sprintf("You moved up to number %d in the payout rotation (trust score %d).", change.NewPosition, change.TrustScore)
	default:
		return fmt.Sprintf("You moved to number %d in the payout rotation (trust score %d).", change.NewPosition, change.TrustScore)
	}
}
