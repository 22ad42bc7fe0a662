package services

import (
	"context"
	"encoding/json"
	"errors"

	"payfesa/internal/db"
	"payfesa/internal/models"
	"payfesa/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type Recomputer interface {
	Recompute(ctx context.Context, groupID string) ([]PositionChange, error)
}

// GroupService manages the group lifecycle. Membership changes trigger a
// payout position recompute once the change commits.
type GroupService struct {
	txRunner db.TxRunner
	groups   GroupStore
	members  MemberStore
	escrows  EscrowStore
	audit    AuditStore
	ranking  Recomputer
	log      *logrus.Logger
}

func NewGroupService(txRunner db.TxRunner, groups GroupStore, members MemberStore, escrows EscrowStore, audit AuditStore, ranking Recomputer, log *logrus.Logger) *GroupService {
	return &GroupService{
		txRunner: txRunner,
		groups:   groups,
		members:  members,
		escrows:  escrows,
		audit:    audit,
		ranking:  ranking,
		log:      log,
	}
}

type CreateGroupRequest struct {
	Name               string
	CreatorID          string
	ContributionAmount int64
	Frequency          string
	MaxMembers         int
}

// CreateGroup creates a pending group with its escrow and auto-joins the
// creator as the first member.
func (s *GroupService) CreateGroup(ctx context.Context, req CreateGroupRequest) (string, error) {
	groupID := uuid.NewString()
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.groups.Create(ctx, tx, store.GroupInput{
			ID:                 groupID,
			Name:               req.Name,
			CreatorID:          req.CreatorID,
			ContributionAmount: req.ContributionAmount,
			Frequency:          req.Frequency,
			MaxMembers:         req.MaxMembers,
		}); err != nil {
			return err
		}
		if err := s.escrows.Create(ctx, tx, groupID); err != nil {
			return err
		}
		if _, err := s.groups.IncrementMembers(ctx, tx, groupID); err != nil {
			return err
		}
		if err := s.members.Create(ctx, tx, store.MemberInput{
			ID:              uuid.NewString(),
			GroupID:         groupID,
			UserID:          req.CreatorID,
			PositionInCycle: 1,
		}); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"name":                req.Name,
			"contribution_amount": req.ContributionAmount,
			"frequency":           req.Frequency,
			"max_members":         req.MaxMembers,
		})
		return s.audit.Log(ctx, tx, req.CreatorID, "group_created", "group", groupID, string(data))
	})
	if err != nil {
		return "", err
	}
	if _, err := s.ranking.Recompute(ctx, groupID); err != nil {
		s.log.WithError(err).WithField("group_id", groupID).Error("initial position assignment failed")
	}
	return groupID, nil
}

// Join adds a user to a group. The member count increment is conditioned on
// capacity, so two concurrent joins can never overfill a group; the group
// flips to active the moment it fills.
func (s *GroupService) Join(ctx context.Context, groupID, userID string) error {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		group, err := s.groups.GetForUpdate(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if group.Status == models.GroupStatusSuspended {
			return ErrGroupNotJoinable
		}
		rows, err := s.groups.IncrementMembers(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrGroupFull
		}
		if err := s.members.Create(ctx, tx, store.MemberInput{
			ID:              uuid.NewString(),
			GroupID:         groupID,
			UserID:          userID,
			PositionInCycle: group.CurrentMembers + 1,
		}); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return ErrAlreadyMember
			}
			return err
		}
		if group.CurrentMembers+1 == group.MaxMembers && group.Status == models.GroupStatusPending {
			if err := s.groups.UpdateStatus(ctx, tx, groupID, models.GroupStatusActive); err != nil {
				return err
			}
		}
		return s.audit.Log(ctx, tx, userID, "group_joined", "group", groupID, "{}")
	})
	if err != nil {
		return err
	}
	if _, err := s.ranking.Recompute(ctx, groupID); err != nil {
		s.log.WithError(err).WithField("group_id", groupID).Error("position recompute after join failed")
	}
	return nil
}

// Leave removes a member; the recompute afterwards closes the gap their
// position left behind.
func (s *GroupService) Leave(ctx context.Context, groupID, userID string) error {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.groups.GetForUpdate(ctx, tx, groupID); err != nil {
			return err
		}
		rows, err := s.members.Remove(ctx, tx, groupID, userID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNotMember
		}
		if err := s.groups.DecrementMembers(ctx, tx, groupID); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, userID, "group_left", "group", groupID, "{}")
	})
	if err != nil {
		return err
	}
	if _, err := s.ranking.Recompute(ctx, groupID); err != nil {
		s.log.WithError(err).WithField("group_id", groupID).Error("position recompute after leave failed")
	}
	return nil
}
