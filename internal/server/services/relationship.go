// Package services contains server-side business logic: the relationship,
// engagement and cascade engines plus the account and post services built
// around them. Services take already-authenticated actor ids and return
// common.Error kinds; nothing here knows about HTTP.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/lockx"
	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/metrics"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/users"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
)

// FollowState is the relationship after a toggle.
type FollowState string

const (
	Followed   FollowState = "followed"
	Unfollowed FollowState = "unfollowed"
)

var errSelfFollow = errors.New("cannot follow yourself")

// RetryPolicy bounds the retries of a write that must not be dropped.
// Retries counts attempts after the first one.
type RetryPolicy struct {
	Retries   uint64
	BaseDelay time.Duration
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}
	return retry.WithMaxRetries(p.Retries, retry.NewExponential(base))
}

// do runs fn until it succeeds, the retries run out or fn fails with
// NotFound, which no retry can fix.
func (p RetryPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// RelationshipService maintains follow edges in both directions.
type RelationshipService struct {
	users   users.Repository
	locks   *lockx.KeyedMutex
	policy  RetryPolicy
	log     logging.Logger
	metrics *metrics.Metrics
}

func NewRelationshipService(u users.Repository, policy RetryPolicy, log logging.Logger, m *metrics.Metrics) *RelationshipService {
	return &RelationshipService{
		users:   u,
		locks:   lockx.NewKeyedMutex(),
		policy:  policy,
		log:     log.With("module", "relationship"),
		metrics: m,
	}
}

// ToggleFollow flips whether actorID follows targetID. Both records are
// written before it returns. The actor side is written first; if the target
// side still fails after retries the actor side is rolled back and a
// StoreFailure is returned.
func (s *RelationshipService) ToggleFollow(ctx context.Context, actorID, targetID string) (FollowState, error) {
	if actorID == targetID {
		return "", common.InvalidOperation("user", actorID, errSelfFollow)
	}

	unlock := s.locks.Lock(lockx.PairKey(actorID, targetID))
	defer unlock()

	if _, err := s.users.FindByID(ctx, targetID); err != nil {
		return "", common.StoreFailure("user", targetID, err)
	}

	var follow bool
	_, err := s.users.Update(ctx, actorID, func(u *models.User) error {
		follow = !u.IsFollowing(targetID)
		u.Following, _ = models.SetMember(u.Following, targetID, follow)
		return nil
	})
	if err != nil {
		return "", common.StoreFailure("user", actorID, err)
	}

	// The actor side is committed; finish or undo it even if the caller
	// goes away.
	ctx = context.WithoutCancel(ctx)

	attempts := 0
	err = s.policy.do(ctx, func(ctx context.Context) error {
		attempts++
		_, err := s.users.Update(ctx, targetID, func(u *models.User) error {
			u.Followers, _ = models.SetMember(u.Followers, actorID, follow)
			return nil
		})
		return err
	})
	if attempts > 1 && err == nil {
		s.metrics.FollowRepair("retried")
	}
	if err != nil {
		return "", s.compensate(ctx, actorID, targetID, follow, err)
	}
	if follow {
		if err := s.checkActorSurvived(ctx, actorID, targetID); err != nil {
			return "", err
		}
	}

	state := Unfollowed
	if follow {
		state = Followed
	}
	s.metrics.Follow(string(state))
	s.log.Debug(ctx, "follow toggled", "actor", actorID, "target", targetID, "state", state)
	return state, nil
}

// checkActorSurvived undoes the follower entry on targetID when actorID was
// deleted while the toggle was in flight. An account cascade that started
// after this check sees the edge in the removed record and unlinks it.
func (s *RelationshipService) checkActorSurvived(ctx context.Context, actorID, targetID string) error {
	_, err := s.users.FindByID(ctx, actorID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		s.log.Warn(ctx, "could not confirm follower after toggle", "actor", actorID, "target", targetID, "error", err)
		return nil
	}
	rerr := s.policy.do(ctx, func(ctx context.Context) error {
		_, err := s.users.Update(ctx, targetID, func(u *models.User) error {
			u.Followers, _ = models.RemoveID(u.Followers, actorID)
			return nil
		})
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return err
	})
	if rerr != nil {
		s.metrics.FollowRepair("compensation_failed")
		s.log.Error(ctx, "follower of a deleted account left behind", "actor", actorID, "target", targetID, "error", rerr)
		return common.StoreFailure("user", targetID, multierr.Append(err, rerr))
	}
	s.metrics.FollowRepair("compensated")
	return common.StoreFailure("user", actorID, err)
}

// compensate restores the actor side after the target side could not be
// written. The returned error always carries StoreFailure for the target,
// or NotFound when the target vanished meanwhile.
func (s *RelationshipService) compensate(ctx context.Context, actorID, targetID string, follow bool, cause error) error {
	rerr := s.policy.do(ctx, func(ctx context.Context) error {
		_, err := s.users.Update(ctx, actorID, func(u *models.User) error {
			u.Following, _ = models.SetMember(u.Following, targetID, !follow)
			return nil
		})
		return err
	})
	if rerr != nil {
		s.metrics.FollowRepair("compensation_failed")
		s.log.Error(ctx, "follow compensation failed, edge is one-sided",
			"actor", actorID, "target", targetID, "error", rerr, "cause", cause)
		return common.StoreFailure("user", targetID, multierr.Append(cause, rerr))
	}
	s.metrics.FollowRepair("compensated")
	s.log.Error(ctx, "follow target write failed, actor side rolled back",
		"actor", actorID, "target", targetID, "error", cause)
	return common.StoreFailure("user", targetID, cause)
}
