package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/metrics"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/posts"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/users"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// CascadeStep names one kind of sub-step of an account deletion.
type CascadeStep string

const (
	StepSnapshot        CascadeStep = "snapshot"
	StepDeleteUser      CascadeStep = "delete_user"
	StepListOwnedPosts  CascadeStep = "list_owned_posts"
	StepDeletePost      CascadeStep = "delete_post"
	StepUnlinkFollowee  CascadeStep = "unlink_followee"
	StepUnlinkFollower  CascadeStep = "unlink_follower"
	StepFindReferencing CascadeStep = "find_referencing"
	StepSweepPost       CascadeStep = "sweep_post"
)

type StepStatus string

const (
	StatusDone StepStatus = "done"
	// StatusSkipped means there was nothing to do, e.g. the target was
	// already gone.
	StatusSkipped StepStatus = "skipped"
	StatusFailed  StepStatus = "failed"
)

// StepOutcome records one sub-step against one target id.
type StepOutcome struct {
	Step   CascadeStep `json:"step"`
	Target string      `json:"target"`
	Status StepStatus  `json:"status"`
	Err    error       `json:"-"`
}

// CascadeReport lists every sub-step of a DeleteAccount in the order it
// finished. It is safe for concurrent recording.
type CascadeReport struct {
	UserID string        `json:"user_id"`
	Steps  []StepOutcome `json:"steps"`

	mu sync.Mutex
}

func (r *CascadeReport) record(o StepOutcome) {
	r.mu.Lock()
	r.Steps = append(r.Steps, o)
	r.mu.Unlock()
}

// Warnings returns the failed sub-steps.
func (r *CascadeReport) Warnings() []StepOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StepOutcome
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			out = append(out, s)
		}
	}
	return out
}

// Err combines the errors of all failed sub-steps, or returns nil.
func (r *CascadeReport) Err() error {
	var err error
	for _, w := range r.Warnings() {
		err = multierr.Append(err, fmt.Errorf("%s %s: %w", w.Step, w.Target, w.Err))
	}
	return err
}

// Count returns how many sub-steps of kind step ended with status.
func (r *CascadeReport) Count(step CascadeStep, status StepStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.Steps {
		if s.Step == step && s.Status == status {
			n++
		}
	}
	return n
}

// CascadeService deletes accounts together with everything that points at
// them.
type CascadeService struct {
	users   users.Repository
	posts   posts.Repository
	workers int
	log     logging.Logger
	metrics *metrics.Metrics
}

func NewCascadeService(u users.Repository, p posts.Repository, workers int, log logging.Logger, m *metrics.Metrics) *CascadeService {
	if workers < 1 {
		workers = 1
	}
	return &CascadeService{
		users:   u,
		posts:   p,
		workers: workers,
		log:     log.With("module", "cascade"),
		metrics: m,
	}
}

// DeleteAccount removes userID and then, best effort, its posts, its follow
// edges on the other side and its likes and comments on remaining posts.
// Only a failure to read or delete the user record itself is returned as an
// error; everything after that ends up in the report. Cleanup runs to
// completion even if ctx is canceled once the user is gone.
func (s *CascadeService) DeleteAccount(ctx context.Context, userID string) (*CascadeReport, error) {
	started := time.Now()
	report := &CascadeReport{UserID: userID}
	defer func() { s.metrics.CascadeDuration(time.Since(started).Seconds()) }()

	snapshot, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.outcome(ctx, report, StepSnapshot, userID, err)
		return report, common.StoreFailure("user", userID, err)
	}
	s.outcome(ctx, report, StepSnapshot, userID, nil)

	last, err := s.users.Delete(ctx, userID)
	if err != nil {
		s.outcome(ctx, report, StepDeleteUser, userID, err)
		return report, common.StoreFailure("user", userID, err)
	}
	s.outcome(ctx, report, StepDeleteUser, userID, nil)
	snapshot = mergeEdges(snapshot, last)

	ctx = context.WithoutCancel(ctx)

	deleted := s.deleteOwnedPosts(ctx, report, snapshot)

	for _, id := range snapshot.Following {
		s.unlink(ctx, report, StepUnlinkFollowee, id, func(u *models.User) bool {
			var changed bool
			u.Followers, changed = models.RemoveID(u.Followers, userID)
			return changed
		})
	}
	for _, id := range snapshot.Followers {
		s.unlink(ctx, report, StepUnlinkFollower, id, func(u *models.User) bool {
			var changed bool
			u.Following, changed = models.RemoveID(u.Following, userID)
			return changed
		})
	}

	s.sweep(ctx, report, userID, deleted)

	if warnings := report.Warnings(); len(warnings) > 0 {
		s.log.Warn(ctx, "account deleted with cleanup failures", "user", userID, "failed_steps", len(warnings))
	} else {
		s.log.Info(ctx, "account deleted", "user", userID, "steps", len(report.Steps))
	}
	return report, nil
}

// mergeEdges adds to snapshot what last gained between the snapshot and
// the removal. Unlinking an edge that is already gone is only a skip.
func mergeEdges(snapshot, last *models.User) *models.User {
	merged := snapshot.Clone()
	if last == nil {
		return merged
	}
	for _, id := range last.Following {
		merged.Following, _ = models.AddID(merged.Following, id)
	}
	for _, id := range last.Followers {
		merged.Followers, _ = models.AddID(merged.Followers, id)
	}
	for _, id := range last.Posts {
		merged.Posts, _ = models.AddID(merged.Posts, id)
	}
	return merged
}

// deleteOwnedPosts deletes the snapshotted posts plus any the owner index
// still lists, and returns the ids it attempted.
func (s *CascadeService) deleteOwnedPosts(ctx context.Context, report *CascadeReport, snapshot *models.User) map[string]bool {
	ids := append([]string(nil), snapshot.Posts...)
	owned, err := s.posts.FindByOwner(ctx, snapshot.ID)
	if err != nil {
		s.outcome(ctx, report, StepListOwnedPosts, snapshot.ID, err)
	} else {
		for _, p := range owned {
			ids, _ = models.AddID(ids, p.ID)
		}
	}

	attempted := make(map[string]bool, len(ids))
	for _, id := range ids {
		if attempted[id] {
			continue
		}
		attempted[id] = true
		s.outcome(ctx, report, StepDeletePost, id, s.posts.Delete(ctx, id))
	}
	return attempted
}

func (s *CascadeService) unlink(ctx context.Context, report *CascadeReport, step CascadeStep, id string, fn func(u *models.User) bool) {
	var changed bool
	_, err := s.users.Update(ctx, id, func(u *models.User) error {
		changed = fn(u)
		return nil
	})
	if err == nil && !changed {
		s.skip(report, step, id)
		return
	}
	s.outcome(ctx, report, step, id, err)
}

// sweep strips userID from every remaining post that references it. It
// uses the referencing index and falls back to a full scan if the index
// cannot be read.
func (s *CascadeService) sweep(ctx context.Context, report *CascadeReport, userID string, skip map[string]bool) {
	ids, err := s.posts.FindReferencing(ctx, userID)
	if err != nil {
		s.outcome(ctx, report, StepFindReferencing, userID, err)
		ids, err = s.scanReferencing(ctx, userID)
		if err != nil {
			s.outcome(ctx, report, StepFindReferencing, "*", err)
			return
		}
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, id := range ids {
		if skip[id] {
			continue
		}
		g.Go(func() error {
			var changed bool
			_, err := s.posts.Update(ctx, id, func(p *models.Post) error {
				changed = p.ForgetUser(userID)
				return nil
			})
			if err == nil && !changed {
				s.skip(report, StepSweepPost, id)
				return nil
			}
			s.outcome(ctx, report, StepSweepPost, id, err)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *CascadeService) scanReferencing(ctx context.Context, userID string) ([]string, error) {
	all, err := s.posts.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, p := range all {
		if p.References(userID) {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

// outcome records err against step and target. NotFound counts as skipped:
// the target is already gone, which is the state the step aims for.
func (s *CascadeService) outcome(ctx context.Context, report *CascadeReport, step CascadeStep, target string, err error) {
	switch {
	case err == nil:
		report.record(StepOutcome{Step: step, Target: target, Status: StatusDone})
		s.metrics.CascadeStep(string(step), string(StatusDone))
	case errors.Is(err, common.ErrorNotFound) && step != StepSnapshot && step != StepDeleteUser:
		s.skip(report, step, target)
	default:
		report.record(StepOutcome{Step: step, Target: target, Status: StatusFailed, Err: err})
		s.metrics.CascadeStep(string(step), string(StatusFailed))
		s.log.Warn(ctx, "cascade step failed", "user", report.UserID, "step", step, "target", target, "error", err)
	}
}

func (s *CascadeService) skip(report *CascadeReport, step CascadeStep, target string) {
	report.record(StepOutcome{Step: step, Target: target, Status: StatusSkipped})
	s.metrics.CascadeStep(string(step), string(StatusSkipped))
}
