package services

import (
	"context"

	"github.com/dmitrijs2005/userportal/internal/common"
	"github.com/dmitrijs2005/userportal/internal/server/models"
	"github.com/dmitrijs2005/userportal/internal/server/repositories/users"
)

// checkLock runs before the password check.
//
// A locked account has its attempt counter evicted but stays locked: the
// stored flag is only cleared by an administrator. An unlocked account whose
// counter is already over the limit is locked and persisted here.
func (s *UserService) checkLock(ctx context.Context, repo users.Repository, u *models.User) error {
	if u.Locked {
		if err := s.tracker.Evict(ctx, u.Username); err != nil {
			s.logger.Warn(ctx, "evict login attempts", "username", u.Username, "error", err)
		}
		return common.ErrAccountLocked
	}

	exceeded, err := s.tracker.Exceeded(ctx, u.Username)
	if err != nil {
		return err
	}
	if exceeded {
		if err := s.lock(ctx, repo, u); err != nil {
			return err
		}
		return common.ErrAccountLocked
	}
	return nil
}

// recordFailedLogin counts a wrong password and locks the account as soon as
// the limit is reached. Tracker errors are logged: the caller still gets
// ErrBadCredentials.
func (s *UserService) recordFailedLogin(ctx context.Context, repo users.Repository, u *models.User) error {
	if err := s.tracker.RecordFailure(ctx, u.Username); err != nil {
		s.logger.Warn(ctx, "record login failure", "username", u.Username, "error", err)
		return nil
	}

	n, err := s.tracker.Count(ctx, u.Username)
	if err != nil {
		s.logger.Warn(ctx, "read login attempts", "username", u.Username, "error", err)
		return nil
	}
	s.logger.Info(ctx, "login failure", "username", u.Username, "attempts", n)

	exceeded, err := s.tracker.Exceeded(ctx, u.Username)
	if err != nil {
		s.logger.Warn(ctx, "read login attempts", "username", u.Username, "error", err)
		return nil
	}
	if exceeded {
		return s.lock(ctx, repo, u)
	}
	return nil
}

func (s *UserService) lock(ctx context.Context, repo users.Repository, u *models.User) error {
	if err := repo.SetLocked(ctx, u.ID, true); err != nil {
		return err
	}
	u.Locked = true
	s.metrics.ObserveLockout()
	s.logger.Info(ctx, "account locked", "username", u.Username)
	return nil
}
