package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/userportal/internal/common"
	"github.com/dmitrijs2005/userportal/internal/server/models"
	"github.com/dmitrijs2005/userportal/internal/server/repositories/users"
)

// validateNewUsernameAndEmail is the check every create and update goes
// through before writing. With an empty current name it is the create path
// and any match is a conflict; otherwise it resolves the acting user and
// only matches belonging to someone else conflict. Empty candidates are not
// looked up. The UNIQUE constraints on the table back this up.
func validateNewUsernameAndEmail(ctx context.Context, repo users.Repository, current, newUsername, newEmail string) (*models.User, error) {
	byUsername, err := findOptional(ctx, repo.FindByUsername, newUsername)
	if err != nil {
		return nil, err
	}
	byEmail, err := findOptional(ctx, repo.FindByEmail, newEmail)
	if err != nil {
		return nil, err
	}

	if current == "" {
		if byUsername != nil {
			return nil, common.ErrUsernameExists
		}
		if byEmail != nil {
			return nil, common.ErrEmailExists
		}
		return nil, nil
	}

	acting, err := findOptional(ctx, repo.FindByUsername, current)
	if err != nil {
		return nil, err
	}
	if acting == nil {
		return nil, common.ErrIdentityNotFound
	}
	if byUsername != nil && byUsername.ID != acting.ID {
		return nil, common.ErrUsernameExists
	}
	if byEmail != nil && byEmail.ID != acting.ID {
		return nil, common.ErrEmailExists
	}
	return acting, nil
}

// findOptional turns ErrorNotFound into (nil, nil) and skips empty keys.
func findOptional(ctx context.Context, find func(context.Context, string) (*models.User, error), key string) (*models.User, error) {
	if key == "" {
		return nil, nil
	}
	u, err := find(ctx, key)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
