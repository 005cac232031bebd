package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/userportal/internal/common"
	"github.com/dmitrijs2005/userportal/internal/dbx"
	"github.com/dmitrijs2005/userportal/internal/netx"
	"github.com/dmitrijs2005/userportal/internal/server/models"
	"github.com/dmitrijs2005/userportal/internal/server/storage"
)

var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Image is an uploaded profile picture.
type Image struct {
	ContentType string
	Data        []byte
}

// validate accepts a nil image (nothing uploaded).
func (img *Image) validate() error {
	if img == nil {
		return nil
	}
	if !imageContentTypes[img.ContentType] {
		return fmt.Errorf("%w: %s", common.ErrNotImageFile, img.ContentType)
	}
	return nil
}

func (s *UserService) defaultImageURL(username string) string {
	return s.baseURL + "/user/image/profile/" + url.PathEscape(username)
}

func (s *UserService) imageURL(username string) string {
	return s.baseURL + "/user/image/" + url.PathEscape(username) + "/" + url.PathEscape(storage.ProfileFileName(username))
}

// putImage stores data as the profile image of username. The returned undo
// puts back whatever u had stored under that name before, or removes the
// name's images when there was nothing.
func (s *UserService) putImage(ctx context.Context, u *models.User, username string, data []byte) (func(context.Context), error) {
	var previous []byte
	if u.ProfileImageURL == s.imageURL(username) {
		if b, _, err := s.images.Load(ctx, username, storage.ProfileFileName(username)); err == nil {
			previous = b
		}
	}

	if err := s.images.Save(ctx, username, data); err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}

	return func(ctx context.Context) {
		var err error
		if previous != nil {
			err = s.images.Save(ctx, username, previous)
		} else {
			err = s.images.DeleteAll(ctx, username)
		}
		if err != nil {
			s.logger.Warn(ctx, "undo image write", "username", username, "error", err)
		}
	}, nil
}

// stageImage brings the image of u in line with its (possibly new) username
// before the row is written. An upload replaces the image; a rename without
// an upload copies the stored image to the new name, or repoints the default
// URL. The old name's files are left for the caller to drop after commit.
func (s *UserService) stageImage(ctx context.Context, u *models.User, oldName string, img *Image) (func(context.Context), error) {
	renamed := u.Username != oldName

	var data []byte
	switch {
	case img != nil:
		data = img.Data
	case renamed && u.ProfileImageURL == s.imageURL(oldName):
		b, _, err := s.images.Load(ctx, oldName, storage.ProfileFileName(oldName))
		if err != nil {
			return nil, fmt.Errorf("move image: %w", err)
		}
		data = b
	case renamed && u.ProfileImageURL == s.defaultImageURL(oldName):
		u.ProfileImageURL = s.defaultImageURL(u.Username)
		return nil, nil
	default:
		return nil, nil
	}

	undo, err := s.putImage(ctx, u, u.Username, data)
	if err != nil {
		return nil, err
	}
	u.ProfileImageURL = s.imageURL(u.Username)
	return undo, nil
}

func (s *UserService) discardImages(ctx context.Context, username string) {
	if err := s.images.DeleteAll(ctx, username); err != nil {
		s.logger.Warn(ctx, "delete images", "username", username, "error", err)
	}
}

// UpdateProfileImage replaces the profile picture of username.
func (s *UserService) UpdateProfileImage(ctx context.Context, username string, img *Image) (*models.User, error) {
	if img == nil {
		return nil, common.ErrNotImageFile
	}
	if err := img.validate(); err != nil {
		return nil, err
	}

	var undo func(context.Context)
	u, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		repo := s.repomanager.Users(tx)
		u, err := validateNewUsernameAndEmail(ctx, repo, username, "", "")
		if err != nil {
			return nil, err
		}

		if undo, err = s.putImage(ctx, u, u.Username, img.Data); err != nil {
			return nil, err
		}
		u.ProfileImageURL = s.imageURL(u.Username)
		if err := repo.SetProfileImageURL(ctx, u.ID, u.ProfileImageURL); err != nil {
			return nil, err
		}
		return u, nil
	})
	if err != nil {
		if undo != nil {
			undo(ctx)
		}
		return nil, err
	}
	return u, nil
}

// ProfileImage returns a stored image and its content type.
func (s *UserService) ProfileImage(ctx context.Context, username, fileName string) ([]byte, string, error) {
	return s.images.Load(ctx, username, fileName)
}

// TempProfileImage fetches the generated placeholder avatar for username.
func (s *UserService) TempProfileImage(ctx context.Context, username string) ([]byte, string, error) {
	data, ct, err := netx.Fetch(ctx, s.httpClient, s.tempImageBaseURL+"/"+url.PathEscape(username))
	if err != nil {
		return nil, "", fmt.Errorf("fetch temp image: %w", err)
	}
	return data, ct, nil
}
