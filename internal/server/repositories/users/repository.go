package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/userportal/internal/server/models"
)

// Repository is the identity store. Lookups return common.ErrorNotFound when
// nothing matches; writes that collide with a unique column return
// common.ErrUsernameExists or common.ErrEmailExists.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	// RecordLogin shifts the previous login time into the display field
	// and sets the current one, leaving every other column untouched.
	RecordLogin(ctx context.Context, id int64, at time.Time) error
	// SetLocked changes only the locked flag.
	SetLocked(ctx context.Context, id int64, locked bool) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	SetProfileImageURL(ctx context.Context, id int64, url string) error
	DeleteByID(ctx context.Context, id int64) error
}
