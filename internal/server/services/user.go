// Package services holds the user-management logic behind the HTTP API:
// login with lockout, registration, admin CRUD, password reset and profile
// images.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/userportal/internal/common"
	"github.com/dmitrijs2005/userportal/internal/cryptox"
	"github.com/dmitrijs2005/userportal/internal/dbx"
	"github.com/dmitrijs2005/userportal/internal/logging"
	"github.com/dmitrijs2005/userportal/internal/server/attempts"
	"github.com/dmitrijs2005/userportal/internal/server/auth"
	"github.com/dmitrijs2005/userportal/internal/server/mail"
	"github.com/dmitrijs2005/userportal/internal/server/metrics"
	"github.com/dmitrijs2005/userportal/internal/server/models"
	"github.com/dmitrijs2005/userportal/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userportal/internal/server/storage"
	"github.com/google/uuid"
)

// Deps are the collaborators of UserService. Logger and Metrics may be nil.
type Deps struct {
	Authority *auth.Authority
	Tracker   attempts.Tracker
	Hasher    cryptox.PasswordHasher
	Mailer    mail.Sender
	Images    storage.ImageStore
	Metrics   *metrics.Metrics
	Logger    logging.Logger

	// BaseURL prefixes generated profile image URLs, e.g.
	// "http://localhost:8081".
	BaseURL string
	// TempImageBaseURL serves placeholder avatars; the username is
	// appended to it.
	TempImageBaseURL string
	HTTPClient       *http.Client
}

// NewUserInput carries the fields an administrator sets on a new user.
type NewUserInput struct {
	FirstName    string
	LastName     string
	Username     string
	Email        string
	Role         string
	Active       bool
	NonLocked    bool
	ProfileImage *Image
}

// UpdateUserInput identifies the user by CurrentUsername; every other field
// replaces the stored value.
type UpdateUserInput struct {
	CurrentUsername string
	NewUserInput
}

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager

	authority *auth.Authority
	tracker   attempts.Tracker
	hasher    cryptox.PasswordHasher
	mailer    mail.Sender
	images    storage.ImageStore
	metrics   *metrics.Metrics
	logger    logging.Logger
	baseURL   string

	tempImageBaseURL string
	httpClient       *http.Client

	now         func() time.Time
	newPassword func() (string, error)
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, d Deps) *UserService {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	mailer := d.Mailer
	if mailer == nil {
		mailer = mail.Nop{}
	}
	return &UserService{
		db:          db,
		repomanager: m,
		authority:   d.Authority,
		tracker:     d.Tracker,
		hasher:      d.Hasher,
		mailer:      mailer,
		images:      d.Images,
		metrics:     d.Metrics,
		logger:      logger,
		baseURL:     strings.TrimRight(d.BaseURL, "/"),

		tempImageBaseURL: strings.TrimRight(d.TempImageBaseURL, "/"),
		httpClient:       d.HTTPClient,

		now:         time.Now,
		newPassword: cryptox.GeneratePassword,
	}
}

// Login authenticates username/password and returns the user with a fresh
// token. An unknown username and a wrong password both yield
// ErrBadCredentials; unknown names are not counted by the tracker.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	repo := s.repomanager.Users(s.db)

	u, err := repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.ObserveLogin(metrics.LoginBadCredentials)
			return nil, "", common.ErrBadCredentials
		}
		s.metrics.ObserveLogin(metrics.LoginError)
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	if err := s.checkLock(ctx, repo, u); err != nil {
		return nil, "", s.loginFailed(err)
	}

	if !u.Active {
		return nil, "", s.loginFailed(common.ErrAccountDisabled)
	}

	if !s.hasher.Compare(u.PasswordHash, password) {
		if err := s.recordFailedLogin(ctx, repo, u); err != nil {
			return nil, "", s.loginFailed(err)
		}
		return nil, "", s.loginFailed(common.ErrBadCredentials)
	}

	if err := s.tracker.Evict(ctx, u.Username); err != nil {
		s.logger.Warn(ctx, "evict login attempts", "username", u.Username, "error", err)
	}

	// Only the login columns are written; the row is re-read so the reply and
	// the token reflect changes committed while the password was checked.
	if err := repo.RecordLogin(ctx, u.ID, s.now()); err != nil {
		return nil, "", s.loginFailed(fmt.Errorf("save login time: %w", err))
	}
	if u, err = repo.FindByID(ctx, u.ID); err != nil {
		return nil, "", s.loginFailed(fmt.Errorf("reload user: %w", err))
	}

	token, err := s.authority.Issue(u)
	if err != nil {
		return nil, "", s.loginFailed(err)
	}

	s.metrics.ObserveLogin(metrics.LoginSuccess)
	return u, token, nil
}

func (s *UserService) loginFailed(err error) error {
	switch {
	case errors.Is(err, common.ErrAccountLocked):
		s.metrics.ObserveLogin(metrics.LoginLocked)
	case errors.Is(err, common.ErrAccountDisabled):
		s.metrics.ObserveLogin(metrics.LoginDisabled)
	case errors.Is(err, common.ErrBadCredentials):
		s.metrics.ObserveLogin(metrics.LoginBadCredentials)
	default:
		s.metrics.ObserveLogin(metrics.LoginError)
	}
	return err
}

// Register self-registers a ROLE_USER account with a generated password that
// is mailed to the user.
func (s *UserService) Register(ctx context.Context, firstName, lastName, username, email string) (*models.User, error) {
	password, hash, err := s.generatePassword()
	if err != nil {
		return nil, err
	}

	u, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		repo := s.repomanager.Users(tx)
		if _, err := validateNewUsernameAndEmail(ctx, repo, "", username, email); err != nil {
			return nil, err
		}

		u := s.newUser(firstName, lastName, username, email, hash)
		u.SetRole(models.RoleUser)
		u.Active = true
		u.Locked = false
		return repo.Create(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "username", u.Username)
	s.sendPassword(ctx, u, password)
	return u, nil
}

// AddNewUser creates a user on behalf of an administrator, optionally with
// a profile image. New accounts always start active and unlocked so the
// mailed password works; the flags in the input only apply to UpdateUser.
func (s *UserService) AddNewUser(ctx context.Context, in NewUserInput) (*models.User, error) {
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if err := in.ProfileImage.validate(); err != nil {
		return nil, err
	}

	password, hash, err := s.generatePassword()
	if err != nil {
		return nil, err
	}

	var undo func(context.Context)
	u, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		repo := s.repomanager.Users(tx)
		if _, err := validateNewUsernameAndEmail(ctx, repo, "", in.Username, in.Email); err != nil {
			return nil, err
		}

		u := s.newUser(in.FirstName, in.LastName, in.Username, in.Email, hash)
		u.SetRole(role)
		u.Active = true
		u.Locked = false

		// the image is stored before the row so a failed upload leaves no user
		if in.ProfileImage != nil {
			if undo, err = s.putImage(ctx, u, u.Username, in.ProfileImage.Data); err != nil {
				return nil, err
			}
			u.ProfileImageURL = s.imageURL(u.Username)
		}
		return repo.Create(ctx, u)
	})
	if err != nil {
		if undo != nil {
			undo(ctx)
		}
		return nil, err
	}

	s.logger.Info(ctx, "user added", "username", u.Username, "role", u.Role)
	s.sendPassword(ctx, u, password)
	return u, nil
}

// UpdateUser rewrites the profile of CurrentUsername. Clearing the locked
// flag is the administrative unlock and also drops the attempt counter.
// A renamed user keeps a stored profile image: it moves to the new name.
func (s *UserService) UpdateUser(ctx context.Context, in UpdateUserInput) (*models.User, error) {
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if err := in.ProfileImage.validate(); err != nil {
		return nil, err
	}

	var (
		wasLocked bool
		oldName   string
		oldURL    string
		undo      func(context.Context)
	)
	u, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		repo := s.repomanager.Users(tx)
		u, err := validateNewUsernameAndEmail(ctx, repo, in.CurrentUsername, in.Username, in.Email)
		if err != nil {
			return nil, err
		}

		wasLocked = u.Locked
		oldName, oldURL = u.Username, u.ProfileImageURL
		u.FirstName = in.FirstName
		u.LastName = in.LastName
		if in.Username != "" {
			u.Username = in.Username
		}
		if in.Email != "" {
			u.Email = in.Email
		}
		u.SetRole(role)
		u.Active = in.Active
		u.Locked = !in.NonLocked

		if undo, err = s.stageImage(ctx, u, oldName, in.ProfileImage); err != nil {
			return nil, err
		}
		return repo.Update(ctx, u)
	})
	if err != nil {
		if undo != nil {
			undo(ctx)
		}
		return nil, err
	}

	if u.Username != oldName && oldURL == s.imageURL(oldName) {
		s.discardImages(ctx, oldName)
	}

	if wasLocked && !u.Locked {
		for _, name := range []string{in.CurrentUsername, u.Username} {
			if err := s.tracker.Evict(ctx, name); err != nil {
				s.logger.Warn(ctx, "evict login attempts", "username", name, "error", err)
			}
		}
		s.logger.Info(ctx, "account unlocked", "username", u.Username)
	}
	return u, nil
}

// DeleteUser removes the user and every stored image of that username.
func (s *UserService) DeleteUser(ctx context.Context, username string) error {
	repo := s.repomanager.Users(s.db)

	u, err := repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrIdentityNotFound
		}
		return err
	}

	if err := repo.DeleteByID(ctx, u.ID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrIdentityNotFound
		}
		return err
	}

	if err := s.images.DeleteAll(ctx, u.Username); err != nil {
		return fmt.Errorf("delete images: %w", err)
	}
	if err := s.tracker.Evict(ctx, u.Username); err != nil {
		s.logger.Warn(ctx, "evict login attempts", "username", u.Username, "error", err)
	}

	s.logger.Info(ctx, "user deleted", "username", u.Username)
	return nil
}

// ResetPassword replaces the password of the user owning email and mails the
// new one. Mail failure does not undo the reset.
func (s *UserService) ResetPassword(ctx context.Context, email string) error {
	u, err := s.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrIdentityNotFound) {
			return common.ErrEmailNotFound
		}
		return err
	}

	password, hash, err := s.generatePassword()
	if err != nil {
		return err
	}
	if err := s.repomanager.Users(s.db).SetPasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}

	s.logger.Info(ctx, "password reset", "username", u.Username)
	s.sendPassword(ctx, u, password)
	return nil
}

// GetUsers lists every user ordered by id.
func (s *UserService) GetUsers(ctx context.Context) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx)
}

func (s *UserService) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return notFoundAsIdentity(s.repomanager.Users(s.db).FindByUsername(ctx, username))
}

func (s *UserService) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return notFoundAsIdentity(s.repomanager.Users(s.db).FindByEmail(ctx, email))
}

// VerifyRequestToken checks a bearer token presented with a request.
func (s *UserService) VerifyRequestToken(token string) (*auth.Claims, error) {
	return s.authority.Verify(token)
}

func notFoundAsIdentity(u *models.User, err error) (*models.User, error) {
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrIdentityNotFound
	}
	return u, err
}

func (s *UserService) newUser(firstName, lastName, username, email, hash string) *models.User {
	return &models.User{
		UserID:          uuid.NewString(),
		FirstName:       firstName,
		LastName:        lastName,
		Username:        username,
		Email:           email,
		PasswordHash:    hash,
		ProfileImageURL: s.defaultImageURL(username),
		JoinDate:        s.now(),
	}
}

func (s *UserService) generatePassword() (string, string, error) {
	password, err := s.newPassword()
	if err != nil {
		return "", "", fmt.Errorf("generate password: %w", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}
	return password, hash, nil
}

func (s *UserService) sendPassword(ctx context.Context, u *models.User, password string) {
	if err := s.mailer.SendNewPassword(ctx, u.FirstName, password, u.Email); err != nil {
		s.metrics.ObserveMailFailure()
		s.logger.Error(ctx, "send password mail", "username", u.Username, "error", err)
	}
}
