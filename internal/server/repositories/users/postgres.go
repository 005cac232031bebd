// Package users implements the identity store on PostgreSQL.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/userportal/internal/common"
	"github.com/dmitrijs2005/userportal/internal/dbx"
	"github.com/dmitrijs2005/userportal/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const selectColumns = `id, user_id, first_name, last_name, username, email, password_hash,
		 profile_image_url, last_login_date, last_login_date_display, join_date,
		 role, authorities, active, locked`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	var (
		u                    models.User
		role, authorities    string
		lastLogin, lastShown sql.NullTime
	)
	err := s.Scan(&u.ID, &u.UserID, &u.FirstName, &u.LastName, &u.Username, &u.Email,
		&u.PasswordHash, &u.ProfileImageURL, &lastLogin, &lastShown, &u.JoinDate,
		&role, &authorities, &u.Active, &u.Locked)
	if err != nil {
		return nil, err
	}

	u.Role = models.Role(role)
	u.Authorities = splitAuthorities(authorities)
	u.LastLoginDate = timePtr(lastLogin)
	u.LastLoginDateDisplay = timePtr(lastShown)
	return &u, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func joinAuthorities(a []string) string { return strings.Join(a, ",") }

func splitAuthorities(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// mapWriteError turns unique violations into the matching sentinel.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "users_username_key":
			return common.ErrUsernameExists
		case "users_email_key":
			return common.ErrEmailExists
		}
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + selectColumns + ` FROM users
		 WHERE ` + where + ` = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, "id", id)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + selectColumns + ` FROM users
		 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (user_id, first_name, last_name, username, email, password_hash,
		 profile_image_url, last_login_date, last_login_date_display, join_date,
		 role, authorities, active, locked)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		user.UserID, user.FirstName, user.LastName, user.Username, user.Email, user.PasswordHash,
		user.ProfileImageURL, nullTime(user.LastLoginDate), nullTime(user.LastLoginDateDisplay), user.JoinDate,
		string(user.Role), joinAuthorities(user.Authorities), user.Active, user.Locked,
	).Scan(&user.ID)
	if err != nil {
		return nil, mapWriteError(err)
	}

	return user, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`UPDATE users SET first_name = $2, last_name = $3, username = $4, email = $5,
		 password_hash = $6, profile_image_url = $7, last_login_date = $8,
		 last_login_date_display = $9, role = $10, authorities = $11, active = $12, locked = $13
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Username, user.Email,
		user.PasswordHash, user.ProfileImageURL, nullTime(user.LastLoginDate),
		nullTime(user.LastLoginDateDisplay), string(user.Role), joinAuthorities(user.Authorities),
		user.Active, user.Locked,
	)
	if err != nil {
		return nil, mapWriteError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return nil, common.ErrorNotFound
	}

	return user, nil
}

// RecordLogin moves the current login time into the display column and
// stores at as the new one. Only those two columns are written.
func (r *PostgresRepository) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	return r.execOne(ctx,
		`UPDATE users SET last_login_date_display = last_login_date, last_login_date = $2
		 WHERE id = $1`, id, at)
}

// SetLocked writes only the locked flag.
func (r *PostgresRepository) SetLocked(ctx context.Context, id int64, locked bool) error {
	return r.execOne(ctx, `UPDATE users SET locked = $2 WHERE id = $1`, id, locked)
}

func (r *PostgresRepository) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	return r.execOne(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
}

func (r *PostgresRepository) SetProfileImageURL(ctx context.Context, id int64, url string) error {
	return r.execOne(ctx, `UPDATE users SET profile_image_url = $2 WHERE id = $1`, id, url)
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
}

// execOne runs a statement that must touch exactly one row by id.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
