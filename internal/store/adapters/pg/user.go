package pg

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/authority/internal/domain/repository"
)

type userRepo struct{ db dbtx }

const userColumns = `id, email, email_verified, given_name, family_name, phone, phone_verified,
	password_hash, picture, roles, providers, created_at, updated_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	var phone, hash *string
	err := row.Scan(&u.ID, &u.Email, &u.EmailVerified, &u.GivenName, &u.FamilyName, &phone, &u.PhoneVerified,
		&hash, &u.Picture, &u.Roles, &u.Providers, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.Phone = derefString(phone)
	u.PasswordHash = derefString(hash)
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	now := time.Now().UTC()
	roles, providers := in.Roles, in.Providers
	if roles == nil {
		roles = []string{}
	}
	if providers == nil {
		providers = []string{}
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO app_user (id, email, given_name, family_name, phone, password_hash, roles, providers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING `+userColumns,
		uuid.NewString(), strings.ToLower(strings.TrimSpace(in.Email)), in.GivenName, in.FamilyName,
		nullIfEmpty(in.Phone), nullIfEmpty(in.PasswordHash), roles, providers, now)
	u, err := scanUser(row)
	if err != nil && isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	return u, err
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE id = $1`, id))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))))
}

func (r *userRepo) GetByPhone(ctx context.Context, phone string) (*repository.User, error) {
	if phone == "" {
		return nil, repository.ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE phone = $1`, phone))
}

func (r *userRepo) Update(ctx context.Context, id string, in repository.UpdateUserInput) (*repository.User, error) {
	var phone *string
	if in.Phone != nil {
		phone = nullIfEmpty(*in.Phone)
	}
	// phone_verified se resetea solo si el teléfono cambia
	row := r.db.QueryRow(ctx, `
		UPDATE app_user SET
			given_name     = COALESCE($2, given_name),
			family_name    = COALESCE($3, family_name),
			picture        = COALESCE($4, picture),
			phone_verified = CASE WHEN $5::boolean AND phone IS DISTINCT FROM $6 THEN FALSE ELSE phone_verified END,
			phone          = CASE WHEN $5::boolean THEN $6 ELSE phone END,
			updated_at     = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, in.GivenName, in.FamilyName, in.Picture, in.Phone != nil, phone)
	u, err := scanUser(row)
	if err != nil && isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	return u, err
}

func (r *userRepo) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	return r.exec(ctx, `UPDATE app_user SET email_verified = $2, updated_at = NOW() WHERE id = $1`, id, verified)
}

func (r *userRepo) SetPhoneVerified(ctx context.Context, id string, verified bool) error {
	return r.exec(ctx, `UPDATE app_user SET phone_verified = $2, updated_at = NOW() WHERE id = $1`, id, verified)
}

func (r *userRepo) SetPassword(ctx context.Context, id, hash string) error {
	return r.exec(ctx, `
		UPDATE app_user SET
			password_hash = $2,
			providers = CASE WHEN $3 = ANY(providers) THEN providers ELSE array_append(providers, $3) END,
			updated_at = NOW()
		WHERE id = $1`, id, hash, repository.ProviderLocal)
}
