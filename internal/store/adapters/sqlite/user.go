package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authority/internal/domain/repository"
)

type userRepo struct{ db dbtx }

const userColumns = `id, email, email_verified, given_name, family_name, COALESCE(phone, ''), phone_verified,
	password_hash, picture, roles, providers, created_at, updated_at`

// las listas se guardan separadas por espacios
func joinList(v []string) string { return strings.Join(v, " ") }

func splitList(v string) []string { return strings.Fields(v) }

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanUser(row *sql.Row) (*repository.User, error) {
	var u repository.User
	var roles, providers string
	var created, updated int64
	err := row.Scan(&u.ID, &u.Email, &u.EmailVerified, &u.GivenName, &u.FamilyName, &u.Phone, &u.PhoneVerified,
		&u.PasswordHash, &u.Picture, &roles, &providers, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Roles = splitList(roles)
	u.Providers = splitList(providers)
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	id := uuid.NewString()
	now := toMillis(time.Now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO app_user (id, email, given_name, family_name, phone, password_hash, roles, providers, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, strings.ToLower(strings.TrimSpace(in.Email)), in.GivenName, in.FamilyName, nullIfEmpty(in.Phone),
		in.PasswordHash, joinList(in.Roles), joinList(in.Providers), now, now)
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM app_user WHERE id = ?`, id))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM app_user WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))))
}

func (r *userRepo) GetByPhone(ctx context.Context, phone string) (*repository.User, error) {
	if phone == "" {
		return nil, repository.ErrNotFound
	}
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM app_user WHERE phone = ?`, phone))
}

func (r *userRepo) Update(ctx context.Context, id string, in repository.UpdateUserInput) (*repository.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.GivenName != nil {
		u.GivenName = *in.GivenName
	}
	if in.FamilyName != nil {
		u.FamilyName = *in.FamilyName
	}
	if in.Picture != nil {
		u.Picture = *in.Picture
	}
	if in.Phone != nil && *in.Phone != u.Phone {
		u.Phone = *in.Phone
		u.PhoneVerified = false
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE app_user SET given_name = ?, family_name = ?, picture = ?, phone = ?, phone_verified = ?, updated_at = ?
		WHERE id = ?`,
		u.GivenName, u.FamilyName, u.Picture, nullIfEmpty(u.Phone), u.PhoneVerified, toMillis(time.Now()), id)
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *userRepo) exec(ctx context.Context, query string, args ...any) error {
	n, err := affected(r.db.ExecContext(ctx, query, args...))
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	return r.exec(ctx, `UPDATE app_user SET email_verified = ?, updated_at = ? WHERE id = ?`, verified, toMillis(time.Now()), id)
}

func (r *userRepo) SetPhoneVerified(ctx context.Context, id string, verified bool) error {
	return r.exec(ctx, `UPDATE app_user SET phone_verified = ?, updated_at = ? WHERE id = ?`, verified, toMillis(time.Now()), id)
}

func (r *userRepo) SetPassword(ctx context.Context, id, hash string) error {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	providers := u.Providers
	if !u.HasProvider(repository.ProviderLocal) {
		providers = append(providers, repository.ProviderLocal)
	}
	return r.exec(ctx, `UPDATE app_user SET password_hash = ?, providers = ?, updated_at = ? WHERE id = ?`,
		hash, joinList(providers), toMillis(time.Now()), id)
}
