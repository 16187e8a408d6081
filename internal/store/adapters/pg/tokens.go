package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/authority/internal/domain/repository"
)

// ─── AuthorizationCodeRepository ───

type codeRepo struct{ db dbtx }

func (r *codeRepo) Create(ctx context.Context, c *repository.AuthorizationCode) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO authorization_code (code_hash, user_id, client_id, redirect_uri, scope,
			code_challenge, code_challenge_method, nonce, state, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, $11)`,
		c.CodeHash, c.UserID, c.ClientID, c.RedirectURI, c.Scope,
		c.CodeChallenge, c.CodeChallengeMethod, c.Nonce, c.State, c.ExpiresAt, c.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *codeRepo) GetByHash(ctx context.Context, codeHash string) (*repository.AuthorizationCode, error) {
	var c repository.AuthorizationCode
	err := r.db.QueryRow(ctx, `
		SELECT code_hash, user_id, client_id, redirect_uri, scope, code_challenge, code_challenge_method,
			nonce, state, expires_at, used, used_at, created_at
		FROM authorization_code WHERE code_hash = $1`, codeHash).Scan(
		&c.CodeHash, &c.UserID, &c.ClientID, &c.RedirectURI, &c.Scope, &c.CodeChallenge, &c.CodeChallengeMethod,
		&c.Nonce, &c.State, &c.ExpiresAt, &c.Used, &c.UsedAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *codeRepo) MarkUsed(ctx context.Context, codeHash string, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE authorization_code SET used = TRUE, used_at = $2
		WHERE code_hash = $1 AND used = FALSE AND expires_at >= $2`, codeHash, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return repository.ErrAlreadyUsed
	}
	return nil
}

func (r *codeRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM authorization_code WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ─── RefreshTokenRepository ───

type refreshRepo struct{ db dbtx }

const refreshColumns = `id, user_id, client_id, token_hash, issued_at, expires_at`

func scanRefresh(row pgx.Row) (*repository.RefreshToken, error) {
	var t repository.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.ClientID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *refreshRepo) Create(ctx context.Context, t *repository.RefreshToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_token (`+refreshColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.UserID, t.ClientID, t.TokenHash, t.IssuedAt, t.ExpiresAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *refreshRepo) GetByID(ctx context.Context, id string) (*repository.RefreshToken, error) {
	return scanRefresh(r.db.QueryRow(ctx, `SELECT `+refreshColumns+` FROM refresh_token WHERE id = $1`, id))
}

func (r *refreshRepo) Consume(ctx context.Context, id string) (*repository.RefreshToken, error) {
	return scanRefresh(r.db.QueryRow(ctx, `DELETE FROM refresh_token WHERE id = $1 RETURNING `+refreshColumns, id))
}

func (r *refreshRepo) DeleteByHash(ctx context.Context, hash string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_token WHERE token_hash = $1`, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *refreshRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_token WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *refreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_token WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ─── ActionTokenRepository ───

type actionRepo struct{ db dbtx }

func (r *actionRepo) Create(ctx context.Context, t *repository.ActionToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO action_token (id, user_id, action_type, token_hash, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)`,
		t.ID, t.UserID, string(t.Type), t.TokenHash, t.ExpiresAt, t.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *actionRepo) DeleteByUserAndType(ctx context.Context, userID string, typ repository.ActionType) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM action_token WHERE user_id = $1 AND action_type = $2`, userID, string(typ))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *actionRepo) FindUnused(ctx context.Context, hash string, typ repository.ActionType, userID string) (*repository.ActionToken, error) {
	var t repository.ActionToken
	var actionType string
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, action_type, token_hash, expires_at, used, used_at, created_at
		FROM action_token
		WHERE token_hash = $1 AND action_type = $2 AND used = FALSE
			AND ($3 = '' OR user_id::text = $3)
		ORDER BY created_at DESC
		LIMIT 1`, hash, string(typ), userID).Scan(
		&t.ID, &t.UserID, &actionType, &t.TokenHash, &t.ExpiresAt, &t.Used, &t.UsedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Type = repository.ActionType(actionType)
	return &t, nil
}

func (r *actionRepo) MarkUsed(ctx context.Context, id string, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE action_token SET used = TRUE, used_at = $2
		WHERE id = $1 AND used = FALSE AND expires_at >= $2`, id, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return repository.ErrAlreadyUsed
	}
	return nil
}

func (r *actionRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM action_token WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
