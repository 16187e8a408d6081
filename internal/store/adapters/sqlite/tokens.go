package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dropDatabas3/authority/internal/domain/repository"
)

// ─── AuthorizationCodeRepository ───

type codeRepo struct{ db dbtx }

func (r *codeRepo) Create(ctx context.Context, c *repository.AuthorizationCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO authorization_code (code_hash, user_id, client_id, redirect_uri, scope,
			code_challenge, code_challenge_method, nonce, state, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		c.CodeHash, c.UserID, c.ClientID, c.RedirectURI, c.Scope,
		c.CodeChallenge, c.CodeChallengeMethod, c.Nonce, c.State, toMillis(c.ExpiresAt), toMillis(c.CreatedAt))
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *codeRepo) GetByHash(ctx context.Context, codeHash string) (*repository.AuthorizationCode, error) {
	var c repository.AuthorizationCode
	var expires, created int64
	var usedAt sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT code_hash, user_id, client_id, redirect_uri, scope, code_challenge, code_challenge_method,
			nonce, state, expires_at, used, used_at, created_at
		FROM authorization_code WHERE code_hash = ?`, codeHash).Scan(
		&c.CodeHash, &c.UserID, &c.ClientID, &c.RedirectURI, &c.Scope, &c.CodeChallenge, &c.CodeChallengeMethod,
		&c.Nonce, &c.State, &expires, &c.Used, &usedAt, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ExpiresAt = fromMillis(expires)
	c.CreatedAt = fromMillis(created)
	c.UsedAt = nullMillis(usedAt)
	return &c, nil
}

func (r *codeRepo) MarkUsed(ctx context.Context, codeHash string, now time.Time) error {
	n, err := affected(r.db.ExecContext(ctx, `
		UPDATE authorization_code SET used = 1, used_at = ?
		WHERE code_hash = ? AND used = 0 AND expires_at >= ?`, toMillis(now), codeHash, toMillis(now)))
	if err != nil {
		return err
	}
	if n != 1 {
		return repository.ErrAlreadyUsed
	}
	return nil
}

func (r *codeRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM authorization_code WHERE expires_at < ?`, toMillis(now)))
}

// ─── RefreshTokenRepository ───

type refreshRepo struct{ db dbtx }

func scanRefresh(row *sql.Row) (*repository.RefreshToken, error) {
	var t repository.RefreshToken
	var issued, expires int64
	err := row.Scan(&t.ID, &t.UserID, &t.ClientID, &t.TokenHash, &issued, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.IssuedAt = fromMillis(issued)
	t.ExpiresAt = fromMillis(expires)
	return &t, nil
}

func (r *refreshRepo) Create(ctx context.Context, t *repository.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_token (id, user_id, client_id, token_hash, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ClientID, t.TokenHash, toMillis(t.IssuedAt), toMillis(t.ExpiresAt))
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *refreshRepo) GetByID(ctx context.Context, id string) (*repository.RefreshToken, error) {
	return scanRefresh(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, client_id, token_hash, issued_at, expires_at FROM refresh_token WHERE id = ?`, id))
}

// Consume usa DELETE ... RETURNING (SQLite >= 3.35).
func (r *refreshRepo) Consume(ctx context.Context, id string) (*repository.RefreshToken, error) {
	return scanRefresh(r.db.QueryRowContext(ctx, `
		DELETE FROM refresh_token WHERE id = ?
		RETURNING id, user_id, client_id, token_hash, issued_at, expires_at`, id))
}

func (r *refreshRepo) DeleteByHash(ctx context.Context, hash string) error {
	n, err := affected(r.db.ExecContext(ctx, `DELETE FROM refresh_token WHERE token_hash = ?`, hash))
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *refreshRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM refresh_token WHERE user_id = ?`, userID))
}

func (r *refreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM refresh_token WHERE expires_at < ?`, toMillis(now)))
}

// ─── ActionTokenRepository ───

type actionRepo struct{ db dbtx }

func (r *actionRepo) Create(ctx context.Context, t *repository.ActionToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO action_token (id, user_id, action_type, token_hash, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		t.ID, t.UserID, string(t.Type), t.TokenHash, toMillis(t.ExpiresAt), toMillis(t.CreatedAt))
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *actionRepo) DeleteByUserAndType(ctx context.Context, userID string, typ repository.ActionType) (int, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM action_token WHERE user_id = ? AND action_type = ?`, userID, string(typ)))
}

func (r *actionRepo) FindUnused(ctx context.Context, hash string, typ repository.ActionType, userID string) (*repository.ActionToken, error) {
	var t repository.ActionToken
	var actionType string
	var expires, created int64
	var usedAt sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, action_type, token_hash, expires_at, used, used_at, created_at
		FROM action_token
		WHERE token_hash = ? AND action_type = ? AND used = 0 AND (? = '' OR user_id = ?)
		ORDER BY created_at DESC
		LIMIT 1`, hash, string(typ), userID, userID).Scan(
		&t.ID, &t.UserID, &actionType, &t.TokenHash, &expires, &t.Used, &usedAt, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Type = repository.ActionType(actionType)
	t.ExpiresAt = fromMillis(expires)
	t.CreatedAt = fromMillis(created)
	t.UsedAt = nullMillis(usedAt)
	return &t, nil
}

func (r *actionRepo) MarkUsed(ctx context.Context, id string, now time.Time) error {
	n, err := affected(r.db.ExecContext(ctx, `
		UPDATE action_token SET used = 1, used_at = ?
		WHERE id = ? AND used = 0 AND expires_at >= ?`, toMillis(now), id, toMillis(now)))
	if err != nil {
		return err
	}
	if n != 1 {
		return repository.ErrAlreadyUsed
	}
	return nil
}

func (r *actionRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM action_token WHERE expires_at < ?`, toMillis(now)))
}
