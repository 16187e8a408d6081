package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authority/internal/domain/repository"
)

func cloneUser(u *repository.User) *repository.User {
	cp := *u
	cp.Roles = slices.Clone(u.Roles)
	cp.Providers = slices.Clone(u.Providers)
	return &cp
}

// ─── UserRepository ───

type userRepo struct{ db database }

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	var out *repository.User
	err := r.db.with(func(st *state) error {
		email := strings.ToLower(strings.TrimSpace(in.Email))
		for _, u := range st.users {
			if u.Email == email || (in.Phone != "" && u.Phone == in.Phone) {
				return repository.ErrConflict
			}
		}
		now := time.Now().UTC()
		u := &repository.User{
			ID:           uuid.NewString(),
			Email:        email,
			GivenName:    in.GivenName,
			FamilyName:   in.FamilyName,
			Phone:        in.Phone,
			PasswordHash: in.PasswordHash,
			Roles:        slices.Clone(in.Roles),
			Providers:    slices.Clone(in.Providers),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		st.users[u.ID] = u
		out = cloneUser(u)
		return nil
	})
	return out, err
}

func (r *userRepo) find(match func(u *repository.User) bool) (*repository.User, error) {
	var out *repository.User
	err := r.db.with(func(st *state) error {
		for _, u := range st.users {
			if match(u) {
				out = cloneUser(u)
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	return r.find(func(u *repository.User) bool { return u.ID == id })
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(u *repository.User) bool { return u.Email == email })
}

func (r *userRepo) GetByPhone(ctx context.Context, phone string) (*repository.User, error) {
	if phone == "" {
		return nil, repository.ErrNotFound
	}
	return r.find(func(u *repository.User) bool { return u.Phone == phone })
}

func (r *userRepo) mutate(id string, fn func(st *state, u *repository.User) error) (*repository.User, error) {
	var out *repository.User
	err := r.db.with(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		if err := fn(st, u); err != nil {
			return err
		}
		u.UpdatedAt = time.Now().UTC()
		out = cloneUser(u)
		return nil
	})
	return out, err
}

func (r *userRepo) Update(ctx context.Context, id string, in repository.UpdateUserInput) (*repository.User, error) {
	return r.mutate(id, func(st *state, u *repository.User) error {
		if in.Phone != nil && *in.Phone != u.Phone {
			for _, other := range st.users {
				if other.ID != id && *in.Phone != "" && other.Phone == *in.Phone {
					return repository.ErrConflict
				}
			}
			u.Phone = *in.Phone
			u.PhoneVerified = false
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
		return nil
	})
}

func (r *userRepo) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	_, err := r.mutate(id, func(_ *state, u *repository.User) error {
		u.EmailVerified = verified
		return nil
	})
	return err
}

func (r *userRepo) SetPhoneVerified(ctx context.Context, id string, verified bool) error {
	_, err := r.mutate(id, func(_ *state, u *repository.User) error {
		u.PhoneVerified = verified
		return nil
	})
	return err
}

func (r *userRepo) SetPassword(ctx context.Context, id, hash string) error {
	_, err := r.mutate(id, func(_ *state, u *repository.User) error {
		u.PasswordHash = hash
		if !u.HasProvider(repository.ProviderLocal) {
			u.Providers = append(u.Providers, repository.ProviderLocal)
		}
		return nil
	})
	return err
}

// ─── AuthorizationCodeRepository ───

type codeRepo struct{ db database }

func (r *codeRepo) Create(ctx context.Context, code *repository.AuthorizationCode) error {
	return r.db.with(func(st *state) error {
		if _, ok := st.codes[code.CodeHash]; ok {
			return repository.ErrConflict
		}
		cp := *code
		st.codes[code.CodeHash] = &cp
		return nil
	})
}

func (r *codeRepo) GetByHash(ctx context.Context, codeHash string) (*repository.AuthorizationCode, error) {
	var out *repository.AuthorizationCode
	err := r.db.with(func(st *state) error {
		c, ok := st.codes[codeHash]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *c
		out = &cp
		return nil
	})
	return out, err
}

func (r *codeRepo) MarkUsed(ctx context.Context, codeHash string, now time.Time) error {
	return r.db.with(func(st *state) error {
		c, ok := st.codes[codeHash]
		if !ok || c.Used || c.Expired(now) {
			return repository.ErrAlreadyUsed
		}
		c.Used = true
		c.UsedAt = &now
		return nil
	})
}

func (r *codeRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := r.db.with(func(st *state) error {
		for k, c := range st.codes {
			if c.ExpiresAt.Before(now) {
				delete(st.codes, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

// ─── RefreshTokenRepository ───

type refreshRepo struct{ db database }

func (r *refreshRepo) Create(ctx context.Context, t *repository.RefreshToken) error {
	return r.db.with(func(st *state) error {
		if _, ok := st.refresh[t.ID]; ok {
			return repository.ErrConflict
		}
		cp := *t
		st.refresh[t.ID] = &cp
		return nil
	})
}

func (r *refreshRepo) GetByID(ctx context.Context, id string) (*repository.RefreshToken, error) {
	var out *repository.RefreshToken
	err := r.db.with(func(st *state) error {
		t, ok := st.refresh[id]
		if !ok {
			return repository.ErrNotFound
		}
		cp := *t
		out = &cp
		return nil
	})
	return out, err
}

func (r *refreshRepo) Consume(ctx context.Context, id string) (*repository.RefreshToken, error) {
	var out *repository.RefreshToken
	err := r.db.with(func(st *state) error {
		t, ok := st.refresh[id]
		if !ok {
			return repository.ErrNotFound
		}
		delete(st.refresh, id)
		out = t
		return nil
	})
	return out, err
}

func (r *refreshRepo) DeleteByHash(ctx context.Context, hash string) error {
	return r.db.with(func(st *state) error {
		for k, t := range st.refresh {
			if t.TokenHash == hash {
				delete(st.refresh, k)
				return nil
			}
		}
		return repository.ErrNotFound
	})
}

func (r *refreshRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	n := 0
	err := r.db.with(func(st *state) error {
		for k, t := range st.refresh {
			if t.UserID == userID {
				delete(st.refresh, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *refreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := r.db.with(func(st *state) error {
		for k, t := range st.refresh {
			if t.ExpiresAt.Before(now) {
				delete(st.refresh, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

// ─── ActionTokenRepository ───

type actionRepo struct{ db database }

func (r *actionRepo) Create(ctx context.Context, t *repository.ActionToken) error {
	return r.db.with(func(st *state) error {
		if _, ok := st.actions[t.ID]; ok {
			return repository.ErrConflict
		}
		cp := *t
		st.actions[t.ID] = &cp
		return nil
	})
}

func (r *actionRepo) DeleteByUserAndType(ctx context.Context, userID string, typ repository.ActionType) (int, error) {
	n := 0
	err := r.db.with(func(st *state) error {
		for k, t := range st.actions {
			if t.UserID == userID && t.Type == typ {
				delete(st.actions, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *actionRepo) FindUnused(ctx context.Context, hash string, typ repository.ActionType, userID string) (*repository.ActionToken, error) {
	var out *repository.ActionToken
	err := r.db.with(func(st *state) error {
		for _, t := range st.actions {
			if t.TokenHash != hash || t.Type != typ || t.Used {
				continue
			}
			if userID != "" && t.UserID != userID {
				continue
			}
			cp := *t
			out = &cp
			return nil
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *actionRepo) MarkUsed(ctx context.Context, id string, now time.Time) error {
	return r.db.with(func(st *state) error {
		t, ok := st.actions[id]
		if !ok || t.Used || t.Expired(now) {
			return repository.ErrAlreadyUsed
		}
		t.Used = true
		t.UsedAt = &now
		return nil
	})
}

func (r *actionRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := r.db.with(func(st *state) error {
		for k, t := range st.actions {
			if t.ExpiresAt.Before(now) {
				delete(st.actions, k)
				n++
			}
		}
		return nil
	})
	return n, err
}
