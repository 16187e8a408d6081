// Package storetest contiene la suite de conformidad que todo adapter debe pasar.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	"github.com/dropDatabas3/authority/internal/store"
)

// Opener abre una conexión vacía para un subtest.
type Opener func(t *testing.T) store.AdapterConnection

// Run ejecuta la suite completa contra el adapter.
func Run(t *testing.T, open Opener) {
	t.Run("Users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("AuthCodes", func(t *testing.T) { testAuthCodes(t, open(t)) })
	t.Run("AuthCodeRace", func(t *testing.T) { testAuthCodeRace(t, open(t)) })
	t.Run("RefreshTokens", func(t *testing.T) { testRefreshTokens(t, open(t)) })
	t.Run("ActionTokens", func(t *testing.T) { testActionTokens(t, open(t)) })
	t.Run("ActionTokenRace", func(t *testing.T) { testActionTokenRace(t, open(t)) })
	t.Run("RefreshRace", func(t *testing.T) { testRefreshRace(t, open(t)) })
	t.Run("ExpiryBoundary", func(t *testing.T) { testExpiryBoundary(t, open(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, open(t)) })
	t.Run("TxRollbackKeepsOutsideWrites", func(t *testing.T) { testTxRollbackKeepsOutsideWrites(t, open(t)) })
}

// race corre fn en n goroutines a la vez y cuenta éxitos y errores esperados.
func race(n int, fn func() error, expected error) (wins, losses int32) {
	var w, l atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := fn()
			switch {
			case err == nil:
				w.Add(1)
			case errors.Is(err, expected):
				l.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	return w.Load(), l.Load()
}

func mustUser(t *testing.T, db store.DataAccess, email, phone string) *repository.User {
	t.Helper()
	u, err := db.Users().Create(context.Background(), repository.CreateUserInput{
		Email: email, Phone: phone, GivenName: "Ada", FamilyName: "Lovelace",
		PasswordHash: "hash", Roles: []string{"USER"}, Providers: []string{repository.ProviderLocal},
	})
	require.NoError(t, err)
	return u
}

func testUsers(t *testing.T, db store.AdapterConnection) {
	ctx := context.Background()
	u := mustUser(t, db, "Ada@Example.com", "+15550001")
	require.Equal(t, "ada@example.com", u.Email)
	require.False(t, u.EmailVerified)
	require.Equal(t, []string{"USER"}, u.Roles)

	_, err := db.Users().Create(ctx, repository.CreateUserInput{Email: "ada@example.com"})
	require.ErrorIs(t, err, repository.ErrConflict)
	_, err = db.Users().Create(ctx, repository.CreateUserInput{Email: "other@example.com", Phone: "+15550001"})
	require.ErrorIs(t, err, repository.ErrConflict)

	got, err := db.Users().GetByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got, err = db.Users().GetByPhone(ctx, "+15550001")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = db.Users().GetByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = db.Users().GetByID(ctx, uuid.NewString())
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, db.Users().SetPhoneVerified(ctx, u.ID, true))
	require.NoError(t, db.Users().SetEmailVerified(ctx, u.ID, true))

	name := "Augusta"
	same := "+15550001"
	got, err = db.Users().Update(ctx, u.ID, repository.UpdateUserInput{GivenName: &name, Phone: &same})
	require.NoError(t, err)
	require.Equal(t, "Augusta", got.GivenName)
	require.True(t, got.PhoneVerified, "unchanged phone keeps verification")

	other := "+15550002"
	got, err = db.Users().Update(ctx, u.ID, repository.UpdateUserInput{Phone: &other})
	require.NoError(t, err)
	require.Equal(t, "+15550002", got.Phone)
	require.False(t, got.PhoneVerified)
	require.True(t, got.EmailVerified)

	social, err := db.Users().Create(ctx, repository.CreateUserInput{Email: "social@example.com", Providers: []string{"google"}})
	require.NoError(t, err)
	require.False(t, social.HasPassword())
	require.NoError(t, db.Users().SetPassword(ctx, social.ID, "new-hash"))
	got, err = db.Users().GetByID(ctx, social.ID)
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.PasswordHash)
	require.ElementsMatch(t, []string{"google", repository.ProviderLocal}, got.Providers)
}

func newCode(userID, hash string, now time.Time, ttl time.Duration) *repository.AuthorizationCode {
	return &repository.AuthorizationCode{
		CodeHash: hash, UserID: userID, ClientID: "web", RedirectURI: "https://app.example.com/cb",
		Scope: "openid", CodeChallenge: "abc", CodeChallengeMethod: "S256",
		ExpiresAt: now.Add(ttl), CreatedAt: now,
	}
}

func testAuthCodes(t *testing.T, db store.AdapterConnection) {
	ctx := context.Background()
	u := mustUser(t, db, "codes@example.com", "")
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, db.AuthCodes().Create(ctx, newCode(u.ID, "h1", now, 10*time.Minute)))
	got, err := db.AuthCodes().GetByHash(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, "web", got.ClientID)
	require.Equal(t, "S256", got.CodeChallengeMethod)
	require.False(t, got.Used)
	require.WithinDuration(t, now.Add(10*time.Minute), got.ExpiresAt, time.Millisecond)

	_, err = db.AuthCodes().GetByHash(ctx, "nope")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, db.AuthCodes().MarkUsed(ctx, "h1", now))
	require.ErrorIs(t, db.AuthCodes().MarkUsed(ctx, "h1", now), repository.ErrAlreadyUsed)
	got, err = db.AuthCodes().GetByHash(ctx, "h1")
	require.NoError(t, err)
	require.True(t, got.Used)
	require.NotNil(t, got.UsedAt)

	require.NoError(t, db.AuthCodes().Create(ctx, newCode(u.ID, "h2", now, time.Second)))
	require.ErrorIs(t, db.AuthCodes().MarkUsed(ctx, "h2", now.Add(2*time.Second)), repository.ErrAlreadyUsed)

	n, err := db.AuthCodes().DeleteExpired(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = db.AuthCodes().GetByHash(ctx, "h2")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func testAuthCodeRace(t *testing.T, db store.AdapterConnection) {
	ctx := context.Background()
	u := mustUser(t, db, "race@example.com", "")
	now := time.Now().UTC()
	require.NoError(t, db.AuthCodes().Create(ctx, newCode(u.ID, "race", now, time.Minute)))

	var wins, losses atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.AuthCodes().MarkUsed(ctx, "race", now)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, repository.ErrAlreadyUsed):
				losses.Add(1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins.Load())
	require.EqualValues(t, 15, losses.Load())
}

func testActionTokenRace(t *testing.T, db store.AdapterConnection) {
	ctx := context.Background()
	u := mustUser(t, db, "action-race@example.com", "")
	now := time.Now().UTC().Truncate(time.Millisecond)
	tok := &repository.ActionToken{
		ID: uuid.NewString(), UserID: u.ID, Type: repository.ActionEmailVerification,
		TokenHash: "race", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}
	require.NoError(t, db.ActionTokens().Create(ctx, tok))

	// mismo patrón que la redención: mark used + efecto en una transacción
	wins, losses := race(12, func() error {
		return db.InTx(ctx, func(tx store.Repositories) error {
			if err := tx.ActionTokens().MarkUsed(ctx, tok.ID, now); err != nil {
				return err
			}
			return tx.Users().SetEmailVerified(ctx, u.ID, true)
		})
	}, repository.ErrAlreadyUsed)
	require.EqualValues(t, 1, wins)
	require.EqualValues(t, 11, losses)

	got, err := db.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)
}

func testRefreshRace(t *testing.T, db store.AdapterConnection) {
	ctx := context.Background()
	u := mustUser(t, db, "refresh-race@example.com", "")
	now := time.Now().UTC().Truncate(time.Millisecond)
	mk := func(hash string) string {
		id := uuid.NewString()
		require.NoError(t, db.RefreshTokens().Create(ctx, &repository.RefreshToken{
			ID: id, UserID: u.ID, TokenHash: hash, IssuedAt: now, ExpiresAt: now.Add(time.Hour),
		}))
		return id
	}

	id := mk("rotate")
	wins, losses := race(12, func() error {
		_, err := db.RefreshTokens().Consume(ctx, id)
		return err
	}, repository.ErrNotFound)
	require.EqualValues(t, 1, wins)
	require.EqualValues(t, 11, losses)

	mk("revoke")
	wins, losses = race(12, func() error {
		return db.RefreshTokens().DeleteByHash(ctx, "revoke")
	}, repository.ErrNotFound)
	require.EqualValues(t, 1, wins)
	require.EqualValues(t, 11, losses)
}

// ExpiresAt == now todavía es válido; un instante después no.
func testExpiryBoundary(t *testing.T, db store.AdapterConnection) {
	ctx := context.Background()
	u := mustUser(t, db, "boundary@example.com", "")
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, db.AuthCodes().Create(ctx, newCode(u.ID, "edge", now, time.Minute)))
	require.NoError(t, db.AuthCodes().MarkUsed(ctx, "edge", now.Add(time.Minute)))
	require.NoError(t, db.AuthCodes().Create(ctx, newCode(u.ID, "late", now, time.Minute)))
	require.ErrorIs(t, db.AuthCodes().MarkUsed(ctx, "late", now.Add(time.Minute+time.Millisecond)), repository.ErrAlreadyUsed)

	mk := func(hash string) string {
		tok := &repository.ActionToken{
			ID: uuid.NewString(), UserID: u.ID, Type: repository.ActionSMSVerification,
			TokenHash: hash, ExpiresAt: now.Add(time.Minute), CreatedAt: now,
		}
		require.NoError(t, db.ActionTokens().Create(ctx, tok))
		return tok.ID
	}
	require.NoError(t, db.ActionTokens().MarkUsed(ctx, mk("edge"), now.Add(time.Minute)))
	require.ErrorIs(t, db.ActionTokens().MarkUsed(ctx, mk("late"), now.Add(time.Minute+time.Millisecond)), repository.ErrAlreadyUsed)

	// cleanup usa el mismo borde: en now == ExpiresAt no se borra nada
	n, err := db.ActionTokens().DeleteExpired(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func testRefreshTokens(t *testing.T, db store.AdapterConnection) {
	ctx := context.Background()
	u := mustUser(t, db, "refresh@example.com", "")
	now := time.Now().UTC().Truncate(time.Millisecond)

	id := uuid.NewString()
	rec := &repository.RefreshToken{ID: id, UserID: u.ID, ClientID: "web", TokenHash: "th1", IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, db.RefreshTokens().Create(ctx, rec))
	require.ErrorIs(t, db.RefreshTokens().Create(ctx, rec), repository.ErrConflict)

	got, err := db.RefreshTokens().GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.UserID)
	require.Equal(t, "th1", got.TokenHash)

	consumed, err := db.RefreshTokens().Consume(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, consumed.ID)
	_, err = db.RefreshTokens().Consume(ctx, id)
	require.ErrorIs(t, err, repository.ErrNotFound)

	for i, h := range []string{"a", "b"} {
		require.NoError(t, db.RefreshTokens().Create(ctx, &repository.RefreshToken{
			ID: uuid.NewString(), UserID: u.ID, TokenHash: h, IssuedAt: now,
			ExpiresAt: now.Add(time.Duration(i+1) * time.Hour),
		}))
	}
	require.NoError(t, db.RefreshTokens().DeleteByHash(ctx, "a"))
	require.ErrorIs(t, db.RefreshTokens().DeleteByHash(ctx, "a"), repository.ErrNotFound)

	n, err := db.RefreshTokens().DeleteByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func testActionTokens(t *testing.T, db store.AdapterConnection) {
	ctx := context.Background()
	a := mustUser(t, db, "a@example.com", "+1000")
	b := mustUser(t, db, "b@example.com", "+2000")
	now := time.Now().UTC().Truncate(time.Millisecond)

	mk := func(user *repository.User, typ repository.ActionType, hash string, ttl time.Duration) *repository.ActionToken {
		tok := &repository.ActionToken{ID: uuid.NewString(), UserID: user.ID, Type: typ, TokenHash: hash, ExpiresAt: now.Add(ttl), CreatedAt: now}
		require.NoError(t, db.ActionTokens().Create(ctx, tok))
		return tok
	}

	// dos usuarios pueden recibir el mismo código SMS
	ta := mk(a, repository.ActionSMSVerification, "123456", 10*time.Minute)
	tb := mk(b, repository.ActionSMSVerification, "123456", 10*time.Minute)

	got, err := db.ActionTokens().FindUnused(ctx, "123456", repository.ActionSMSVerification, b.ID)
	require.NoError(t, err)
	require.Equal(t, tb.ID, got.ID)

	_, err = db.ActionTokens().FindUnused(ctx, "123456", repository.ActionEmailVerification, "")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, db.ActionTokens().MarkUsed(ctx, ta.ID, now))
	require.ErrorIs(t, db.ActionTokens().MarkUsed(ctx, ta.ID, now), repository.ErrAlreadyUsed)
	_, err = db.ActionTokens().FindUnused(ctx, "123456", repository.ActionSMSVerification, a.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.ErrorIs(t, db.ActionTokens().MarkUsed(ctx, tb.ID, now.Add(11*time.Minute)), repository.ErrAlreadyUsed)

	mk(a, repository.ActionPasswordReset, "r1", time.Hour)
	mk(a, repository.ActionPasswordReset, "r2", time.Hour)
	n, err := db.ActionTokens().DeleteByUserAndType(ctx, a.ID, repository.ActionPasswordReset)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = db.ActionTokens().DeleteExpired(ctx, now.Add(30*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func testTxRollback(t *testing.T, db store.AdapterConnection) {
	ctx := context.Background()
	u := mustUser(t, db, "tx@example.com", "")
	boom := errors.New("boom")

	err := db.InTx(ctx, func(tx store.Repositories) error {
		if err := tx.Users().SetEmailVerified(ctx, u.ID, true); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := db.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, got.EmailVerified)

	require.NoError(t, db.InTx(ctx, func(tx store.Repositories) error {
		return tx.Users().SetEmailVerified(ctx, u.ID, true)
	}))
	got, err = db.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)
}

// Una escritura hecha fuera de la transacción mientras ésta está abierta
// sobrevive al rollback.
func testTxRollbackKeepsOutsideWrites(t *testing.T, db store.AdapterConnection) {
	ctx := context.Background()
	u := mustUser(t, db, "outside@example.com", "")
	now := time.Now().UTC()
	require.NoError(t, db.AuthCodes().Create(ctx, newCode(u.ID, "outside", now, time.Minute)))
	boom := errors.New("boom")

	inside := make(chan struct{})
	outsideDone := make(chan error, 1)
	go func() {
		<-inside
		outsideDone <- db.AuthCodes().MarkUsed(ctx, "outside", now)
	}()

	err := db.InTx(ctx, func(tx store.Repositories) error {
		if err := tx.Users().SetEmailVerified(ctx, u.ID, true); err != nil {
			return err
		}
		close(inside)
		// según el adapter la escritura externa corre ahora o espera al rollback
		select {
		case err := <-outsideDone:
			outsideDone <- err
		case <-time.After(100 * time.Millisecond):
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, <-outsideDone)

	got, err := db.AuthCodes().GetByHash(ctx, "outside")
	require.NoError(t, err)
	require.True(t, got.Used)
	require.ErrorIs(t, db.AuthCodes().MarkUsed(ctx, "outside", now), repository.ErrAlreadyUsed)

	user, err := db.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, user.EmailVerified)
}
