package verification

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/clock"
	"github.com/dropDatabas3/authority/internal/domain/repository"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/security/password"
	tokens "github.com/dropDatabas3/authority/internal/security/token"
	"github.com/dropDatabas3/authority/internal/store/adapters/memory"
)

type sentMsg struct {
	kind string
	to   string
	link string
	body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []sentMsg
}

func (f *fakeNotifier) add(m sentMsg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
}

func (f *fakeNotifier) SendEmailVerification(_ context.Context, to, _, link string, _ time.Duration) {
	f.add(sentMsg{kind: "verify", to: to, link: link})
}

func (f *fakeNotifier) SendPasswordReset(_ context.Context, to, _, link string, _ time.Duration) {
	f.add(sentMsg{kind: "reset", to: to, link: link})
}

func (f *fakeNotifier) SendWelcome(_ context.Context, to, _ string) {
	f.add(sentMsg{kind: "welcome", to: to})
}

func (f *fakeNotifier) SendSMS(_ context.Context, phone, body string) {
	f.add(sentMsg{kind: "sms", to: phone, body: body})
}

func (f *fakeNotifier) last(t *testing.T, kind string) sentMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].kind == kind {
			return f.msgs[i]
		}
	}
	t.Fatalf("no %s message sent", kind)
	return sentMsg{}
}

func (f *fakeNotifier) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if m.kind == kind {
			n++
		}
	}
	return n
}

// fixedRandom produce siempre el mismo código numérico; los ids siguen siendo aleatorios.
type fixedRandom struct{ n int }

func (r fixedRandom) Bytes(n int) ([]byte, error) { return tokens.NewCryptoSource().Bytes(n) }
func (r fixedRandom) Intn(int) (int, error)       { return r.n, nil }

type testEnv struct {
	db     *memory.Conn
	clk    *clock.Fixed
	hasher *password.Argon2id
	notif  *fakeNotifier
	svc    *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := memory.New()
	clk := clock.NewFixed(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))
	key, err := jwtx.GenerateKey()
	require.NoError(t, err)
	signer, err := jwtx.NewSigner("https://auth.example.com", key, clk)
	require.NoError(t, err)
	hasher := password.NewArgon2id(password.Params{Memory: 1024, Time: 1})
	notif := &fakeNotifier{}

	svc := NewService(Deps{
		DAL:             db,
		Signer:          signer,
		Hasher:          hasher,
		Random:          fixedRandom{n: 42},
		Clock:           clk,
		Notifier:        notif,
		FrontendBaseURL: "https://app.example.com/",
	})
	return &testEnv{db: db, clk: clk, hasher: hasher, notif: notif, svc: svc}
}

func (e *testEnv) createUser(t *testing.T, email, phone string) *repository.User {
	t.Helper()
	u, err := e.db.Users().Create(context.Background(), repository.CreateUserInput{Email: email, Phone: phone, GivenName: "Test"})
	require.NoError(t, err)
	return u
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestEmailVerification_SingleUse(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "ana@example.com", "")

	require.NoError(t, e.svc.StartEmailVerification(ctx, u))
	msg := e.notif.last(t, "verify")
	require.True(t, strings.HasPrefix(msg.link, "https://app.example.com/verify-email?email=ana%40example.com&token="))
	token := tokenFromLink(t, msg.link)

	require.False(t, e.svc.VerifyEmail(ctx, "other@example.com", token))
	require.True(t, e.svc.VerifyEmail(ctx, "ANA@example.com", token))
	require.False(t, e.svc.VerifyEmail(ctx, "ana@example.com", token))

	got, err := e.db.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)
}

func TestEmailVerification_TTLBoundary(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "ana@example.com", "")

	require.NoError(t, e.svc.StartEmailVerification(ctx, u))
	token := tokenFromLink(t, e.notif.last(t, "verify").link)
	e.clk.Advance(24*time.Hour - time.Second)
	require.True(t, e.svc.VerifyEmail(ctx, "ana@example.com", token))

	require.NoError(t, e.svc.StartEmailVerification(ctx, u))
	token = tokenFromLink(t, e.notif.last(t, "verify").link)
	e.clk.Advance(24*time.Hour + time.Second)
	require.False(t, e.svc.VerifyEmail(ctx, "ana@example.com", token))
}

func TestEmailVerification_RestartInvalidatesPrevious(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "ana@example.com", "")

	require.NoError(t, e.svc.StartEmailVerification(ctx, u))
	first := tokenFromLink(t, e.notif.last(t, "verify").link)
	e.clk.Advance(time.Second)
	require.NoError(t, e.svc.StartEmailVerification(ctx, u))
	second := tokenFromLink(t, e.notif.last(t, "verify").link)
	require.NotEqual(t, first, second)

	require.False(t, e.svc.VerifyEmail(ctx, "ana@example.com", first))
	require.True(t, e.svc.VerifyEmail(ctx, "ana@example.com", second))
}

func TestEmailVerification_RejectsResetToken(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.createUser(t, "ana@example.com", "")

	e.svc.StartPasswordReset(ctx, "ana@example.com")
	token := tokenFromLink(t, e.notif.last(t, "reset").link)
	require.False(t, e.svc.VerifyEmail(ctx, "ana@example.com", token))
	require.False(t, e.svc.VerifyEmail(ctx, "ana@example.com", "garbage"))
}

func TestSmsVerification_ScopedToUser(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a := e.createUser(t, "a@example.com", "+5491100000001")
	e.createUser(t, "b@example.com", "+5491100000002")

	require.NoError(t, e.svc.StartSmsVerification(ctx, a))
	msg := e.notif.last(t, "sms")
	require.Equal(t, "+5491100000001", msg.to)
	require.Contains(t, msg.body, "000042")

	require.False(t, e.svc.VerifyPhone(ctx, "+5491100000002", "000042"))
	require.False(t, e.svc.VerifyPhone(ctx, "+5491100000001", "000043"))
	require.True(t, e.svc.VerifyPhone(ctx, "+5491100000001", "000042"))
	require.False(t, e.svc.VerifyPhone(ctx, "+5491100000001", "000042"))

	got, err := e.db.Users().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.PhoneVerified)
}

func TestSmsVerification_ExpiryAndMissingPhone(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a := e.createUser(t, "a@example.com", "+5491100000001")
	noPhone := e.createUser(t, "c@example.com", "")

	require.ErrorIs(t, e.svc.StartSmsVerification(ctx, noPhone), ErrInvalidState)

	// vigente justo en el vencimiento, vencido un instante después
	require.NoError(t, e.svc.StartSmsVerification(ctx, a))
	e.clk.Advance(10 * time.Minute)
	require.True(t, e.svc.VerifyPhone(ctx, "+5491100000001", "000042"))

	require.NoError(t, e.svc.StartSmsVerification(ctx, a))
	e.clk.Advance(10*time.Minute + time.Second)
	require.False(t, e.svc.VerifyPhone(ctx, "+5491100000001", "000042"))
}

// concurrently corre fn en n goroutines y devuelve cuántas retornaron true.
func concurrently(n int, fn func() bool) int32 {
	var ok atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if fn() {
				ok.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	return ok.Load()
}

func TestVerifyEmail_ConcurrentExactlyOneWins(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "ana@example.com", "")

	require.NoError(t, e.svc.StartEmailVerification(ctx, u))
	token := tokenFromLink(t, e.notif.last(t, "verify").link)

	wins := concurrently(16, func() bool { return e.svc.VerifyEmail(ctx, "ana@example.com", token) })
	require.EqualValues(t, 1, wins)

	got, err := e.db.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)
}

func TestVerifyPhone_ConcurrentExactlyOneWins(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "ana@example.com", "+5491100000001")

	require.NoError(t, e.svc.StartSmsVerification(ctx, u))
	wins := concurrently(16, func() bool { return e.svc.VerifyPhone(ctx, "+5491100000001", "000042") })
	require.EqualValues(t, 1, wins)

	got, err := e.db.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.PhoneVerified)
}

func TestCompletePasswordReset_ConcurrentExactlyOneWins(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.createUser(t, "ana@example.com", "")

	e.svc.StartPasswordReset(ctx, "ana@example.com")
	token := tokenFromLink(t, e.notif.last(t, "reset").link)
	wins := concurrently(8, func() bool {
		return e.svc.CompletePasswordReset(ctx, "ana@example.com", token, "N3w-password!")
	})
	require.EqualValues(t, 1, wins)
}

func TestPasswordReset(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "ana@example.com", "")
	require.NoError(t, e.db.RefreshTokens().Create(ctx, &repository.RefreshToken{
		ID: "3f0c1a52-6f5b-4c1e-9d7a-2b7c4f1e8a90", UserID: u.ID, TokenHash: "h1",
		IssuedAt: e.clk.Now(), ExpiresAt: e.clk.Now().Add(time.Hour),
	}))

	e.svc.StartPasswordReset(ctx, "nobody@example.com")
	require.Equal(t, 0, e.notif.count("reset"))

	e.svc.StartPasswordReset(ctx, "ana@example.com")
	msg := e.notif.last(t, "reset")
	require.True(t, strings.HasPrefix(msg.link, "https://app.example.com/reset-password?"))
	token := tokenFromLink(t, msg.link)

	require.True(t, e.svc.CompletePasswordReset(ctx, "ana@example.com", token, "N3w-password!"))
	require.False(t, e.svc.CompletePasswordReset(ctx, "ana@example.com", token, "Other-passw0rd"))

	got, err := e.db.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, e.hasher.Verify("N3w-password!", got.PasswordHash))
	require.True(t, got.HasProvider(repository.ProviderLocal))

	_, err = e.db.RefreshTokens().GetByID(ctx, "3f0c1a52-6f5b-4c1e-9d7a-2b7c4f1e8a90")
	require.True(t, repository.IsNotFound(err))
}

func TestResendVerification(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "ana@example.com", "")

	require.ErrorIs(t, e.svc.ResendVerification(ctx, "nobody@example.com", repository.ActionEmailVerification), ErrUserNotFound)
	require.ErrorIs(t, e.svc.ResendVerification(ctx, "ana@example.com", repository.ActionSMSVerification), ErrInvalidState)
	require.ErrorIs(t, e.svc.ResendVerification(ctx, "ana@example.com", repository.ActionPasswordReset), ErrInvalidState)

	require.NoError(t, e.svc.ResendVerification(ctx, "ana@example.com", repository.ActionEmailVerification))
	require.Equal(t, 1, e.notif.count("verify"))

	require.NoError(t, e.db.Users().SetEmailVerified(ctx, u.ID, true))
	require.ErrorIs(t, e.svc.ResendVerification(ctx, "ana@example.com", repository.ActionEmailVerification), ErrAlreadyVerified)
}

func TestCleanupExpired(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a := e.createUser(t, "a@example.com", "+5491100000001")
	b := e.createUser(t, "b@example.com", "")

	require.NoError(t, e.svc.StartSmsVerification(ctx, a))  // vence en 10m
	require.NoError(t, e.svc.StartEmailVerification(ctx, b)) // vence en 24h

	e.clk.Advance(11 * time.Minute)
	n, err := e.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	token := tokenFromLink(t, e.notif.last(t, "verify").link)
	require.True(t, e.svc.VerifyEmail(ctx, "b@example.com", token))
}

type brokenRandom struct{}

func (brokenRandom) Bytes(int) ([]byte, error) { return nil, tokens.ErrRandomUnavailable }
func (brokenRandom) Intn(int) (int, error)     { return 0, tokens.ErrRandomUnavailable }

func TestStart_UsesInjectedRandom(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := e.createUser(t, "ana@example.com", "+5491100000001")
	key, err := jwtx.GenerateKey()
	require.NoError(t, err)
	signer, err := jwtx.NewSigner("https://auth.example.com", key, e.clk)
	require.NoError(t, err)
	svc := NewService(Deps{DAL: e.db, Signer: signer, Hasher: e.hasher, Random: brokenRandom{}, Clock: e.clk, Notifier: e.notif})

	require.ErrorIs(t, svc.StartEmailVerification(ctx, u), tokens.ErrRandomUnavailable)
	require.ErrorIs(t, svc.StartSmsVerification(ctx, u), tokens.ErrRandomUnavailable)
	require.Equal(t, 0, e.notif.count("verify"))
	require.Equal(t, 0, e.notif.count("sms"))
}
