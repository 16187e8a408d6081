// Package memory implementa un adapter en memoria para desarrollo y tests.
// Una transacción toma el lock de la base durante toda su duración y trabaja
// sobre una copia que sólo se publica si fn no falla.
package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/authority/internal/domain/repository"
	"github.com/dropDatabas3/authority/internal/store"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	return New(), nil
}

// state es el contenido completo de la base en memoria.
type state struct {
	users   map[string]*repository.User
	codes   map[string]*repository.AuthorizationCode
	refresh map[string]*repository.RefreshToken
	actions map[string]*repository.ActionToken
}

func newState() *state {
	return &state{
		users:   map[string]*repository.User{},
		codes:   map[string]*repository.AuthorizationCode{},
		refresh: map[string]*repository.RefreshToken{},
		actions: map[string]*repository.ActionToken{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = cloneUser(v)
	}
	for k, v := range s.codes {
		cp := *v
		c.codes[k] = &cp
	}
	for k, v := range s.refresh {
		cp := *v
		c.refresh[k] = &cp
	}
	for k, v := range s.actions {
		cp := *v
		c.actions[k] = &cp
	}
	return c
}

// Conn es una conexión en memoria. Implementa store.AdapterConnection.
type Conn struct {
	mu sync.Mutex
	st *state
}

// New crea una base vacía.
func New() *Conn {
	return &Conn{st: newState()}
}

func (c *Conn) Name() string                   { return "memory" }
func (c *Conn) Ping(ctx context.Context) error { return nil }
func (c *Conn) Close() error                   { return nil }

func (c *Conn) Users() repository.UserRepository                  { return &userRepo{db: c} }
func (c *Conn) AuthCodes() repository.AuthorizationCodeRepository { return &codeRepo{db: c} }
func (c *Conn) RefreshTokens() repository.RefreshTokenRepository  { return &refreshRepo{db: c} }
func (c *Conn) ActionTokens() repository.ActionTokenRepository    { return &actionRepo{db: c} }

// InTx retiene c.mu hasta terminar: ninguna escritura externa se intercala
// con la transacción. fn no debe usar c directamente (deadlock), sólo tx.
func (c *Conn) InTx(ctx context.Context, fn func(tx store.Repositories) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	work := &txView{st: c.st.clone()}
	if err := fn(work); err != nil {
		return err
	}
	c.st = work.st
	return nil
}

func (c *Conn) with(fn func(st *state) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.st)
}

// database es lo que usan los repos: la conexión o una transacción abierta.
type database interface {
	with(fn func(st *state) error) error
}

// txView opera sobre la copia de InTx. El lock ya lo tiene InTx.
type txView struct{ st *state }

func (v *txView) with(fn func(st *state) error) error { return fn(v.st) }

func (v *txView) Users() repository.UserRepository                  { return &userRepo{db: v} }
func (v *txView) AuthCodes() repository.AuthorizationCodeRepository { return &codeRepo{db: v} }
func (v *txView) RefreshTokens() repository.RefreshTokenRepository  { return &refreshRepo{db: v} }
func (v *txView) ActionTokens() repository.ActionTokenRepository    { return &actionRepo{db: v} }
