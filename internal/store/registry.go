// Package store provee el registry de adaptadores de persistencia y el
// contrato DataAccess que consumen los servicios.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/authority/internal/domain/repository"
)

// Repositories agrupa los repositorios del dominio.
type Repositories interface {
	Users() repository.UserRepository
	AuthCodes() repository.AuthorizationCodeRepository
	RefreshTokens() repository.RefreshTokenRepository
	ActionTokens() repository.ActionTokenRepository
}

// DataAccess es lo que necesitan los servicios: repositorios + transacciones.
type DataAccess interface {
	Repositories

	// InTx ejecuta fn dentro de una transacción. Si fn retorna error se hace
	// rollback y el error se propaga sin envolver.
	InTx(ctx context.Context, fn func(tx Repositories) error) error
}

// Adapter representa un driver capaz de abrir conexiones.
type Adapter interface {
	// Name retorna el nombre del adapter ("memory", "postgres", "sqlite").
	Name() string

	// Connect establece conexión con el almacenamiento.
	Connect(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error)
}

// AdapterConnection representa una conexión activa.
type AdapterConnection interface {
	DataAccess

	Name() string
	Ping(ctx context.Context) error
	Close() error
}

// MigratableConnection es implementada por conexiones SQL que aplican el schema embebido.
type MigratableConnection interface {
	Migrate(ctx context.Context) (*MigrationResult, error)
}

// AdapterConfig configuración para conectar a un almacenamiento.
type AdapterConfig struct {
	// Name del adapter: "memory", "postgres", "sqlite".
	Name string

	// DSN connection string (postgres URL o path de archivo sqlite).
	DSN string

	// Pool settings.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// AutoMigrate aplica las migraciones embebidas al conectar.
	AutoMigrate bool
}

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter en el registry global.
// Llamar en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("adapter: %q already registered", name))
	}
	adapters[name] = a
}

// GetAdapter obtiene un adapter por nombre.
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[name]
	return a, ok
}

// ListAdapters retorna los nombres registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenAdapter abre una conexión usando el adapter de la config y, si
// AutoMigrate está activo, aplica las migraciones.
func OpenAdapter(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error) {
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("adapter: %q not registered (available: %v)", cfg.Name, ListAdapters())
	}
	conn, err := a.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if m, ok := conn.(MigratableConnection); ok {
			if _, err := m.Migrate(ctx); err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("adapter %s: migrate: %w", cfg.Name, err)
			}
		}
	}
	return conn, nil
}
