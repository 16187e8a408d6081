// Package repository define las entidades y contratos de persistencia del dominio.
//
// Las implementaciones viven en internal/store/adapters (memory, postgres, sqlite).
//
// Convenciones:
//   - Context siempre es el primer parámetro.
//   - Las operaciones "marcar como usado" son condicionales y atómicas: si otra
//     request ganó la carrera devuelven ErrAlreadyUsed.
//   - La hora se recibe como parámetro (now) para que el servicio controle el reloj.
//   - Errores de dominio en errors.go.
package repository
