// Package clock abstrae la hora actual para poder fijarla en tests.
package clock

import (
	"sync"
	"time"
)

// Clock devuelve la hora actual.
type Clock interface {
	Now() time.Time
}

// System usa time.Now en UTC.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed es un reloj manual, seguro para uso concurrente.
type Fixed struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixed crea un reloj detenido en t.
func NewFixed(t time.Time) *Fixed { return &Fixed{t: t.UTC()} }

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

// Advance mueve el reloj d hacia adelante.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// Set fija el reloj en t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.t = t.UTC()
	f.mu.Unlock()
}
