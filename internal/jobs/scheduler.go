// Package jobs corre tareas periódicas in-process (limpieza de tokens expirados).
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/dropDatabas3/authority/internal/observability/logger"
)

// Cleaner es lo que ejecuta el job de limpieza.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// Scheduler envuelve un cron.Cron con logging zap.
type Scheduler struct {
	c   *cron.Cron
	log *zap.Logger
}

func NewScheduler() *Scheduler {
	log := logger.L().With(logger.Component("jobs"))
	return &Scheduler{
		c:   cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log}))),
		log: log,
	}
}

// AddCleanup agenda cl.CleanupExpired con una expresión cron estándar o un descriptor @every.
func (s *Scheduler) AddCleanup(spec string, cl Cleaner, timeout time.Duration) error {
	_, err := s.c.AddFunc(spec, func() { RunCleanup(context.Background(), cl, timeout) })
	if err != nil {
		return fmt.Errorf("jobs: schedule cleanup %q: %w", spec, err)
	}
	s.log.Info("cleanup job scheduled", logger.String("schedule", spec))
	return nil
}

// Run arranca el cron y bloquea hasta que ctx se cancela; espera a los jobs en curso.
func (s *Scheduler) Run(ctx context.Context) error {
	s.c.Start()
	<-ctx.Done()
	<-s.c.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

// RunCleanup ejecuta una pasada de limpieza con timeout y la loguea.
func RunCleanup(ctx context.Context, cl Cleaner, timeout time.Duration) (int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	n, err := cl.CleanupExpired(ctx)
	log := logger.From(ctx).With(logger.Component("jobs"), logger.Op("cleanup"))
	if err != nil {
		log.Error("cleanup failed", logger.Err(err))
		return n, err
	}
	log.Info("cleanup done", logger.Count(n), logger.Duration(time.Since(start)))
	return n, nil
}

// cronLogger adapta zap a cron.Logger.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, kv ...any) { c.l.Sugar().Debugw(msg, kv...) }
func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Sugar().Errorw(msg, append(kv, "error", err)...)
}
