// Package metrics define las métricas Prometheus del servidor. Vive aparte
// para que services y http puedan usarlas sin ciclos de import.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	GrantsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_grants_total",
		Help: "Grants procesados en /oauth2/token por tipo y resultado",
	}, []string{"grant_type", "result"})

	CodeRedemptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_code_redemptions_total",
		Help: "Canjes de authorization code por resultado",
	}, []string{"result"})

	ActionTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_action_tokens_total",
		Help: "Operaciones de action tokens por acción y resultado",
	}, []string{"action", "result"})

	CleanupDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authority_cleanup_deleted_total",
		Help: "Registros expirados eliminados por el job de limpieza",
	})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authority_http_request_duration_seconds",
		Help:    "Latencia de requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		GrantsTotal,
		CodeRedemptionsTotal,
		ActionTokensTotal,
		CleanupDeletedTotal,
		HTTPRequestDuration,
	}
}

// Register registra las métricas en reg (o en el default si es nil).
// Registrar dos veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
