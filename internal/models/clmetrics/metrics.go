package clmetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// événements analytics enregistrés, par type (page, blog, project, event)
	TrackedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "littlefolio_tracked_total",
			Help: "Nombre d'événements analytics enregistrés",
		},
		[]string{"kind"},
	)

	BotsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "littlefolio_bots_skipped_total",
			Help: "Nombre de requêtes de robots ignorées",
		},
		[]string{"kind"},
	)

	VisitorsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "littlefolio_visitors_created_total",
			Help: "Nombre de nouveaux visiteurs",
		},
	)

	GeoLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "littlefolio_geo_lookups_total",
			Help: "Résolutions de géolocalisation par provider et résultat",
		},
		[]string{"provider", "result"},
	)

	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "littlefolio_auth_failures_total",
			Help: "Échecs d'authentification admin",
		},
		[]string{"reason"},
	)

	RetentionDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "littlefolio_retention_deleted_total",
			Help: "Lignes supprimées par la purge quotidienne",
		},
		[]string{"table"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "littlefolio_http_request_duration_seconds",
			Help:    "Durée des requêtes HTTP",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unknown"
	}
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
