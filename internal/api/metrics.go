package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipe_client",
			Name:      "requests_total",
			Help:      "Backend calls by method and final status (\"error\" for transport failures).",
		},
		[]string{"method", "status"},
	)

	reauthTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipe_client",
			Name:      "reauth_total",
			Help:      "Session renewals triggered by a 403, by outcome.",
		},
		[]string{"outcome"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recipe_client",
			Name:      "retries_total",
			Help:      "Transient retries by reason (status code or \"transport\").",
		},
		[]string{"reason"},
	)
)
