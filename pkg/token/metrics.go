package token

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_token_refreshes_total",
			Help: "Total identity-check refresh attempts by result (rotated, unchanged, failed)",
		},
		[]string{"result"},
	)

	refreshScheduled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_token_refresh_scheduled",
			Help: "Whether a proactive refresh timer is currently armed (0 or 1)",
		},
	)
)
