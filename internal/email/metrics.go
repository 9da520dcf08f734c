package email

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "email_deliveries_total",
	Help: "Delivery attempts by provider and outcome (sent|failed)",
}, []string{"provider", "outcome"})

func observeOutcome(o Outcome) {
	result := "sent"
	if !o.Sent {
		result = "failed"
	}
	deliveriesTotal.WithLabelValues(string(o.Provider), result).Inc()
}
