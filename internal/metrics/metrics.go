package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// WebhookEvents counts inbound platform webhooks by outcome.
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_events_total", Help: "Inbound webhook deliveries by outcome."},
		[]string{"outcome"},
	)

	// ShipmentsCreated counts carrier shipments registered, by courier.
	ShipmentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "shipments_created_total", Help: "Carrier shipments created, by courier."},
		[]string{"courier"},
	)

	// CarrierRequests counts outbound carrier API calls by operation and outcome.
	CarrierRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "carrier_requests_total", Help: "Outbound carrier API calls by operation and outcome."},
		[]string{"op", "outcome"},
	)

	// StatusChecks counts worker status polls by outcome.
	StatusChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "status_checks_total", Help: "Shipment status polls by outcome."},
		[]string{"outcome"},
	)

	// GeoCacheHits counts geo code lookups served from cache vs the carrier.
	GeoCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "geo_cache_lookups_total", Help: "Geo code lookups by source (cache, carrier)."},
		[]string{"source"},
	)
)

var regOnce sync.Once

// Register registers all collectors on the service registry, once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(WebhookEvents)
		Registry.MustRegister(ShipmentsCreated)
		Registry.MustRegister(CarrierRequests)
		Registry.MustRegister(StatusChecks)
		Registry.MustRegister(GeoCacheHits)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
