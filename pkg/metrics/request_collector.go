package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/orthoflow/orthoflow/internal/store"
)

type requestStatsCollector struct {
	store         store.Store
	totalRequests *prometheus.Desc
	totalByStatus *prometheus.Desc
}

func newRequestStatsCollector(s store.Store) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_requests_%s", orthoflow, name)
	}

	return &requestStatsCollector{
		store: s,
		totalRequests: prometheus.NewDesc(
			fqName("total"),
			"Total number of mosaic requests.",
			nil,
			prometheus.Labels{},
		),
		totalByStatus: prometheus.NewDesc(
			fqName("by_status_total"),
			"Total mosaic requests by status. Failures are counted as 'error'.",
			[]string{"status"},
			prometheus.Labels{},
		),
	}
}

// RegisterRequestStatsCollector exposes ledger statistics on the default registry.
func RegisterRequestStatsCollector(s store.Store) {
	prometheus.MustRegister(newRequestStatsCollector(s))
}

func (c *requestStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalRequests
	ch <- c.totalByStatus
}

// Collect implements Collector.
func (c *requestStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.store.Request().Stats(context.Background())
	if err != nil {
		zap.S().Named("request_collector").Errorf("failed to collect request statistics: %s", err)
		return
	}

	var total int64
	for status, count := range stats {
		total += count
		ch <- prometheus.MustNewConstMetric(c.totalByStatus, prometheus.GaugeValue, float64(count), status)
	}
	ch <- prometheus.MustNewConstMetric(c.totalRequests, prometheus.GaugeValue, float64(total))
}
