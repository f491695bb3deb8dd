package stats

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/labstore-backend/pkg/logger"
)

const namespace = "labstore"

// Collector exposes a fresh Summary on every scrape.
type Collector struct {
	svc     Service
	timeout time.Duration
	logg    *logger.Logger

	total    *prometheus.Desc
	byStatus *prometheus.Desc
	revenue  *prometheus.Desc
	average  *prometheus.Desc
}

// NewCollector builds a collector; register it with a prometheus.Registerer.
func NewCollector(svc Service, timeout time.Duration, logg *logger.Logger) *Collector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Collector{
		svc:      svc,
		timeout:  timeout,
		logg:     logg,
		total:    prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "orders_total"), "Orders currently stored.", nil, nil),
		byStatus: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "orders_by_status"), "Orders currently stored per status.", []string{"status"}, nil),
		revenue:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "orders_revenue_fcfa"), "Sum of order totals in FCFA.", nil, nil),
		average:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "orders_average_value_fcfa"), "Average order total in FCFA.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.byStatus
	ch <- c.revenue
	ch <- c.average
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	summary, err := c.svc.Summary(ctx)
	if err != nil {
		c.logg.Error(ctx, "stats.collect_failed", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(summary.TotalOrders))
	for status, count := range summary.ByStatus {
		ch <- prometheus.MustNewConstMetric(c.byStatus, prometheus.GaugeValue, float64(count), string(status))
	}
	ch <- prometheus.MustNewConstMetric(c.revenue, prometheus.GaugeValue, float64(summary.TotalRevenue))
	ch <- prometheus.MustNewConstMetric(c.average, prometheus.GaugeValue, float64(summary.AverageOrderValue))
}
