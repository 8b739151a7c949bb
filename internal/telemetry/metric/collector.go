package metric

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreCounts is a point-in-time count of record-store entries.
type StoreCounts struct {
	Tokens             int
	OpenBatches        int
	Premium            int
	PendingRetractions int
}

// CountsFunc samples the record store.
type CountsFunc func(ctx context.Context) (StoreCounts, error)

// Collector exports record-store counts, sampled on every scrape.
type Collector struct {
	counts  CountsFunc
	timeout time.Duration

	tokens      *prometheus.Desc
	openBatches *prometheus.Desc
	premium     *prometheus.Desc
	stored      *prometheus.Desc
	up          *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector over counts.
func NewCollector(counts CountsFunc) *Collector {
	return &Collector{
		counts:  counts,
		timeout: 5 * time.Second,
		tokens: prometheus.NewDesc(namespace+"_store_tokens",
			"Token records in the store.", nil, nil),
		openBatches: prometheus.NewDesc(namespace+"_store_open_batches",
			"Conversations with a batch in progress.", nil, nil),
		premium: prometheus.NewDesc(namespace+"_store_premium_users",
			"Members of the premium set.", nil, nil),
		stored: prometheus.NewDesc(namespace+"_store_retractions",
			"Persisted retractions awaiting their due time.", nil, nil),
		up: prometheus.NewDesc(namespace+"_store_up",
			"Whether the last store sample succeeded.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tokens
	ch <- c.openBatches
	ch <- c.premium
	ch <- c.stored
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	counts, err := c.counts(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.tokens, prometheus.GaugeValue, float64(counts.Tokens))
	ch <- prometheus.MustNewConstMetric(c.openBatches, prometheus.GaugeValue, float64(counts.OpenBatches))
	ch <- prometheus.MustNewConstMetric(c.premium, prometheus.GaugeValue, float64(counts.Premium))
	ch <- prometheus.MustNewConstMetric(c.stored, prometheus.GaugeValue, float64(counts.PendingRetractions))
}
