package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricOperationsTotal         = "agrimarket_operations_total"
	MetricOperationFailuresTotal  = "agrimarket_operation_failures_total"
	MetricOperationLatency        = "agrimarket_operation_latency_ms"
	MetricIntegrityViolationsTotal = "agrimarket_integrity_violations_total"
	MetricForcedRefreshesTotal    = "agrimarket_forced_refreshes_total"
	MetricListingsActive          = "agrimarket_listings_active"
	MetricBidsPending             = "agrimarket_bids_pending"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	OperationsTotal          metric.Int64Counter
	OperationFailuresTotal   metric.Int64Counter
	OperationLatency         metric.Float64Histogram
	IntegrityViolationsTotal metric.Int64Counter
	ForcedRefreshesTotal     metric.Int64Counter
	ListingsActive           metric.Int64ObservableGauge
	BidsPending              metric.Int64ObservableGauge

	// State for observable gauges
	mu              sync.RWMutex
	activeListings  map[string]int64 // owner -> listed count
	pendingBids     map[string]int64 // listing -> pending count
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			activeListings: make(map[string]int64),
			pendingBids:    make(map[string]int64),
		}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.OperationsTotal, err = meter.Int64Counter(MetricOperationsTotal,
		metric.WithDescription("Total lifecycle operations issued, by operation and outcome"))
	if err != nil {
		return err
	}

	m.OperationFailuresTotal, err = meter.Int64Counter(MetricOperationFailuresTotal,
		metric.WithDescription("Total lifecycle operations that failed, by operation and kind"))
	if err != nil {
		return err
	}

	m.OperationLatency, err = meter.Float64Histogram(MetricOperationLatency,
		metric.WithDescription("Latency of marketplace service calls"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.IntegrityViolationsTotal, err = meter.Int64Counter(MetricIntegrityViolationsTotal,
		metric.WithDescription("Total post-reconciliation invariant violations detected"))
	if err != nil {
		return err
	}

	m.ForcedRefreshesTotal, err = meter.Int64Counter(MetricForcedRefreshesTotal,
		metric.WithDescription("Total resynchronizing refreshes triggered by violations"))
	if err != nil {
		return err
	}

	m.ListingsActive, err = meter.Int64ObservableGauge(MetricListingsActive,
		metric.WithDescription("Number of listings currently in listed state"),
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for owner, n := range m.activeListings {
				obs.Observe(n, metric.WithAttributes(attribute.String("owner", owner)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.BidsPending, err = meter.Int64ObservableGauge(MetricBidsPending,
		metric.WithDescription("Number of pending bids per listing"),
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for listing, n := range m.pendingBids {
				obs.Observe(n, metric.WithAttributes(attribute.String("listing", listing)))
			}
			return nil
		}))
	return err
}

// SetActiveListings updates the listed-listing gauge for an owner
func (m *MetricsHolder) SetActiveListings(ownerID string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeListings[ownerID] = n
}

// SetPendingBids updates the pending-bid gauge for a listing
func (m *MetricsHolder) SetPendingBids(listingID string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingBids[listingID] = n
}

// RecordOperation counts one completed operation with its outcome
func (m *MetricsHolder) RecordOperation(ctx context.Context, op, outcome string) {
	if m.OperationsTotal == nil {
		return
	}
	m.OperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}
