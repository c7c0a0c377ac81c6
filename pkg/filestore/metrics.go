package filestore

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/sessfile-go/pkg/session"
)

// Operation results reported in the "result" label.
const (
	resultOK         = "ok"
	resultAbsent     = "absent"
	resultExpired    = "expired"
	resultInvalidID  = "invalid_id"
	resultConflict   = "conflict"
	resultCorrupt    = "corrupt"
	resultEncode     = "encode_error"
	resultIO         = "io_error"
	resultCanceled   = "canceled"
	resultOtherError = "error"
)

// Purge reasons reported in the "reason" label.
const (
	reasonExpired = "expired"
	reasonCorrupt = "corrupt"
	reasonLazy    = "lazy"
	reasonTemp    = "temp"
)

type storeMetrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	purged   *prometheus.CounterVec
}

// newStoreMetrics builds the store collectors and registers them on reg.
// Stores for different directories may share a registry; they are told
// apart by the "dir" constant label. Registering the same directory twice
// reuses the existing collectors.
func newStoreMetrics(reg prometheus.Registerer, dir string) (*storeMetrics, error) {
	labels := prometheus.Labels{"dir": dir}
	m := &storeMetrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "sessfile",
			Subsystem:   "store",
			Name:        "operations_total",
			Help:        "Session store operations by operation and result",
			ConstLabels: labels,
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "sessfile",
			Subsystem:   "store",
			Name:        "operation_duration_seconds",
			Help:        "Session store operation latency",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),
		purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "sessfile",
			Subsystem:   "store",
			Name:        "purged_total",
			Help:        "Files removed by expiry, corruption or temp cleanup",
			ConstLabels: labels,
		}, []string{"reason"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.ops, err = register(reg, m.ops); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.purged, err = register(reg, m.purged); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *storeMetrics) observe(op string, start time.Time, result string) {
	m.ops.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *storeMetrics) purge(reason string, n int) {
	if n > 0 {
		m.purged.WithLabelValues(reason).Add(float64(n))
	}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resultCanceled
	case errors.Is(err, session.ErrInvalidID):
		return resultInvalidID
	case errors.Is(err, session.ErrIDConflict):
		return resultConflict
	case errors.Is(err, session.ErrCorrupt):
		return resultCorrupt
	case errors.Is(err, session.ErrEncode):
		return resultEncode
	case errors.Is(err, session.ErrIO):
		return resultIO
	default:
		return resultOtherError
	}
}
