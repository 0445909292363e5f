package replay

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// metrics counts the work a Reader does. A nil *metrics records nothing.
type metrics struct {
	queries     *prometheus.CounterVec
	resets      prometheus.Counter
	queryErrors *prometheus.CounterVec
	reloads     prometheus.Counter
}

// newMetrics registers the reader's counters with reg, reusing counters that are already
// registered so several readers can share one registry.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}
	queries, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocal_pose_queries_total",
		Help: "Pose queries answered, by query method.",
	}, []string{"method"}))
	if err != nil {
		return nil, err
	}
	resets, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocal_pose_cursor_resets_total",
		Help: "Out of order pose queries that forced the cursor to rescan the log.",
	}))
	if err != nil {
		return nil, err
	}
	queryErrors, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocal_query_errors_total",
		Help: "Failed queries, by operation.",
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	reloads, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocal_position_log_reloads_total",
		Help: "Times the position log was reloaded.",
	}))
	if err != nil {
		return nil, err
	}
	return &metrics{queries: queries, resets: resets, queryErrors: queryErrors, reloads: reloads}, nil
}

func (m *metrics) observeQuery(method string, resetsBefore, resetsAfter int) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(method).Inc()
	if resetsAfter > resetsBefore {
		m.resets.Add(float64(resetsAfter - resetsBefore))
	}
}

func (m *metrics) observeError(operation string) {
	if m == nil {
		return
	}
	m.queryErrors.WithLabelValues(operation).Inc()
}

func (m *metrics) observeReload() {
	if m == nil {
		return
	}
	m.reloads.Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, errors.New("counter already registered with an incompatible type")
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, errors.New("counter vector already registered with an incompatible type")
		}
		return nil, err
	}
	return vec, nil
}
