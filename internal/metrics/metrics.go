package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "thresholdcore"

// Metrics of a key generation session. All collectors carry the instance id as constant label.
type Metrics struct {
	MessagesHandled *prometheus.CounterVec // by message type
	Faults          *prometheus.CounterVec // by fault kind
	FinishedDealers prometheus.Gauge
	Confirmations   prometheus.Gauge
	Phase           prometheus.Gauge
}

func New(registerer prometheus.Registerer, instanceID string) (*Metrics, error) {
	labels := prometheus.Labels{"instance_id": instanceID}
	m := &Metrics{
		prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "keygen",
			Name:        "messages_handled_total",
			Help:        "Number of key generation messages accepted, by message type.",
			ConstLabels: labels,
		}, []string{"type"}),
		prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "keygen",
			Name:        "faults_total",
			Help:        "Number of rejected key generation messages, by fault kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "keygen",
			Name:        "finished_dealers",
			Help:        "Number of dealers the local player considers finished.",
			ConstLabels: labels,
		}),
		prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "keygen",
			Name:        "confirmations",
			Help:        "Number of confirm messages received.",
			ConstLabels: labels,
		}),
		prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "keygen",
			Name:        "phase",
			Help:        "Current phase of the session, see dkg.Phase.",
			ConstLabels: labels,
		}),
	}

	var err error
	if m.MessagesHandled, err = register(registerer, m.MessagesHandled); err != nil {
		return nil, err
	}
	if m.Faults, err = register(registerer, m.Faults); err != nil {
		return nil, err
	}
	if m.FinishedDealers, err = register(registerer, m.FinishedDealers); err != nil {
		return nil, err
	}
	if m.Confirmations, err = register(registerer, m.Confirmations); err != nil {
		return nil, err
	}
	if m.Phase, err = register(registerer, m.Phase); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to the registerer. If an identical collector is already registered, e.g., by a previous session of
// the same instance, that collector is returned instead.
func register[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	err := registerer.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	var zero C
	return zero, err
}
