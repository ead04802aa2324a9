// Package metrics implements a record backend that delegates to a nested backend,
// counting and timing operations with Prometheus collectors.
package metrics

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/store"
)

var _ hashio.Backend = &Store{}

// Store wraps a backend with Prometheus metrics.
type Store struct {
	s hashio.Backend

	ops     *prometheus.CounterVec // labels: op, result
	latency *prometheus.SummaryVec // labels: op
	added   prometheus.Counter
	bytes   prometheus.Counter
}

// New wraps s.
// The collectors are registered with reg.
func New(s hashio.Backend, reg prometheus.Registerer) (*Store, error) {
	m := &Store{
		s: s,
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hashio_backend_ops_total",
				Help: "backend operations by kind and result",
			},
			[]string{"op", "result"},
		),
		latency: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name: "hashio_backend_latency_seconds",
				Help: "backend operation latency",
			},
			[]string{"op"},
		),
		added: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hashio_records_added_total",
			Help: "records newly written",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hashio_bytes_added_total",
			Help: "bytes of newly written records",
		}),
	}
	for _, c := range []prometheus.Collector{m.ops, m.latency, m.added, m.bytes} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering collector")
		}
	}
	return m, nil
}

func (s *Store) observe(op string, start time.Time, err error) {
	s.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	result := "ok"
	switch {
	case errors.Is(err, hashio.ErrNotFound):
		result = "notfound"
	case err != nil:
		result = "error"
	}
	s.ops.WithLabelValues(op, result).Inc()
}

func (s *Store) Get(ctx context.Context, h hashio.Hash) ([]byte, error) {
	start := time.Now()
	data, err := s.s.Get(ctx, h)
	s.observe("get", start, err)
	return data, err
}

func (s *Store) Has(ctx context.Context, h hashio.Hash) (bool, error) {
	start := time.Now()
	ok, err := s.s.Has(ctx, h)
	s.observe("has", start, err)
	return ok, err
}

func (s *Store) Put(ctx context.Context, data []byte) (hashio.Hash, bool, error) {
	start := time.Now()
	h, added, err := s.s.Put(ctx, data)
	s.observe("put", start, err)
	if added {
		s.added.Inc()
		s.bytes.Add(float64(len(data)))
	}
	return h, added, err
}

func (s *Store) ListHashes(ctx context.Context, start hashio.Hash, f func(hashio.Hash) error) error {
	t := time.Now()
	err := s.s.ListHashes(ctx, start, f)
	s.observe("list", t, err)
	return err
}

func init() {
	store.Register("metrics", func(ctx context.Context, conf map[string]interface{}) (hashio.Backend, error) {
		nested, ok := conf["nested"].(map[string]interface{})
		if !ok {
			return nil, errors.New(`missing "nested" parameter`)
		}
		nestedType, ok := nested["type"].(string)
		if !ok {
			return nil, errors.New(`"nested" parameter missing "type"`)
		}
		nestedStore, err := store.Create(ctx, nestedType, nested)
		if err != nil {
			return nil, errors.Wrap(err, "creating nested store")
		}
		reg, ok := conf["registerer"].(prometheus.Registerer)
		if !ok {
			reg = prometheus.DefaultRegisterer
		}
		return New(nestedStore, reg)
	})
}
