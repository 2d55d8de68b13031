package registry

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/caraveld/caravel"
	caravelmetrics "github.com/caraveld/caravel/metrics"
)

type instrumentedStore struct {
	s               Store
	RequestDuration metrics.Histogram
}

func Instrument(s Store) Store {
	return &instrumentedStore{
		s: s,
		RequestDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "caravel",
			Subsystem: "registry",
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{caravelmetrics.LabelMethod, caravelmetrics.LabelSuccess}),
	}
}

func (i *instrumentedStore) GetState(environment string) (state caravel.VersionState, err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			caravelmetrics.LabelMethod, "GetState",
			caravelmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.s.GetState(environment)
}

func (i *instrumentedStore) Commit(environment string, v caravel.Version) (err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			caravelmetrics.LabelMethod, "Commit",
			caravelmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.s.Commit(environment, v)
}

func (i *instrumentedStore) RollbackTarget(environment string) (v caravel.Version, err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			caravelmetrics.LabelMethod, "RollbackTarget",
			caravelmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.s.RollbackTarget(environment)
}
