package history

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
			Subsystem: "history",
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{caravelmetrics.LabelMethod, caravelmetrics.LabelSuccess}),
	}
}

func (i *instrumentedStore) instrument(method string, begin time.Time, err error) {
	i.RequestDuration.With(
		caravelmetrics.LabelMethod, method,
		caravelmetrics.LabelSuccess, fmt.Sprint(err == nil),
	).Observe(time.Since(begin).Seconds())
}

func (i *instrumentedStore) Create(d *caravel.Deployment) (err error) {
	defer func(begin time.Time) { i.instrument("Create", begin, err) }(time.Now())
	return i.s.Create(d)
}

func (i *instrumentedStore) Update(d caravel.Deployment) (err error) {
	defer func(begin time.Time) { i.instrument("Update", begin, err) }(time.Now())
	return i.s.Update(d)
}

func (i *instrumentedStore) Get(id caravel.DeploymentID) (d caravel.Deployment, err error) {
	defer func(begin time.Time) { i.instrument("Get", begin, err) }(time.Now())
	return i.s.Get(id)
}

func (i *instrumentedStore) Latest(environment string) (d caravel.Deployment, err error) {
	defer func(begin time.Time) { i.instrument("Latest", begin, err) }(time.Now())
	return i.s.Latest(environment)
}

func (i *instrumentedStore) List(environment string) (ds []caravel.Deployment, err error) {
	defer func(begin time.Time) { i.instrument("List", begin, err) }(time.Now())
	return i.s.List(environment)
}
