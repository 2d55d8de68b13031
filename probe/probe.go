// Package probe answers one question: did an environment's application
// come up healthy after a rollout? It polls the readiness endpoint with
// a bounded number of attempts, so the total wait is always finite.
package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

type Result string

const (
	Healthy   Result = "healthy"
	Unhealthy Result = "unhealthy"
)

type Prober interface {
	Probe(ctx context.Context, url string) (Result, error)
}

// HTTP probes a readiness endpoint over HTTP(S). A response with a 2xx
// status is healthy; anything else, including a network error or a
// per-request timeout, consumes one attempt. A single healthy response
// is sufficient.
type HTTP struct {
	MaxAttempts    int
	Interval       time.Duration
	RequestTimeout time.Duration
	Logger         log.Logger

	// Sleep is swapped out in tests; nil means time.Sleep.
	Sleep func(time.Duration)

	client *http.Client
}

func NewHTTP(maxAttempts int, interval, requestTimeout time.Duration, logger log.Logger) *HTTP {
	return &HTTP{
		MaxAttempts:    maxAttempts,
		Interval:       interval,
		RequestTimeout: requestTimeout,
		Logger:         logger,
		client:         &http.Client{},
	}
}

func (p *HTTP) Probe(ctx context.Context, url string) (Result, error) {
	if p.MaxAttempts <= 0 {
		return Unhealthy, errors.New("probe must have a positive attempt bound")
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Unhealthy, err
		}

		ok, err := p.attempt(ctx, url)
		if ok {
			p.Logger.Log("url", url, "attempt", attempt, "healthy", true)
			return Healthy, nil
		}
		p.Logger.Log("url", url, "attempt", attempt, "healthy", false, "err", err)

		if attempt < p.MaxAttempts {
			sleep(p.Interval)
		}
	}
	return Unhealthy, nil
}

func (p *HTTP) attempt(ctx context.Context, url string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.RequestTimeout)
	defer cancel()

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return false, errors.Wrap(err, "constructing probe request")
	}
	resp, err := p.client.Do(req.WithContext(ctx))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, nil
	}
	return false, errors.Errorf("readiness endpoint returned %s", resp.Status)
}
